package service

import (
	"context"
	"errors"
	"testing"

	"github.com/GriffinCanCode/ptyhost/internal/types"
)

type mockProvider struct {
	id       string
	category types.Category
	calls    []string
}

func (m *mockProvider) Definition() types.Service {
	category := m.category
	if category == "" {
		category = types.CategoryTerminal
	}
	return types.Service{
		ID:           m.id,
		Name:         "Mock Service",
		Description:  "A mock shell service for testing",
		Category:     category,
		Capabilities: []string{"pty", "resize"},
		Tools: []types.Tool{
			{
				ID:          m.id + ".test",
				Name:        "Test Tool",
				Description: "A test tool",
				Returns:     "string",
			},
		},
	}
}

func (m *mockProvider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	m.calls = append(m.calls, toolID)
	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"result": "success"},
	}, nil
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	p := &mockProvider{id: "test"}

	if err := r.Register(p); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, ok := r.Get("test"); !ok {
		t.Error("Service should be registered")
	}

	if err := r.Register(&mockProvider{}); err == nil {
		t.Error("Empty service ID should be rejected")
	}

	r.Unregister("test")
	if _, ok := r.Get("test"); ok {
		t.Error("Service should be unregistered")
	}
}

func TestList(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockProvider{id: "zeta"})
	r.Register(&mockProvider{id: "alpha"})
	r.Register(&mockProvider{id: "sys", category: types.CategorySystem})

	services := r.List(nil)
	if len(services) != 3 {
		t.Fatalf("Expected 3 services, got %d", len(services))
	}
	if services[0].ID != "alpha" || services[2].ID != "zeta" {
		t.Errorf("Services should be sorted by ID, got %s..%s", services[0].ID, services[2].ID)
	}

	cat := types.CategoryTerminal
	if filtered := r.List(&cat); len(filtered) != 2 {
		t.Errorf("Expected 2 terminal services, got %d", len(filtered))
	}
}

func TestDiscover(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockProvider{id: "terminal"})
	r.Register(&mockProvider{id: "sys", category: types.CategorySystem})

	results := r.Discover("open a terminal shell with pty", 5)
	if len(results) == 0 {
		t.Fatal("Should discover terminal service")
	}
	if results[0].ID != "terminal" {
		t.Errorf("Expected terminal service first, got %s", results[0].ID)
	}

	if got := r.Discover("open a terminal shell with pty", 1); len(got) != 1 {
		t.Errorf("Limit not applied, got %d", len(got))
	}
	if got := r.Discover("xyzzy", 5); len(got) != 0 {
		t.Errorf("Unrelated intent should match nothing, got %d", len(got))
	}
}

func TestExecute(t *testing.T) {
	r := NewRegistry()
	p := &mockProvider{id: "test"}
	r.Register(p)

	ctx := context.Background()
	result, err := r.Execute(ctx, "test.test", map[string]interface{}{}, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Error("Expected successful execution")
	}
	if len(p.calls) != 1 || p.calls[0] != "test.test" {
		t.Errorf("Provider got calls %v", p.calls)
	}
}

func TestExecuteErrors(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	result, err := r.Execute(ctx, "notool", nil, nil)
	if !errors.Is(err, ErrInvalidToolID) {
		t.Errorf("Expected ErrInvalidToolID, got %v", err)
	}
	if result == nil || result.Success || result.Error == nil {
		t.Error("Expected failure result")
	}

	_, err = r.Execute(ctx, "missing.tool", nil, nil)
	if !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("Expected ErrServiceNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockProvider{id: "test1"})
	r.Register(&mockProvider{id: "test2"})

	stats := r.Stats()
	if total := stats["total_services"].(int); total != 2 {
		t.Errorf("Expected 2 total services, got %d", total)
	}
	if totalTools := stats["total_tools"].(int); totalTools != 2 {
		t.Errorf("Expected 2 total tools, got %d", totalTools)
	}
}
