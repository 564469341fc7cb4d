package terminal

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/ptyhost/internal/pty"
	"github.com/GriffinCanCode/ptyhost/internal/service"
	"github.com/GriffinCanCode/ptyhost/internal/shared/id"
	"github.com/GriffinCanCode/ptyhost/internal/types"
	"github.com/GriffinCanCode/ptyhost/internal/utils"
)

// Sessions is the part of *pty.Registry the provider drives.
type Sessions interface {
	Create(ctx context.Context, id string, opts pty.Options) (pty.Info, error)
	Write(id string, data []byte) error
	Read(id string) string
	Resize(id string, rows, cols uint16) error
	Close(id string)
	Info(id string) (pty.Info, bool)
	List() []pty.Info
}

// Provider implements terminal tools over a session registry
type Provider struct {
	sessions Sessions
}

// NewProvider creates a new terminal provider
func NewProvider(sessions Sessions) *Provider {
	return &Provider{sessions: sessions}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "terminal",
		Name:        "Terminal Service",
		Description: "Interactive shell sessions backed by native pseudo-terminals, one per tab",
		Category:    types.CategoryTerminal,
		Capabilities: []string{
			"pty",
			"shell",
			"interactive",
			"ansi",
			"sessions",
			"resize",
		},
		Tools: p.getTools(),
	}
}

// Execute routes to appropriate operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "terminal.create_shell":
		return p.createShell(ctx, params)
	case "terminal.write_to_pty":
		return p.write(params)
	case "terminal.read_from_pty":
		return p.read(params)
	case "terminal.resize_pty":
		return p.resize(params)
	case "terminal.close_shell":
		return p.closeShell(params)
	case "terminal.list_sessions":
		return p.listSessions()
	case "terminal.get_session":
		return p.getSession(params)
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}

func (p *Provider) getTools() []types.Tool {
	tabID := types.Parameter{
		Name:        "tab_id",
		Type:        "string",
		Description: "Tab identifier owning the shell",
		Required:    true,
	}

	return []types.Tool{
		{
			ID:          "terminal.create_shell",
			Name:        "Create Shell",
			Description: "Start a shell on a new pseudo-terminal. An existing shell for the tab is replaced",
			Parameters: []types.Parameter{
				{
					Name:        "tab_id",
					Type:        "string",
					Description: "Tab identifier. Generated when omitted",
					Required:    false,
				},
				{
					Name:        "rows",
					Type:        "number",
					Description: "Terminal height in rows. Defaults to the configured size",
					Required:    false,
				},
				{
					Name:        "cols",
					Type:        "number",
					Description: "Terminal width in columns. Defaults to the configured size",
					Required:    false,
				},
			},
			Returns: "session_info",
		},
		{
			ID:          "terminal.write_to_pty",
			Name:        "Write to Shell",
			Description: "Send input bytes to a tab's shell",
			Parameters: []types.Parameter{
				tabID,
				{
					Name:        "data",
					Type:        "string",
					Description: "Input to send, e.g. \"ls\\r\"",
					Required:    true,
				},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.read_from_pty",
			Name:        "Read from Shell",
			Description: "Return whatever output is available right now; empty when there is none",
			Parameters:  []types.Parameter{tabID},
			Returns:     "output_data",
		},
		{
			ID:          "terminal.resize_pty",
			Name:        "Resize Shell",
			Description: "Change terminal dimensions",
			Parameters: []types.Parameter{
				tabID,
				{
					Name:        "rows",
					Type:        "number",
					Description: "New height in rows",
					Required:    true,
				},
				{
					Name:        "cols",
					Type:        "number",
					Description: "New width in columns",
					Required:    true,
				},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.close_shell",
			Name:        "Close Shell",
			Description: "Terminate a tab's shell and release its terminal",
			Parameters:  []types.Parameter{tabID},
			Returns:     "success",
		},
		{
			ID:          "terminal.list_sessions",
			Name:        "List Shells",
			Description: "List all live shells",
			Parameters:  []types.Parameter{},
			Returns:     "sessions_list",
		},
		{
			ID:          "terminal.get_session",
			Name:        "Get Shell Info",
			Description: "Get information about a tab's shell",
			Parameters:  []types.Parameter{tabID},
			Returns:     "session_info",
		},
	}
}

func (p *Provider) createShell(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	tabID, _ := params["tab_id"].(string)
	if tabID == "" {
		tabID = id.NewTabID().String()
	}
	if err := utils.ValidateID(tabID, "tab_id", true); err != nil {
		return nil, invalid(err)
	}

	rows, err := dimension(params, "rows", false)
	if err != nil {
		return nil, err
	}
	cols, err := dimension(params, "cols", false)
	if err != nil {
		return nil, err
	}

	info, err := p.sessions.Create(ctx, tabID, pty.Options{Rows: rows, Cols: cols})
	if err != nil {
		return nil, err
	}

	return &types.Result{
		Success: true,
		Data:    sessionData(info),
	}, nil
}

func (p *Provider) write(params map[string]interface{}) (*types.Result, error) {
	tabID, err := requireTabID(params)
	if err != nil {
		return nil, err
	}

	data, ok := params["data"].(string)
	if !ok {
		return nil, invalid(fmt.Errorf("data is required"))
	}
	if err := utils.ValidateWriteSize([]byte(data)); err != nil {
		return nil, invalid(err)
	}

	if err := p.sessions.Write(tabID, []byte(data)); err != nil {
		return nil, err
	}

	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"success": true},
	}, nil
}

// read never fails: a tab_id that cannot name a session reads as empty.
func (p *Provider) read(params map[string]interface{}) (*types.Result, error) {
	var output string
	exited := false
	if tabID, ok := knownTabID(params); ok {
		output = p.sessions.Read(tabID)
		if info, ok := p.sessions.Info(tabID); ok {
			exited = info.Exited
		}
	}

	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"data":   output,
			"length": len(output),
			"exited": exited,
		},
	}, nil
}

func (p *Provider) resize(params map[string]interface{}) (*types.Result, error) {
	tabID, err := requireTabID(params)
	if err != nil {
		return nil, err
	}

	rows, err := dimension(params, "rows", true)
	if err != nil {
		return nil, err
	}
	cols, err := dimension(params, "cols", true)
	if err != nil {
		return nil, err
	}

	if err := p.sessions.Resize(tabID, rows, cols); err != nil {
		return nil, err
	}

	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"success": true},
	}, nil
}

// closeShell always succeeds, like closing an unknown tab.
func (p *Provider) closeShell(params map[string]interface{}) (*types.Result, error) {
	if tabID, ok := knownTabID(params); ok {
		p.sessions.Close(tabID)
	}

	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"success": true},
	}, nil
}

func (p *Provider) listSessions() (*types.Result, error) {
	sessions := p.sessions.List()

	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"sessions": sessions,
			"count":    len(sessions),
		},
	}, nil
}

func (p *Provider) getSession(params map[string]interface{}) (*types.Result, error) {
	tabID, err := requireTabID(params)
	if err != nil {
		return nil, err
	}

	info, ok := p.sessions.Info(tabID)
	if !ok {
		return types.Failure("session not found: " + tabID), nil
	}

	return &types.Result{
		Success: true,
		Data:    sessionData(info),
	}, nil
}

func sessionData(info pty.Info) map[string]interface{} {
	return map[string]interface{}{
		"tab_id":     info.ID,
		"shell":      info.Shell,
		"dir":        info.Dir,
		"pid":        info.Pid,
		"rows":       info.Rows,
		"cols":       info.Cols,
		"started_at": info.StartedAt,
		"exited":     info.Exited,
		"exit_code":  info.ExitCode,
	}
}

func requireTabID(params map[string]interface{}) (string, error) {
	tabID, _ := params["tab_id"].(string)
	if err := utils.ValidateID(tabID, "tab_id", true); err != nil {
		return "", invalid(err)
	}
	return tabID, nil
}

// knownTabID returns tab_id when it is a well-formed id. Anything else
// cannot name a session.
func knownTabID(params map[string]interface{}) (string, bool) {
	tabID, err := requireTabID(params)
	return tabID, err == nil
}

// dimension reads a row or column count. JSON numbers arrive as float64.
func dimension(params map[string]interface{}, key string, required bool) (uint16, error) {
	raw, present := params[key]
	if !present || raw == nil {
		if required {
			return 0, invalid(fmt.Errorf("%s is required", key))
		}
		return 0, nil
	}

	var n int
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, invalid(fmt.Errorf("%s must be a whole number", key))
		}
		n = int(v)
	case int:
		n = v
	case int64:
		n = int(v)
	case uint16:
		n = int(v)
	default:
		return 0, invalid(fmt.Errorf("%s must be a number", key))
	}

	if err := utils.ValidateDimension(n, key, required); err != nil {
		return 0, invalid(err)
	}
	return uint16(n), nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", service.ErrInvalidParams, err)
}
