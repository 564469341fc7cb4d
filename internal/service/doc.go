// Package service provides the service registry that exposes providers as
// callable tools.
//
// Tools are addressed as "<service>.<tool>" (for example
// "terminal.write_to_pty"). The registry resolves the service part and hands
// the call to its provider.
//
// Discovery Algorithm:
//   - Keyword matching in name/description
//   - Capability matching
//   - Category bonus for exact matches
//   - Score-based ranking, ties broken by ID
//
// Example Usage:
//
//	registry := service.NewRegistry()
//	registry.Register(terminal.NewProvider(sessions))
//	services := registry.Discover("open a shell", 5)
//	result, err := registry.Execute(ctx, "terminal.create_shell", params, appCtx)
package service
