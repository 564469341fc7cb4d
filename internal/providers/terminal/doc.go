// Package terminal exposes tab shells as service tools.
//
// The provider is a thin adapter over a pty.Registry: every tool call maps
// to one registry operation keyed by tab_id. Unknown tabs are not errors
// for write, read, resize or close.
//
// Example Usage:
//
//	shell := terminal.create_shell(tab_id: "tab_1", rows: 24, cols: 80)
//	terminal.write_to_pty(tab_id: "tab_1", data: "ls\r")
//	output := terminal.read_from_pty(tab_id: "tab_1")
//	// → {data: "...", exited: false}
//	terminal.resize_pty(tab_id: "tab_1", rows: 40, cols: 120)
//	terminal.close_shell(tab_id: "tab_1")
//
// Tools:
//   - terminal.create_shell: Start (or replace) a tab's shell
//   - terminal.write_to_pty: Send input to a shell
//   - terminal.read_from_pty: Non-blocking read of available output
//   - terminal.resize_pty: Change terminal dimensions
//   - terminal.close_shell: Terminate a shell
//   - terminal.list_sessions: List live shells
//   - terminal.get_session: Describe one shell
package terminal
