// Package ws attaches WebSocket clients to tab shells.
//
// GET /shells/:id/stream upgrades the connection and then:
//   - polls the shell at the configured interval and pushes output frames
//   - writes binary client frames to the shell as input
//   - treats text client frames as JSON control messages
//   - closes with a normal-closure frame when the tab is closed or its shell exits
//
// Message Types (Client → Server, text frames):
//   - resize: {"type":"resize","rows":24,"cols":80}
//   - input: {"type":"input","data":"ls\r"}
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - attached: Connection id and current window size
//   - output: Shell output
//   - resized: Resize applied
//   - exit: Shell exited, with exit_code
//   - pong: Reply to ping
//   - error: Rejected input or control message
//
// Example Usage:
//
//	handler := ws.NewHandler(registry, ws.Config{PollInterval: 50 * time.Millisecond})
//	router.GET("/shells/:id/stream", handler.HandleConnection)
package ws
