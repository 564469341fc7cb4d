// Package client is a Go client for the ptyhost REST API.
//
// It wraps resty with the server's request and response shapes so tools
// such as ptyctl can drive shells without hand-building JSON:
//
//	c := client.New("http://127.0.0.1:8000", client.Options{})
//	info, err := c.Create(ctx, client.CreateRequest{Rows: 24, Cols: 80})
//	_, err = c.Write(ctx, info.ID, []byte("ls\r"))
//	out, err := c.Read(ctx, info.ID)
//
// Non-2xx responses are returned as *APIError.
package client
