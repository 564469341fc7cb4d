/*
Package pty owns interactive shell sessions backed by OS pseudo-terminals.

A Registry maps caller-chosen tab ids to live sessions. Each session holds one
pty pair, a writer and a reader duplicated from the master, and the shell
process attached to the slave. Sessions are driven through five calls:

	reg := pty.NewRegistry(pty.NativeSystem{}, pty.DefaultConfig())
	info, err := reg.Create(ctx, "tab-1", pty.Options{Rows: 30, Cols: 120})
	err = reg.Write("tab-1", []byte("ls\n"))
	out := reg.Read("tab-1")
	err = reg.Resize("tab-1", 40, 160)
	reg.Close("tab-1")

Unknown ids are never an error for Write, Read, Resize or Close. Read makes a
single bounded attempt and returns "" when nothing is available, so callers
poll it. Whether the shell has exited is reported separately by Info.

# Concurrency

The registry lock is only held to look up, insert or remove a session.
Writes, reads and control calls on a session are serialized by three
separate locks, so a slow reader never blocks a writer and one tab never
stalls another. Close marks the session closed, expires pending deadlines and
then takes all three locks before releasing any handle.
*/
package pty
