package pty

import (
	"io"
	"syscall"
	"time"
)

// Size is a terminal geometry in character cells.
type Size struct {
	Rows uint16 `json:"rows"`
	Cols uint16 `json:"cols"`
}

// Command describes the program started on the slave side of a pair.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// System allocates pseudo-terminal pairs.
type System interface {
	Open(size Size) (Pair, error)
}

// Pair is one master/slave pseudo-terminal.
type Pair interface {
	// TakeWriter returns the input handle of the master. It may be taken once.
	TakeWriter() (Writer, error)
	// CloneReader returns an independent output handle of the master.
	CloneReader() (Reader, error)
	// Resize changes the window size of the terminal.
	Resize(size Size) error
	// Spawn starts cmd with the slave as its controlling terminal.
	Spawn(cmd Command) (Process, error)
	// Close releases the master and slave. Handles returned by TakeWriter
	// and CloneReader are closed separately.
	Close() error
}

// Writer is the input side of a master.
type Writer interface {
	io.WriteCloser
	SetWriteDeadline(t time.Time) error
}

// Reader is the output side of a master.
type Reader interface {
	io.ReadCloser
	SetReadDeadline(t time.Time) error
}

// Process is a child started by Pair.Spawn.
type Process interface {
	Pid() int
	// Signal delivers sig to the process group of the child.
	Signal(sig syscall.Signal) error
	// Wait blocks until the child exits and returns its exit code, or -1
	// when it was killed by a signal.
	Wait() (int, error)
}

// flusher is implemented by writers that buffer input.
type flusher interface {
	Flush() error
}
