package pty

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

const readBufferSize = 4096

// Info is the public view of a session.
type Info struct {
	ID        string    `json:"id"`
	Shell     string    `json:"shell"`
	Dir       string    `json:"dir,omitempty"`
	Pid       int       `json:"pid"`
	Rows      uint16    `json:"rows"`
	Cols      uint16    `json:"cols"`
	StartedAt time.Time `json:"started_at"`
	Exited    bool      `json:"exited"`
	ExitCode  int       `json:"exit_code"`
}

var errProcessStuck = errors.New("process did not exit after SIGKILL")

// session is one live pty pair and its shell.
type session struct {
	id        string
	shell     string
	dir       string
	startedAt time.Time

	pair   Pair
	writer Writer
	reader Reader
	proc   Process

	writeMu sync.Mutex
	readMu  sync.Mutex
	ctlMu   sync.Mutex
	closed  atomic.Bool

	// guarded by ctlMu
	size Size

	// guarded by readMu
	buf []byte
	dec *outputDecoder

	// exitCode is written once before exited is closed.
	exited   chan struct{}
	exitCode int
}

func newSession(id string, cmd Command, size Size, pair Pair, w Writer, r Reader, proc Process) *session {
	s := &session{
		id:        id,
		shell:     cmd.Path,
		dir:       cmd.Dir,
		startedAt: time.Now(),
		pair:      pair,
		writer:    w,
		reader:    r,
		proc:      proc,
		size:      size,
		buf:       make([]byte, readBufferSize),
		dec:       newOutputDecoder(),
		exited:    make(chan struct{}),
	}
	go s.reap()
	return s
}

// reap waits for the shell and records how it ended. It does no I/O.
func (s *session) reap() {
	code, err := s.proc.Wait()
	if err != nil {
		code = -1
	}
	s.exitCode = code
	close(s.exited)
}

func (s *session) info() Info {
	s.ctlMu.Lock()
	size := s.size
	s.ctlMu.Unlock()

	info := Info{
		ID:        s.id,
		Shell:     s.shell,
		Dir:       s.dir,
		Pid:       s.proc.Pid(),
		Rows:      size.Rows,
		Cols:      size.Cols,
		StartedAt: s.startedAt,
	}
	select {
	case <-s.exited:
		info.Exited = true
		info.ExitCode = s.exitCode
	default:
	}
	return info
}

// write sends all of data to the shell. A session closed underneath the
// call is treated as gone, not as a failure.
func (s *session) write(data []byte, timeout time.Duration) error {
	if s.closed.Load() {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return nil
	}

	if timeout > 0 {
		_ = s.writer.SetWriteDeadline(time.Now().Add(timeout))
	}

	for len(data) > 0 {
		n, err := s.writer.Write(data)
		data = data[n:]
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}

	if f, ok := s.writer.(flusher); ok {
		if err := f.Flush(); err != nil && !s.closed.Load() {
			return err
		}
	}
	return nil
}

// read makes one bounded read attempt. It returns the decoded text and the
// number of raw bytes consumed.
func (s *session) read(timeout time.Duration) (string, int, error) {
	if s.closed.Load() {
		return "", 0, nil
	}
	s.readMu.Lock()
	defer s.readMu.Unlock()
	if s.closed.Load() {
		return "", 0, nil
	}

	_ = s.reader.SetReadDeadline(time.Now().Add(timeout))
	n, err := s.reader.Read(s.buf)
	if err != nil {
		if s.closed.Load() {
			return "", 0, nil
		}
		return "", 0, err
	}
	if n == 0 {
		return "", 0, nil
	}
	return s.dec.Decode(s.buf[:n]), n, nil
}

func (s *session) resize(size Size) error {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()
	if s.closed.Load() {
		return nil
	}

	if err := s.pair.Resize(size); err != nil {
		return err
	}
	s.size = size
	return nil
}

// close releases every handle and then ends the shell. Only the first call
// does anything.
func (s *session) close(grace time.Duration) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Wake any call blocked in the kernel so the locks below are released.
	now := time.Now()
	_ = s.writer.SetWriteDeadline(now)
	_ = s.reader.SetReadDeadline(now)

	s.writeMu.Lock()
	s.readMu.Lock()
	s.ctlMu.Lock()
	err := errors.Join(s.writer.Close(), s.reader.Close(), s.pair.Close())
	s.ctlMu.Unlock()
	s.readMu.Unlock()
	s.writeMu.Unlock()

	return errors.Join(err, s.terminate(grace))
}

// terminate hangs up the shell, escalating to SIGKILL after grace.
func (s *session) terminate(grace time.Duration) error {
	select {
	case <-s.exited:
		return nil
	default:
	}

	_ = s.proc.Signal(syscall.SIGHUP)
	if s.waitExit(grace) {
		return nil
	}

	_ = s.proc.Signal(syscall.SIGKILL)
	if s.waitExit(grace) {
		return nil
	}
	return errProcessStuck
}

func (s *session) waitExit(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.exited:
		return true
	case <-t.C:
		return false
	}
}
