// Package ptytest provides an in-memory pty.System for tests of code built
// on top of pty.Registry.
//
// Every pair is a loopback: bytes written to a session come back out of its
// reader, the way a terminal in cooked mode echoes input. Shell processes
// exit when hung up or killed, or when a test calls Process.Exit.
package ptytest

import (
	"errors"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/GriffinCanCode/ptyhost/internal/pty"
)

// System is a pty.System whose pairs echo their input.
type System struct {
	mu      sync.Mutex
	pairs   []*Pair
	nextPid int

	// OpenErr and SpawnErr make later Open or Spawn calls fail.
	OpenErr  error
	SpawnErr error
}

// New returns an empty loopback system.
func New() *System {
	return &System{nextPid: 4000}
}

// Open implements pty.System.
func (s *System) Open(size pty.Size) (pty.Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}

	s.nextPid++
	p := &Pair{
		size: size,
		pid:  s.nextPid,
		loop: newLoop(),
	}
	p.spawnErr = s.SpawnErr
	s.pairs = append(s.pairs, p)
	return p, nil
}

// Pairs returns every pair opened so far.
func (s *System) Pairs() []*Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Pair(nil), s.pairs...)
}

// Last returns the most recently opened pair, or nil.
func (s *System) Last() *Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pairs) == 0 {
		return nil
	}
	return s.pairs[len(s.pairs)-1]
}

// Pair is one loopback pseudo-terminal.
type Pair struct {
	pid      int
	loop     *loop
	spawnErr error

	mu      sync.Mutex
	size    pty.Size
	closed  bool
	cmd     pty.Command
	process *Process
}

func (p *Pair) TakeWriter() (pty.Writer, error) { return p.loop, nil }

func (p *Pair) CloneReader() (pty.Reader, error) { return p.loop, nil }

func (p *Pair) Resize(size pty.Size) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.size = size
	return nil
}

func (p *Pair) Spawn(cmd pty.Command) (pty.Process, error) {
	if p.spawnErr != nil {
		return nil, p.spawnErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cmd = cmd
	p.process = &Process{pid: p.pid, exit: make(chan int, 1)}
	return p.process, nil
}

func (p *Pair) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Size returns the current window size.
func (p *Pair) Size() pty.Size {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Closed reports whether the pair was released.
func (p *Pair) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Command returns what was spawned on the pair.
func (p *Pair) Command() pty.Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd
}

// Process returns the spawned shell, or nil.
func (p *Pair) Process() *Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.process
}

// Emit queues output as if the shell had printed it.
func (p *Pair) Emit(b []byte) {
	p.loop.push(b)
}

// Process is a simulated shell.
type Process struct {
	pid  int
	exit chan int
	once sync.Once

	mu      sync.Mutex
	signals []syscall.Signal
}

func (p *Process) Pid() int { return p.pid }

func (p *Process) Signal(sig syscall.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()

	if sig == syscall.SIGHUP || sig == syscall.SIGKILL {
		p.Exit(128 + int(sig))
	}
	return nil
}

func (p *Process) Wait() (int, error) {
	return <-p.exit, nil
}

// Exit ends the shell with code. Later calls are ignored.
func (p *Process) Exit(code int) {
	p.once.Do(func() { p.exit <- code })
}

// Signals returns the signals delivered so far.
func (p *Process) Signals() []syscall.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]syscall.Signal(nil), p.signals...)
}

// loop is both the writer and the reader of a pair.
type loop struct {
	mu       sync.Mutex
	buf      []byte
	closed   bool
	deadline time.Time
	wake     chan struct{}
}

func newLoop() *loop {
	return &loop{wake: make(chan struct{})}
}

func (l *loop) push(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, b...)
	l.notify()
}

// notify wakes blocked readers. Caller holds mu.
func (l *loop) notify() {
	close(l.wake)
	l.wake = make(chan struct{})
}

func (l *loop) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, os.ErrClosed
	}
	l.buf = append(l.buf, b...)
	l.notify()
	return len(b), nil
}

func (l *loop) Read(b []byte) (int, error) {
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return 0, os.ErrClosed
		}
		if len(l.buf) > 0 {
			n := copy(b, l.buf)
			l.buf = l.buf[n:]
			l.mu.Unlock()
			return n, nil
		}
		deadline, wake := l.deadline, l.wake
		l.mu.Unlock()

		wait := time.Hour
		if !deadline.IsZero() {
			wait = time.Until(deadline)
			if wait <= 0 {
				return 0, os.ErrDeadlineExceeded
			}
		}

		t := time.NewTimer(wait)
		select {
		case <-wake:
			t.Stop()
		case <-t.C:
			if !deadline.IsZero() {
				return 0, os.ErrDeadlineExceeded
			}
		}
	}
}

func (l *loop) SetReadDeadline(t time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deadline = t
	l.notify()
	return nil
}

func (l *loop) SetWriteDeadline(time.Time) error { return nil }

// Close is called once for the writer and once for the reader role.
func (l *loop) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.notify()
	return nil
}

var _ pty.System = (*System)(nil)

// ErrInjected is a convenience failure for OpenErr and SpawnErr.
var ErrInjected = errors.New("ptytest: injected failure")
