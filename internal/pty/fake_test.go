package pty

import (
	"bytes"
	"errors"
	"os"
	"sync"
	"syscall"
	"time"
)

// fakeSystem hands out in-memory pairs. Failure fields apply to every pair
// opened after they are set.
type fakeSystem struct {
	mu      sync.Mutex
	pairs   []*fakePair
	nextPid int

	openErr   error
	writerErr error
	readerErr error
	spawnErr  error
	ignoreHup bool
}

func newFakeSystem() *fakeSystem {
	return &fakeSystem{nextPid: 1000}
}

func (s *fakeSystem) Open(size Size) (Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.nextPid++
	p := &fakePair{
		sizes:     []Size{size},
		writer:    &fakeWriter{},
		reader:    newFakeReader(),
		pid:       s.nextPid,
		writerErr: s.writerErr,
		readerErr: s.readerErr,
		spawnErr:  s.spawnErr,
		ignoreHup: s.ignoreHup,
	}
	s.pairs = append(s.pairs, p)
	return p, nil
}

func (s *fakeSystem) set(fn func(s *fakeSystem)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *fakeSystem) pair(i int) *fakePair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairs[i]
}

func (s *fakeSystem) last() *fakePair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairs[len(s.pairs)-1]
}

type fakePair struct {
	mu        sync.Mutex
	sizes     []Size
	closed    bool
	resizeErr error
	cmd       Command

	writer  *fakeWriter
	reader  *fakeReader
	process *fakeProcess
	pid     int

	writerErr error
	readerErr error
	spawnErr  error
	ignoreHup bool
}

func (p *fakePair) TakeWriter() (Writer, error) {
	if p.writerErr != nil {
		return nil, p.writerErr
	}
	return p.writer, nil
}

func (p *fakePair) CloneReader() (Reader, error) {
	if p.readerErr != nil {
		return nil, p.readerErr
	}
	return p.reader, nil
}

func (p *fakePair) Resize(size Size) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resizeErr != nil {
		return p.resizeErr
	}
	p.sizes = append(p.sizes, size)
	return nil
}

func (p *fakePair) Spawn(cmd Command) (Process, error) {
	if p.spawnErr != nil {
		return nil, p.spawnErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cmd = cmd
	p.process = newFakeProcess(p.pid, p.ignoreHup)
	return p.process, nil
}

func (p *fakePair) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePair) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePair) lastSize() Size {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sizes[len(p.sizes)-1]
}

func (p *fakePair) resizeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sizes) - 1
}

func (p *fakePair) command() Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd
}

// fakeWriter captures input. maxChunk > 0 forces short writes.
type fakeWriter struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	err      error
	maxChunk int
	stall    bool
	flushes  int
	closed   bool
	deadline time.Time
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, os.ErrClosed
	}
	if w.err != nil {
		return 0, w.err
	}
	if w.stall {
		return 0, nil
	}
	n := len(p)
	if w.maxChunk > 0 && n > w.maxChunk {
		n = w.maxChunk
	}
	w.buf.Write(p[:n])
	return n, nil
}

func (w *fakeWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
	return nil
}

func (w *fakeWriter) SetWriteDeadline(t time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deadline = t
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) configure(fn func(w *fakeWriter)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w)
}

func (w *fakeWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func (w *fakeWriter) flushCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushes
}

func (w *fakeWriter) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// fakeReader delivers queued chunks and honours read deadlines.
type fakeReader struct {
	chunks chan []byte
	done   chan struct{}

	mu       sync.Mutex
	deadline time.Time
	kick     chan struct{}
	pending  []byte
	err      error
	once     sync.Once
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		chunks: make(chan []byte, 64),
		done:   make(chan struct{}),
		kick:   make(chan struct{}),
	}
}

func (r *fakeReader) emit(b []byte) {
	r.chunks <- append([]byte(nil), b...)
}

func (r *fakeReader) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *fakeReader) Read(p []byte) (int, error) {
	for {
		r.mu.Lock()
		if r.err != nil {
			err := r.err
			r.mu.Unlock()
			return 0, err
		}
		if len(r.pending) > 0 {
			n := copy(p, r.pending)
			r.pending = r.pending[n:]
			r.mu.Unlock()
			return n, nil
		}
		deadline, kick := r.deadline, r.kick
		r.mu.Unlock()

		wait := time.Hour
		if !deadline.IsZero() {
			wait = time.Until(deadline)
		}
		if wait <= 0 {
			return 0, os.ErrDeadlineExceeded
		}

		t := time.NewTimer(wait)
		select {
		case chunk := <-r.chunks:
			t.Stop()
			n := copy(p, chunk)
			if n < len(chunk) {
				r.mu.Lock()
				r.pending = chunk[n:]
				r.mu.Unlock()
			}
			return n, nil
		case <-t.C:
			return 0, os.ErrDeadlineExceeded
		case <-kick:
			// deadline moved; re-evaluate
			t.Stop()
		case <-r.done:
			t.Stop()
			return 0, os.ErrClosed
		}
	}
}

func (r *fakeReader) SetReadDeadline(t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadline = t
	close(r.kick)
	r.kick = make(chan struct{})
	return nil
}

func (r *fakeReader) Close() error {
	r.once.Do(func() { close(r.done) })
	return nil
}

func (r *fakeReader) isClosed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// fakeProcess exits on SIGHUP (unless ignoreHup) and always on SIGKILL.
type fakeProcess struct {
	pid       int
	ignoreHup bool

	mu      sync.Mutex
	signals []syscall.Signal
	exit    chan int
	once    sync.Once
}

func newFakeProcess(pid int, ignoreHup bool) *fakeProcess {
	return &fakeProcess{pid: pid, ignoreHup: ignoreHup, exit: make(chan int, 1)}
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Signal(sig syscall.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()

	switch {
	case sig == syscall.SIGKILL:
		p.finish(-1)
	case sig == syscall.SIGHUP && !p.ignoreHup:
		p.finish(129)
	}
	return nil
}

func (p *fakeProcess) finish(code int) {
	p.once.Do(func() { p.exit <- code })
}

func (p *fakeProcess) Wait() (int, error) {
	return <-p.exit, nil
}

func (p *fakeProcess) received() []syscall.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]syscall.Signal(nil), p.signals...)
}

var errFake = errors.New("fake failure")
