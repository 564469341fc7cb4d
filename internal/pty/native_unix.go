//go:build unix

package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	cpty "github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// NativeSystem allocates pairs from the host's pseudo-terminal devices.
type NativeSystem struct{}

// Open allocates a master/slave pair sized to size.
func (NativeSystem) Open(size Size) (Pair, error) {
	master, slave, err := cpty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}

	if err := cpty.Setsize(master, winsize(size)); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("set initial size: %w", err)
	}

	return &nativePair{master: master, slave: slave}, nil
}

type nativePair struct {
	master *os.File
	slave  *os.File

	mu          sync.Mutex
	writerTaken bool
}

func (p *nativePair) TakeWriter() (Writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writerTaken {
		return nil, errors.New("writer already taken")
	}

	f, err := dupPollable(p.master, "writer")
	if err != nil {
		return nil, err
	}
	p.writerTaken = true
	return f, nil
}

func (p *nativePair) CloneReader() (Reader, error) {
	return dupPollable(p.master, "reader")
}

func (p *nativePair) Resize(size Size) error {
	return cpty.Setsize(p.master, winsize(size))
}

func (p *nativePair) Spawn(c Command) (Process, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdin = p.slave
	cmd.Stdout = p.slave
	cmd.Stderr = p.slave
	// New session with the slave (fd 0 in the child) as controlling terminal.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &nativeProcess{cmd: cmd}, nil
}

func (p *nativePair) Close() error {
	return errors.Join(p.master.Close(), p.slave.Close())
}

// dupPollable duplicates the master descriptor and registers the copy with
// the runtime poller so read and write deadlines apply to it. The master is
// never touched through Fd(), which would put it back into blocking mode.
func dupPollable(master *os.File, role string) (*os.File, error) {
	sc, err := master.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("dup %s: %w", role, err)
	}

	fd := -1
	var dupErr error
	ctlErr := sc.Control(func(raw uintptr) {
		// Hold ForkLock so a concurrent fork cannot inherit the copy
		// before close-on-exec is set.
		syscall.ForkLock.RLock()
		fd, dupErr = unix.Dup(int(raw))
		if dupErr == nil {
			unix.CloseOnExec(fd)
		}
		syscall.ForkLock.RUnlock()
	})
	if err := errors.Join(ctlErr, dupErr); err != nil {
		return nil, fmt.Errorf("dup %s: %w", role, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("dup %s: set nonblock: %w", role, err)
	}

	f := os.NewFile(uintptr(fd), master.Name()+"#"+role)
	if err := f.SetReadDeadline(time.Time{}); err != nil {
		f.Close()
		return nil, fmt.Errorf("dup %s: descriptor is not pollable: %w", role, err)
	}
	return f, nil
}

func winsize(size Size) *cpty.Winsize {
	return &cpty.Winsize{Rows: size.Rows, Cols: size.Cols}
}

type nativeProcess struct {
	cmd *exec.Cmd
}

func (p *nativeProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *nativeProcess) Signal(sig syscall.Signal) error {
	// The child leads its own session, so its pid is also its process group.
	err := unix.Kill(-p.cmd.Process.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return p.cmd.Process.Signal(sig)
	}
	return err
}

func (p *nativeProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return -1, err
	}
	return p.cmd.ProcessState.ExitCode(), nil
}
