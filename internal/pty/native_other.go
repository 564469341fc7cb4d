//go:build !unix

package pty

import (
	"errors"
	"fmt"
	"runtime"
)

// NativeSystem is unavailable on this platform.
type NativeSystem struct{}

// Open always fails outside unix.
func (NativeSystem) Open(Size) (Pair, error) {
	return nil, fmt.Errorf("pseudo-terminals on %s: %w", runtime.GOOS, errors.ErrUnsupported)
}
