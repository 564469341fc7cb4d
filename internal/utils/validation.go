package utils

import (
	"fmt"
	"math"
)

// Input limits shared by the REST, WebSocket and tool surfaces.
const (
	MaxIDLength   = 128
	MaxWriteSize  = 1 * 1024 * 1024 // 1MB - largest single write to a shell
	MaxJSONSize   = 2 * 1024 * 1024 // request bodies carry the write payload
	MaxDimension  = math.MaxUint16
	MaxControlMsg = 4 * 1024 // 4KB - WebSocket control frames
)

// ValidateID checks a tab or tool id. Ids travel as a single URL path
// segment, so only ASCII letters, digits and "._:-" are allowed.
func ValidateID(id, field string, required bool) error {
	if id == "" {
		if required {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%s exceeds %d characters", field, MaxIDLength)
	}
	for _, r := range id {
		if !isIDRune(r) {
			return fmt.Errorf("%s contains invalid character %q", field, r)
		}
	}
	return nil
}

func isIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == ':', r == '-':
		return true
	}
	return false
}

// ValidateDimension checks a row or column count. Zero means "use the
// default" unless required is set.
func ValidateDimension(v int, field string, required bool) error {
	if v < 0 || v > MaxDimension {
		return fmt.Errorf("%s must be between 1 and %d", field, MaxDimension)
	}
	if v == 0 && required {
		return fmt.Errorf("%s must be positive", field)
	}
	return nil
}

// ValidateWriteSize rejects writes larger than MaxWriteSize.
func ValidateWriteSize(data []byte) error {
	if len(data) > MaxWriteSize {
		return fmt.Errorf("write of %d bytes exceeds maximum %d bytes", len(data), MaxWriteSize)
	}
	return nil
}
