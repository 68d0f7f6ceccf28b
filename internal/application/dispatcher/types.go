package dispatcher

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Fingerprint identifies one quantifier instantiation across the lines of a
// trace. Z3 prints it as a hexadecimal literal of up to 16 digits.
type Fingerprint uint64

// ErrInvalidFingerprint is returned for literals that are not a 64-bit hex
// number.
var ErrInvalidFingerprint = errors.New("invalid fingerprint")

// ParseFingerprint parses a hex literal such as "0x00007f3a5c0012e8". The 0x
// prefix is optional.
func ParseFingerprint(s string) (Fingerprint, error) {
	digits, ok := strings.CutPrefix(s, "0x")
	if !ok {
		digits, _ = strings.CutPrefix(s, "0X")
	}
	if digits == "" || len(digits) > 16 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFingerprint, s)
	}
	v, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFingerprint, s)
	}
	return Fingerprint(v), nil
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("0x%016x", uint64(f))
}

// VersionInfo is the solver name and version announced by [tool-version].
type VersionInfo struct {
	Solver  string `json:"solver" yaml:"solver"`
	Version string `json:"version" yaml:"version"`
}

// IsZero reports whether no version has been announced.
func (v VersionInfo) IsZero() bool {
	return v.Solver == "" && v.Version == ""
}

func (v VersionInfo) String() string {
	if v.IsZero() {
		return "unknown"
	}
	return v.Solver + " " + v.Version
}
