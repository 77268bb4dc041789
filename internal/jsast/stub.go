//go:build !cgo

package jsast

import (
	"context"
)

// IsAvailable reports whether JavaScript parsing is compiled in.
func IsAvailable() bool {
	return false
}

// Parse always fails without cgo.
func Parse(ctx context.Context, source []byte) (*Source, error) {
	return nil, ErrNoCGO
}
