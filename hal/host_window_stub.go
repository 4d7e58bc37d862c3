//go:build !tinygo && !cgo

package hal

import "errors"

// ErrNoWindow is returned by RunWindow in builds without cgo.
var ErrNoWindow = errors.New("window mode requires cgo (build/run with CGO_ENABLED=1)")

func RunWindow(_ func(HAL) func() error, _ Config) error {
	return ErrNoWindow
}
