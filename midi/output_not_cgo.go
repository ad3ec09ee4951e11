//go:build !cgo

package midi

import (
	"fmt"

	"github.com/tsb/numus"
)

// Output is unavailable without cgo; OpenOutput always fails.
type Output struct{}

func Ports() ([]string, error) {
	return nil, nil
}

func OpenOutput(namePrefix string, bpm float64) (*Output, error) {
	return nil, fmt.Errorf("live MIDI output needs a cgo build: %w", ErrNoPort)
}

func (o *Output) Trigger(t numus.Trigger) error { return ErrClosed }

func (o *Output) Close() error { return nil }
