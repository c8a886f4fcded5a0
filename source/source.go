// Package source delivers synchronized color, depth and body index frames,
// one set per tick.
package source

import (
	"context"
	"sync"

	"greenscreen/frame"
)

// Set is one tick's worth of co-timed frames. The frames belong to the
// producer and are only valid until Release is called.
type Set struct {
	Color frame.Color
	Depth frame.Depth
	Body  frame.BodyIndex

	release func()
	once    sync.Once
}

// NewSet bundles three frames. release, if not nil, runs once when the
// consumer is done with them.
func NewSet(c frame.Color, d frame.Depth, b frame.BodyIndex, release func()) *Set {
	return &Set{Color: c, Depth: d, Body: b, release: release}
}

// Release hands the frames back to their producer. Calling it more than
// once is a no-op.
func (s *Set) Release() {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}

// A Source produces frame sets. Next returns io.EOF once the stream ends.
type Source interface {
	Next(ctx context.Context) (*Set, error)
	Close() error
}
