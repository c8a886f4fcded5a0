package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Mailbox is a single-slot hand-off between a producer running at camera
// rate and a slower consumer. A new set replaces one that has not been
// consumed yet; the replaced set is released and counted as dropped.
type Mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	set    *Set
	closed bool
	drops  atomic.Uint64
}

func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish never blocks. Sets published after Close are released at once.
func (m *Mailbox) Publish(s *Set) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		s.Release()
		return
	}
	if m.set != nil {
		m.set.Release()
		m.drops.Add(1)
	}
	m.set = s
	m.cond.Signal()
}

// Next blocks until a set is available. A set pending at Close is still
// delivered; after that Next returns io.EOF.
func (m *Mailbox) Next(ctx context.Context) (*Set, error) {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for m.set == nil && !m.closed && ctx.Err() == nil {
		m.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.set == nil {
		return nil, io.EOF
	}
	s := m.set
	m.set = nil
	return s, nil
}

func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.cond.Broadcast()
	return nil
}

// Drops is the number of sets replaced before they were consumed.
func (m *Mailbox) Drops() uint64 {
	return m.drops.Load()
}

// Pump reads src every interval, like a camera delivering frames, and
// publishes each set to m. It closes m when src ends or ctx is done.
func Pump(ctx context.Context, src Source, m *Mailbox, interval time.Duration) error {
	defer m.Close()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		s, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("could not read frame set: %w", err)
		}
		m.Publish(s)
	}
}
