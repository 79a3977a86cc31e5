// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package translator

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/otrans/internal/translate"
)

// notificationBuffer bounds queued notifications while the UI is busy.
const notificationBuffer = 32

// Bridge carries controller events into the Bubble Tea loop. Snapshots are
// coalesced so a fast stream never blocks on rendering; only the newest
// snapshot is delivered, and one older than a snapshot already seen is
// dropped. Pass Observe to translate.WithObserver and the
// Bridge itself to translate.WithNotifier.
type Bridge struct {
	mu     sync.Mutex
	latest *translate.Snapshot
	seen   uint64 // highest Seq accepted
	wake   chan struct{}
	notes  chan translate.Notification
	log    zerolog.Logger
}

// NewBridge creates an empty bridge that logs through logger.
func NewBridge(logger zerolog.Logger) *Bridge {
	return &Bridge{
		wake:  make(chan struct{}, 1),
		notes: make(chan translate.Notification, notificationBuffer),
		log:   logger,
	}
}

// Observe records s as the newest snapshot. Publishing happens outside the
// controller lock, so snapshots can arrive out of order; a stale one is
// ignored. A zero Seq is always accepted.
func (b *Bridge) Observe(s translate.Snapshot) {
	b.mu.Lock()
	if s.Seq != 0 && s.Seq <= b.seen {
		b.mu.Unlock()
		return
	}
	if s.Seq != 0 {
		b.seen = s.Seq
	}
	b.latest = &s
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Notify queues n. When the queue is full the notification is dropped and
// logged.
func (b *Bridge) Notify(n translate.Notification) {
	select {
	case b.notes <- n:
	default:
		b.log.Debug().
			Str("kind", string(n.Kind)).
			Str("level", n.Level.String()).
			Str("note", n.Message).
			Msg("notification dropped, queue full")
	}
}

// Wait returns a command that blocks until the next event.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case n := <-b.notes:
				return notificationMsg(n)
			case <-b.wake:
				b.mu.Lock()
				s := b.latest
				b.latest = nil
				b.mu.Unlock()
				// A wake-up can outlive the snapshot it announced.
				if s != nil {
					return snapshotMsg(*s)
				}
			}
		}
	}
}
