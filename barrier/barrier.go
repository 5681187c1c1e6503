// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2024 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package barrier implements a set of named, level-triggered boolean
// flags that concurrent actors raise and that any number of waiters
// can block on, with a timeout, for any subset.
package barrier

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Flag is a set of barrier flags.
type Flag uint32

const (
	// StationConnected is raised when the station obtained connectivity.
	StationConnected Flag = 1 << iota
	// HandshakeDone is raised by side-channel transports (legacy
	// smartconfig style) once their own handshake completed.
	HandshakeDone
	// TokenReceived is raised once the authentication token is held
	// and, for the rendezvous handshake, connectivity confirmed.
	TokenReceived
)

var flagNames = []struct {
	f    Flag
	name string
}{
	{StationConnected, "station-connected"},
	{HandshakeDone, "handshake-done"},
	{TokenReceived, "token-received"},
}

func (f Flag) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, fn := range flagNames {
		if f&fn.f != 0 {
			names = append(names, fn.name)
			f &^= fn.f
		}
	}
	if f != 0 {
		names = append(names, "unknown")
	}
	return strings.Join(names, "|")
}

// Result is the outcome of waiting on the barrier.
type Result int

const (
	Satisfied Result = iota
	TimedOut
	Canceled
)

func (r Result) String() string {
	switch r {
	case Satisfied:
		return "satisfied"
	case TimedOut:
		return "timed-out"
	case Canceled:
		return "canceled"
	}
	return "unknown"
}

// Forever can be passed as timeout to wait without a deadline.
const Forever time.Duration = -1

// Barrier holds the flags of one session. The zero value is not
// usable, use New.
type Barrier struct {
	mu    sync.Mutex
	flags Flag
	// changed is closed and replaced every time new flags get raised
	changed chan struct{}
}

// New returns a barrier with all flags cleared.
func New() *Barrier {
	return &Barrier{changed: make(chan struct{})}
}

// Raise sets the given flags, waking the waiters whose condition is
// now satisfied. Raising already set flags does nothing.
func (b *Barrier) Raise(flags Flag) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flags&flags == flags {
		return
	}
	b.flags |= flags
	close(b.changed)
	b.changed = make(chan struct{})
}

// IsSet returns whether all the given flags are set.
func (b *Barrier) IsSet(flags Flag) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flags&flags == flags
}

// Flags returns the currently set flags.
func (b *Barrier) Flags() Flag {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flags
}

// AwaitAll blocks until all the given flags are set or timeout
// elapses. Flags are not consumed. A negative timeout waits forever.
func (b *Barrier) AwaitAll(flags Flag, timeout time.Duration) Result {
	return b.AwaitAllContext(context.Background(), flags, timeout)
}

// AwaitAllContext is like AwaitAll but also returns Canceled if ctx
// is done first. Flags are checked once more on cancellation so a
// condition satisfied concurrently is still reported as Satisfied.
func (b *Barrier) AwaitAllContext(ctx context.Context, flags Flag, timeout time.Duration) Result {
	var deadline <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		b.mu.Lock()
		if b.flags&flags == flags {
			b.mu.Unlock()
			return Satisfied
		}
		changed := b.changed
		b.mu.Unlock()

		select {
		case <-changed:
		case <-deadline:
			if b.IsSet(flags) {
				return Satisfied
			}
			return TimedOut
		case <-ctx.Done():
			if b.IsSet(flags) {
				return Satisfied
			}
			return Canceled
		}
	}
}
