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

package provisioning

import (
	"sync"

	"github.com/google/uuid"
)

// State is the state of a Listener.
type State int

const (
	Listening State = iota
	CredentialApplied
	AwaitingConnection
	ConnectTimeout
	Replying
	Done
	Stopped
	SocketFailed
)

var stateNames = map[State]string{
	Listening:          "listening",
	CredentialApplied:  "credential-applied",
	AwaitingConnection: "awaiting-connection",
	ConnectTimeout:     "connect-timeout",
	Replying:           "replying",
	Done:               "done",
	Stopped:            "stopped",
	SocketFailed:       "socket-error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// session is written only by the listener goroutine, the lock is
// for readers.
type session struct {
	id string

	mu       sync.Mutex
	state    State
	token    string
	hasToken bool
	network  string
	attempts int
}

func newSession() *session {
	return &session{id: uuid.New().String()}
}

func (s *session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *session) getState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setToken replaces the token of any earlier offer.
func (s *session) setToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.hasToken = true
}

func (s *session) getToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.hasToken
}

// setApplied records the network of a new attempt.
func (s *session) setApplied(ssid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.network = ssid
	s.attempts++
}

func (s *session) getNetwork() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.network
}

func (s *session) getAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}
