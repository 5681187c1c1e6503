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

// Package wifitest provides an in-memory wifi.Station for tests.
package wifitest

import (
	"fmt"
	"sync"
	"time"

	"github.com/snapcore/netprov/wifi"
)

// Station is a fake wifi.Station. Connect succeeds asynchronously,
// after ConnectDelay, only for credentials added with SetReachable.
type Station struct {
	mu sync.Mutex

	reachable    map[string]string
	connectDelay time.Duration

	current   wifi.Credential
	calls     []string
	subs      map[int]func()
	nextSub   int
	applyErr  error
	connected bool
}

var _ wifi.Station = (*Station)(nil)

// New returns a Station with no reachable networks.
func New() *Station {
	return &Station{
		reachable: make(map[string]string),
		subs:      make(map[int]func()),
	}
}

// SetReachable makes Connect succeed for the given network.
func (s *Station) SetReachable(ssid, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reachable[ssid] = password
}

// SetConnectDelay sets how long connecting to a reachable network takes.
func (s *Station) SetConnectDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectDelay = d
}

// SetApplyError makes ApplyCredential fail with err for non-empty
// credentials.
func (s *Station) SetApplyError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyErr = err
}

// Calls returns the operations performed so far, in order.
func (s *Station) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Connected returns whether connectivity was established and not
// dropped since.
func (s *Station) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Station) ApplyCredential(cred wifi.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cred.IsZero() {
		s.calls = append(s.calls, "clear")
	} else {
		s.calls = append(s.calls, fmt.Sprintf("apply %s", cred.SSID))
		if s.applyErr != nil {
			return s.applyErr
		}
	}
	s.current = cred
	return nil
}

func (s *Station) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "connect")
	if s.current.IsZero() {
		return wifi.ErrNoCredential
	}
	password, ok := s.reachable[s.current.SSID]
	if !ok || password != s.current.Password {
		// never connects, like a wrong password or an absent network
		return nil
	}
	target := s.current
	time.AfterFunc(s.connectDelay, func() {
		s.mu.Lock()
		if s.current != target {
			s.mu.Unlock()
			return
		}
		s.connected = true
		s.mu.Unlock()
		s.Fire()
	})
	return nil
}

func (s *Station) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "disconnect")
	s.connected = false
	return nil
}

func (s *Station) CurrentCredential() (wifi.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.IsZero() {
		return wifi.Credential{}, wifi.ErrNoCredential
	}
	return s.current, nil
}

func (s *Station) OnConnected(f func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = f
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Fire calls the OnConnected subscribers as if connectivity had just
// been established.
func (s *Station) Fire() {
	s.mu.Lock()
	subs := make([]func(), 0, len(s.subs))
	for _, f := range s.subs {
		subs = append(subs, f)
	}
	s.mu.Unlock()
	for _, f := range subs {
		f()
	}
}
