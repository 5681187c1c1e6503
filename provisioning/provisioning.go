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

// Package provisioning implements the device side of the Wi-Fi
// provisioning handshake: a listener worker driving the rendezvous
// socket and the orchestrator waiting for it to succeed.
package provisioning

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/snapcore/netprov/barrier"
	"github.com/snapcore/netprov/logger"
	"github.com/snapcore/netprov/netonboard"
	"github.com/snapcore/netprov/wifi"
)

var listenUDP = ListenUDP

// Provisioner runs provisioning sessions, one at a time.
type Provisioner struct {
	station wifi.Station
	store   Store
	opts    Options

	mu       sync.Mutex
	running  bool
	listener *Listener
}

// New returns a Provisioner applying credentials through station and
// persisting the outcome in store.
func New(station wifi.Station, store Store, opts *Options) *Provisioner {
	return &Provisioner{
		station: station,
		store:   store,
		opts:    opts.withDefaults(),
	}
}

// Run binds the rendezvous socket and runs a session, see Serve.
func (p *Provisioner) Run(ctx context.Context, timeout time.Duration) (*Record, error) {
	conn, err := listenUDP(p.opts.Listen)
	if err != nil {
		return nil, &FailedError{Reason: err}
	}
	return p.Serve(ctx, conn, timeout)
}

// Serve runs a session on conn, which it takes ownership of. It
// waits, up to timeout or forever if negative, for connectivity and
// the token, then persists them and returns them. The credential is
// read back from the network stack. Failures are *FailedError, no
// record is written in that case.
func (p *Provisioner) Serve(ctx context.Context, conn net.PacketConn, timeout time.Duration) (*Record, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		conn.Close()
		return nil, ErrBusy
	}
	flags := barrier.New()
	l := NewListener(conn, p.station, flags, &p.opts)
	p.running = true
	p.listener = l
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	cancelSub := p.station.OnConnected(func() {
		flags.Raise(barrier.StationConnected)
	})
	defer cancelSub()

	l.Start()
	logger.Noticef("provisioning session %s listening on %s", l.SessionID(), conn.LocalAddr())

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.Dead():
			cancel()
		case <-waitCtx.Done():
		}
	}()

	switch flags.AwaitAllContext(waitCtx, barrier.StationConnected|barrier.TokenReceived, timeout) {
	case barrier.Satisfied:
		return p.complete(l)
	case barrier.TimedOut:
		l.Stop()
		l.Wait()
		logger.Noticef("provisioning session %s: %v", l.SessionID(), ErrOverallTimeout)
		return nil, &FailedError{Reason: ErrOverallTimeout}
	}

	l.Stop()
	err := l.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = errors.New("listener stopped")
	}
	return nil, &FailedError{Reason: err}
}

func (p *Provisioner) complete(l *Listener) (*Record, error) {
	// let the reply burst finish
	l.Stop()
	l.Wait()

	token, _ := l.Token()
	cred, err := p.station.CurrentCredential()
	if err != nil {
		return nil, &FailedError{Reason: err}
	}
	rec := &Record{Token: token, Credential: cred}
	if err := saveRecord(p.store, rec); err != nil {
		return nil, &FailedError{Reason: err}
	}
	logger.Noticef("provisioning session %s: device provisioned on %s", l.SessionID(), cred)
	return rec, nil
}

// Status reports whether the device is provisioned and the state of
// the current or latest session.
func (p *Provisioner) Status() *netonboard.ProvisioningInfo {
	info := &netonboard.ProvisioningInfo{}
	if _, err := LoadRecord(p.store); err == nil {
		info.Provisioned = true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	info.InProgress = p.running
	if p.listener != nil {
		info.State = p.listener.State().String()
		info.Session = p.listener.SessionID()
		info.Network = p.listener.Network()
		info.Attempts = p.listener.Attempts()
	}
	return info
}

// Reset erases the stored record, it fails while a session runs.
func (p *Provisioner) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrBusy
	}
	return Reset(p.store)
}
