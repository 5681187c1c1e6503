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
	"errors"
	"net"
	"time"

	"github.com/juju/ratelimit"
	"gopkg.in/retry.v1"
	"gopkg.in/tomb.v2"

	"github.com/snapcore/netprov/barrier"
	"github.com/snapcore/netprov/logger"
	"github.com/snapcore/netprov/netonboard"
	"github.com/snapcore/netprov/wifi"
)

var timeNow = time.Now

// Listener is the worker owning the rendezvous socket for one
// session: it receives offers, applies credentials and replies once
// connected.
type Listener struct {
	conn    net.PacketConn
	station wifi.Station
	flags   *barrier.Barrier
	opts    Options

	session *session
	// noisy throttles the notices about malformed datagrams
	noisy *ratelimit.Bucket

	tomb tomb.Tomb
}

// NewListener returns a listener for conn, which it closes when it
// exits. Flags are raised on flags.
func NewListener(conn net.PacketConn, station wifi.Station, flags *barrier.Barrier, opts *Options) *Listener {
	return &Listener{
		conn:    conn,
		station: station,
		flags:   flags,
		opts:    opts.withDefaults(),
		session: newSession(),
		noisy:   ratelimit.NewBucketWithRate(0.1, 5),
	}
}

// Start starts the listener goroutine.
func (l *Listener) Start() {
	l.tomb.Go(l.loop)
}

// Stop requests the listener to stop. It is noticed the next time
// the listener is waiting for datagrams, in-flight work is never
// interrupted.
func (l *Listener) Stop() {
	l.tomb.Kill(nil)
}

// Wait waits for the listener to exit and returns its error, a
// *SocketError if the socket failed.
func (l *Listener) Wait() error {
	return l.tomb.Wait()
}

// Dead is closed once the listener exited.
func (l *Listener) Dead() <-chan struct{} {
	return l.tomb.Dead()
}

// Err returns the error of an exited listener.
func (l *Listener) Err() error {
	err := l.tomb.Err()
	if err == tomb.ErrStillAlive {
		return nil
	}
	return err
}

// State returns the current state.
func (l *Listener) State() State {
	return l.session.getState()
}

// Token returns the token of the latest decoded offer.
func (l *Listener) Token() (string, bool) {
	return l.session.getToken()
}

// Attempts returns how many offered credentials were applied.
func (l *Listener) Attempts() int {
	return l.session.getAttempts()
}

// Network returns the network name of the latest applied offer.
func (l *Listener) Network() string {
	return l.session.getNetwork()
}

// SessionID identifies the session in logs.
func (l *Listener) SessionID() string {
	return l.session.id
}

func (l *Listener) loop() error {
	defer l.conn.Close()

	buf := make([]byte, l.opts.BufferSize)
	for {
		select {
		case <-l.tomb.Dying():
			l.session.setState(Stopped)
			logger.Debugf("provisioning session %s stopped", l.session.id)
			return nil
		default:
		}
		l.session.setState(Listening)

		if err := l.conn.SetReadDeadline(timeNow().Add(l.opts.PollInterval)); err != nil {
			return l.socketError("set deadline", err)
		}
		n, addr, err := l.conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return l.socketError("receive", err)
		}

		offer, err := netonboard.DecodeOffer(buf[:n])
		if err != nil {
			l.discard(addr, err)
			continue
		}
		l.session.setToken(offer.Token)
		logger.Debugf("provisioning session %s: %s offer from %s", l.session.id, offer.Cmd, addr)

		if l.handle(offer, addr) {
			l.session.setState(Done)
			logger.Noticef("provisioning session %s done", l.session.id)
			return nil
		}
	}
}

func (l *Listener) socketError(op string, err error) error {
	l.session.setState(SocketFailed)
	serr := &SocketError{Op: op, Err: err}
	logger.Noticef("provisioning session %s: %v", l.session.id, serr)
	return serr
}

func (l *Listener) discard(addr net.Addr, err error) {
	if l.noisy.TakeAvailable(1) == 1 {
		logger.Noticef("provisioning session %s: discarding datagram from %s: %v", l.session.id, addr, err)
		return
	}
	logger.Debugf("provisioning session %s: discarding datagram from %s: %v", l.session.id, addr, err)
}

// handle drives one attempt and returns whether the session is done.
func (l *Listener) handle(offer *netonboard.CredentialOffer, addr net.Addr) bool {
	switch offer.Cmd {
	case netonboard.CmdTokenOnly:
		// the credential comes through a side channel, the token
		// alone completes this side of the handshake but the reply
		// still needs connectivity
		l.flags.Raise(barrier.TokenReceived)
		if !l.awaitConnection() {
			logger.Noticef("provisioning session %s: %v, please try again", l.session.id, ErrConnectTimeout)
			return false
		}
	case netonboard.CmdCredentialAndToken:
		l.session.setState(CredentialApplied)
		cred := wifi.Credential{SSID: offer.SSID, Password: offer.Password}
		l.session.setApplied(offer.SSID)
		if err := l.apply(cred); err != nil {
			logger.Noticef("provisioning session %s: %v", l.session.id, err)
			l.rollback()
			return false
		}
		if !l.awaitConnection() {
			logger.Noticef("provisioning session %s: %v to %s, please try again", l.session.id, ErrConnectTimeout, cred)
			l.rollback()
			return false
		}
		l.flags.Raise(barrier.TokenReceived)
	default:
		return false
	}

	l.session.setState(Replying)
	l.reply(addr)
	return true
}

func (l *Listener) apply(cred wifi.Credential) error {
	if err := l.station.ApplyCredential(cred); err != nil {
		return err
	}
	return l.station.Connect()
}

func (l *Listener) awaitConnection() bool {
	l.session.setState(AwaitingConnection)
	if l.flags.AwaitAll(barrier.StationConnected, l.opts.ConnectTimeout) == barrier.Satisfied {
		return true
	}
	l.session.setState(ConnectTimeout)
	return false
}

// rollback drops the effect of an attempt that did not connect.
func (l *Listener) rollback() {
	if err := l.station.Disconnect(); err != nil {
		logger.Noticef("provisioning session %s: %v", l.session.id, err)
	}
	if err := l.station.ApplyCredential(wifi.Credential{}); err != nil {
		logger.Noticef("provisioning session %s: cannot clear network credential: %v", l.session.id, err)
	}
}

// reply sends the device reply a few times to addr, the companion
// does not acknowledge it. A send failure ends the burst.
func (l *Listener) reply(addr net.Addr) {
	r, err := netonboard.NewDeviceReply(l.opts.ProductID, l.opts.DeviceName)
	if err != nil {
		logger.Noticef("provisioning session %s: cannot build device reply: %v", l.session.id, err)
		return
	}
	b := netonboard.EncodeReply(r)
	sent := 0
	for a := retry.Start(replyStrategy(l.opts.ReplyAttempts, l.opts.ReplyStep), nil); a.Next(); {
		if _, err := l.conn.WriteTo(b, addr); err != nil {
			logger.Noticef("provisioning session %s: cannot send device reply to %s: %v", l.session.id, addr, err)
			break
		}
		sent++
	}
	logger.Debugf("provisioning session %s: sent %d device replies to %s", l.session.id, sent, addr)
}
