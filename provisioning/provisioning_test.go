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

package provisioning_test

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"time"

	. "gopkg.in/check.v1"

	"github.com/snapcore/netprov/logger"
	"github.com/snapcore/netprov/netonboard"
	"github.com/snapcore/netprov/provisioning"
	"github.com/snapcore/netprov/storage"
	"github.com/snapcore/netprov/testutil"
	"github.com/snapcore/netprov/wifi"
	"github.com/snapcore/netprov/wifi/wifitest"
)

// memStore is an in-memory provisioning.Store counting writes.
type memStore struct {
	mu     sync.Mutex
	values map[string][]byte
	sets   map[string]int
	setErr error
}

func newMemStore() *memStore {
	return &memStore{
		values: make(map[string][]byte),
		sets:   make(map[string]int),
	}
}

func (m *memStore) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (m *memStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.sets[key]++
	m.values[key] = value
	return nil
}

func (m *memStore) Erase(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memStore) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, count := range m.sets {
		n += count
	}
	return n
}

type outcome struct {
	rec *provisioning.Record
	err error
}

type provisioningSuite struct {
	restore func()

	station   *wifitest.Station
	store     *memStore
	p         *provisioning.Provisioner
	conn      net.PacketConn
	companion net.PacketConn
}

var _ = Suite(&provisioningSuite{})

func (s *provisioningSuite) SetUpTest(c *C) {
	_, s.restore = logger.MockLogger()

	s.station = wifitest.New()
	s.station.SetReachable("net", "pw")
	s.store = newMemStore()
	s.p = provisioning.New(s.station, s.store, &testOptions)

	var err error
	s.conn, err = provisioning.ListenUDP("127.0.0.1:0")
	c.Assert(err, IsNil)
	s.companion, err = net.ListenPacket("udp4", "127.0.0.1:0")
	c.Assert(err, IsNil)
}

func (s *provisioningSuite) TearDownTest(c *C) {
	s.companion.Close()
	s.restore()
}

func (s *provisioningSuite) serve(ctx context.Context, timeout time.Duration) <-chan outcome {
	ch := make(chan outcome, 1)
	go func() {
		rec, err := s.p.Serve(ctx, s.conn, timeout)
		ch <- outcome{rec, err}
	}()
	return ch
}

func (s *provisioningSuite) wait(c *C, ch <-chan outcome) outcome {
	select {
	case o := <-ch:
		return o
	case <-time.After(10 * time.Second):
		c.Fatal("provisioning did not return")
	}
	return outcome{}
}

func (s *provisioningSuite) waitListening(c *C) {
	waitFor(c, "listening", func() bool {
		return s.p.Status().State == provisioning.Listening.String()
	})
}

func (s *provisioningSuite) sendOffer(c *C, ssid, password, token string) {
	var cfg netonboard.Configurator
	b, err := cfg.Offer(ssid, password, token)
	c.Assert(err, IsNil)
	_, err = s.companion.WriteTo(b, s.conn.LocalAddr())
	c.Assert(err, IsNil)
}

func (s *provisioningSuite) TestSuccess(c *C) {
	ch := s.serve(context.Background(), 5*time.Second)
	s.waitListening(c)
	c.Check(s.p.Status().InProgress, Equals, true)

	s.sendOffer(c, "net", "pw", "abc")
	o := s.wait(c, ch)

	c.Assert(o.err, IsNil)
	c.Check(o.rec, DeepEquals, &provisioning.Record{
		Token:      "abc",
		Credential: wifi.Credential{SSID: "net", Password: "pw"},
	})
	// exactly one token and one credential
	c.Check(s.store.sets, DeepEquals, map[string]int{
		provisioning.TokenKey:      1,
		provisioning.CredentialKey: 1,
	})
	rec, err := provisioning.LoadRecord(s.store)
	c.Assert(err, IsNil)
	c.Check(rec, DeepEquals, o.rec)

	info := s.p.Status()
	c.Check(info.Provisioned, Equals, true)
	c.Check(info.InProgress, Equals, false)
	c.Check(info.State, Equals, "done")
	c.Check(info.Session, Not(Equals), "")
}

func (s *provisioningSuite) TestRetryPersistsOnlySecondAttempt(c *C) {
	ch := s.serve(context.Background(), 5*time.Second)
	s.waitListening(c)

	s.sendOffer(c, "unreachable", "pw", "abc")
	waitFor(c, "rollback", hasCall(s.station, "clear"))
	c.Check(s.store.writes(), Equals, 0)
	info := s.p.Status()
	c.Check(info.Network, Equals, "unreachable")
	c.Check(info.Attempts, Equals, 1)

	s.sendOffer(c, "net", "pw", "abc")
	o := s.wait(c, ch)

	c.Assert(o.err, IsNil)
	c.Check(o.rec.Credential, Equals, wifi.Credential{SSID: "net", Password: "pw"})
	c.Check(o.rec.Token, Equals, "abc")
	c.Check(s.store.writes(), Equals, 2)
	rec, err := provisioning.LoadRecord(s.store)
	c.Assert(err, IsNil)
	c.Check(rec.Credential.SSID, Equals, "net")
	info = s.p.Status()
	c.Check(info.Network, Equals, "net")
	c.Check(info.Attempts, Equals, 2)
}

func (s *provisioningSuite) TestTokenOnly(c *C) {
	// the credential arrived through a side channel
	c.Assert(s.station.ApplyCredential(wifi.Credential{SSID: "side", Password: "channel"}), IsNil)

	ch := s.serve(context.Background(), 5*time.Second)
	s.waitListening(c)
	s.station.Fire()

	var cfg netonboard.Configurator
	b, err := cfg.TokenOffer("tok")
	c.Assert(err, IsNil)
	_, err = s.companion.WriteTo(b, s.conn.LocalAddr())
	c.Assert(err, IsNil)

	o := s.wait(c, ch)
	c.Assert(o.err, IsNil)
	c.Check(o.rec, DeepEquals, &provisioning.Record{
		Token:      "tok",
		Credential: wifi.Credential{SSID: "side", Password: "channel"},
	})
}

func (s *provisioningSuite) TestOverallTimeout(c *C) {
	ch := s.serve(context.Background(), 100*time.Millisecond)
	o := s.wait(c, ch)

	c.Check(o.rec, IsNil)
	c.Check(o.err, testutil.ErrorIs, provisioning.ErrProvisioningFailed)
	c.Check(o.err, testutil.ErrorIs, provisioning.ErrOverallTimeout)
	c.Check(o.err, ErrorMatches, "provisioning failed: provisioning did not complete in time")
	c.Check(s.store.writes(), Equals, 0)

	info := s.p.Status()
	c.Check(info.Provisioned, Equals, false)
	c.Check(info.InProgress, Equals, false)
	c.Check(info.State, Equals, "stopped")
}

func (s *provisioningSuite) TestTimeoutAfterFailedAttempt(c *C) {
	ch := s.serve(context.Background(), 500*time.Millisecond)
	s.waitListening(c)
	s.sendOffer(c, "unreachable", "pw", "abc")

	o := s.wait(c, ch)
	c.Check(o.err, testutil.ErrorIs, provisioning.ErrOverallTimeout)
	c.Check(s.store.writes(), Equals, 0)
}

func (s *provisioningSuite) TestSocketError(c *C) {
	s.conn = &testConn{PacketConn: s.conn, readErr: errors.New("boom")}
	ch := s.serve(context.Background(), 5*time.Second)
	o := s.wait(c, ch)

	c.Check(o.err, testutil.ErrorIs, provisioning.ErrProvisioningFailed)
	var serr *provisioning.SocketError
	c.Check(errors.As(o.err, &serr), Equals, true)
	c.Check(o.err, ErrorMatches, "provisioning failed: cannot receive on rendezvous socket: boom")
	c.Check(s.store.writes(), Equals, 0)
}

func (s *provisioningSuite) TestCanceled(c *C) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.serve(ctx, -1)
	s.waitListening(c)
	cancel()

	o := s.wait(c, ch)
	c.Check(o.err, testutil.ErrorIs, provisioning.ErrProvisioningFailed)
	c.Check(o.err, testutil.ErrorIs, context.Canceled)
}

func (s *provisioningSuite) TestPersistFailure(c *C) {
	s.store.setErr = errors.New("disk full")
	ch := s.serve(context.Background(), 5*time.Second)
	s.waitListening(c)
	s.sendOffer(c, "net", "pw", "abc")

	o := s.wait(c, ch)
	c.Check(o.err, testutil.ErrorIs, provisioning.ErrProvisioningFailed)
	c.Check(o.err, ErrorMatches, "provisioning failed: disk full")
}

func (s *provisioningSuite) TestBusy(c *C) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.serve(ctx, -1)
	s.waitListening(c)

	other, err := provisioning.ListenUDP("127.0.0.1:0")
	c.Assert(err, IsNil)
	_, err = s.p.Serve(context.Background(), other, time.Second)
	c.Check(err, Equals, provisioning.ErrBusy)
	c.Check(s.p.Reset(), Equals, provisioning.ErrBusy)

	cancel()
	s.wait(c, ch)
	c.Check(s.p.Reset(), IsNil)
}

func (s *provisioningSuite) TestReset(c *C) {
	ch := s.serve(context.Background(), 5*time.Second)
	s.waitListening(c)
	s.sendOffer(c, "net", "pw", "abc")
	c.Assert(s.wait(c, ch).err, IsNil)
	c.Check(s.p.Status().Provisioned, Equals, true)

	c.Assert(s.p.Reset(), IsNil)
	c.Check(s.p.Status().Provisioned, Equals, false)
	_, err := provisioning.LoadRecord(s.store)
	c.Check(err, Equals, provisioning.ErrNotProvisioned)
}

func (s *provisioningSuite) TestRunBindFailure(c *C) {
	restore := provisioning.MockListenUDP(func(address string) (net.PacketConn, error) {
		c.Check(address, Equals, "127.0.0.1:9999")
		return nil, &provisioning.SocketError{Op: "bind", Err: errors.New("address in use")}
	})
	defer restore()
	s.conn.Close()

	opts := testOptions
	opts.Listen = "127.0.0.1:9999"
	p := provisioning.New(s.station, s.store, &opts)
	_, err := p.Run(context.Background(), time.Second)
	c.Check(err, testutil.ErrorIs, provisioning.ErrProvisioningFailed)
	c.Check(err, ErrorMatches, "provisioning failed: cannot bind on rendezvous socket: address in use")
}

func (s *provisioningSuite) TestRun(c *C) {
	restore := provisioning.MockListenUDP(func(address string) (net.PacketConn, error) {
		c.Check(address, Equals, ":8266")
		return s.conn, nil
	})
	defer restore()

	p := provisioning.New(s.station, s.store, nil)
	ch := make(chan outcome, 1)
	go func() {
		rec, err := p.Run(context.Background(), 5*time.Second)
		ch <- outcome{rec, err}
	}()
	waitFor(c, "listening", func() bool {
		return p.Status().State == provisioning.Listening.String()
	})
	s.sendOffer(c, "net", "pw", "abc")

	o := s.wait(c, ch)
	c.Assert(o.err, IsNil)
	c.Check(o.rec.Token, Equals, "abc")
}

func (s *provisioningSuite) TestWithBoltStore(c *C) {
	store, err := storage.Open(filepath.Join(c.MkDir(), "state.db"))
	c.Assert(err, IsNil)
	defer store.Close()

	p := provisioning.New(s.station, store, &testOptions)
	ch := make(chan outcome, 1)
	go func() {
		rec, err := p.Serve(context.Background(), s.conn, 5*time.Second)
		ch <- outcome{rec, err}
	}()
	waitFor(c, "listening", func() bool {
		return p.Status().State == provisioning.Listening.String()
	})
	s.sendOffer(c, "net", "pw", "abc")
	c.Assert(s.wait(c, ch).err, IsNil)

	rec, err := provisioning.LoadRecord(store)
	c.Assert(err, IsNil)
	c.Check(rec, DeepEquals, &provisioning.Record{
		Token:      "abc",
		Credential: wifi.Credential{SSID: "net", Password: "pw"},
	})
}
