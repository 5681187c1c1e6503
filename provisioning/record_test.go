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
	"errors"

	"github.com/fxamacker/cbor/v2"
	. "gopkg.in/check.v1"

	"github.com/snapcore/netprov/provisioning"
	"github.com/snapcore/netprov/wifi"
)

type recordSuite struct {
	store *memStore
}

var _ = Suite(&recordSuite{})

func (s *recordSuite) SetUpTest(c *C) {
	s.store = newMemStore()
}

func (s *recordSuite) TestLoadNotProvisioned(c *C) {
	_, err := provisioning.LoadRecord(s.store)
	c.Check(err, Equals, provisioning.ErrNotProvisioned)
}

func (s *recordSuite) TestLoadIncomplete(c *C) {
	c.Assert(s.store.Set(provisioning.TokenKey, []byte("abc")), IsNil)
	_, err := provisioning.LoadRecord(s.store)
	c.Check(err, Equals, provisioning.ErrNotProvisioned)
}

func (s *recordSuite) TestLoad(c *C) {
	blob, err := cbor.Marshal(wifi.Credential{SSID: "net", Password: "pw"})
	c.Assert(err, IsNil)
	c.Assert(s.store.Set(provisioning.CredentialKey, blob), IsNil)
	c.Assert(s.store.Set(provisioning.TokenKey, []byte("abc")), IsNil)

	rec, err := provisioning.LoadRecord(s.store)
	c.Assert(err, IsNil)
	c.Check(rec.Token, Equals, "abc")
	c.Check(rec.Credential, Equals, wifi.Credential{SSID: "net", Password: "pw"})
}

func (s *recordSuite) TestLoadCorrupted(c *C) {
	c.Assert(s.store.Set(provisioning.CredentialKey, []byte{0xff, 0x00}), IsNil)
	c.Assert(s.store.Set(provisioning.TokenKey, []byte("abc")), IsNil)

	_, err := provisioning.LoadRecord(s.store)
	c.Check(err, ErrorMatches, "cannot decode stored network credential: .*")
}

func (s *recordSuite) TestReset(c *C) {
	c.Assert(s.store.Set(provisioning.CredentialKey, []byte("x")), IsNil)
	c.Assert(s.store.Set(provisioning.TokenKey, []byte("abc")), IsNil)
	c.Assert(s.store.Set("other", []byte("kept")), IsNil)

	c.Assert(provisioning.Reset(s.store), IsNil)
	c.Check(s.store.values, DeepEquals, map[string][]byte{"other": []byte("kept")})
}

func (s *recordSuite) TestErrors(c *C) {
	err := &provisioning.FailedError{Reason: &provisioning.SocketError{Op: "bind", Err: errors.New("boom")}}
	c.Check(errors.Is(err, provisioning.ErrProvisioningFailed), Equals, true)
	var serr *provisioning.SocketError
	c.Check(errors.As(err, &serr), Equals, true)
	c.Check(err, ErrorMatches, "provisioning failed: cannot bind on rendezvous socket: boom")
}
