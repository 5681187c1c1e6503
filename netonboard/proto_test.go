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

package netonboard_test

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/snapcore/netprov/netonboard"
	"github.com/snapcore/netprov/testutil"
)

func Test(t *testing.T) { TestingT(t) }

type protoSuite struct {
	cftor *netonboard.Configurator
}

var _ = Suite(&protoSuite{})

func (s *protoSuite) SetUpTest(c *C) {
	s.cftor = &netonboard.Configurator{}
}

func (s *protoSuite) dump(c *C, b []byte) {
	c.Logf("%03d %s\n", len(b), b)
}

func (s *protoSuite) TestOfferCredentialAndToken(c *C) {
	b, err := s.cftor.Offer("net", "pw", "abc")
	c.Assert(err, IsNil)
	s.dump(c, b)
	c.Check(string(b), Equals, `{"cmdType":1,"ssid":"net","password":"pw","token":"abc"}`)

	o, err := netonboard.DecodeOffer(b)
	c.Assert(err, IsNil)
	c.Check(o, DeepEquals, &netonboard.CredentialOffer{
		Cmd:      netonboard.CmdCredentialAndToken,
		SSID:     "net",
		Password: "pw",
		Token:    "abc",
	})
}

func (s *protoSuite) TestOfferTokenOnly(c *C) {
	b, err := s.cftor.TokenOffer("abc")
	c.Assert(err, IsNil)
	s.dump(c, b)
	c.Check(string(b), Equals, `{"cmdType":0,"token":"abc"}`)

	o, err := netonboard.DecodeOffer(b)
	c.Assert(err, IsNil)
	c.Check(o, DeepEquals, &netonboard.CredentialOffer{
		Cmd:   netonboard.CmdTokenOnly,
		Token: "abc",
	})
}

func (s *protoSuite) TestDecodeOfferEmptySecretAccepted(c *C) {
	o, err := netonboard.DecodeOffer([]byte(`{"cmdType":1,"ssid":"","password":"","token":""}`))
	c.Assert(err, IsNil)
	c.Check(o.Cmd, Equals, netonboard.CmdCredentialAndToken)
	c.Check(o.SSID, Equals, "")
	c.Check(o.Password, Equals, "")
}

func (s *protoSuite) TestDecodeOfferTrailingNULs(c *C) {
	b := make([]byte, netonboard.MaxDatagramSize)
	copy(b, `{"cmdType":0,"token":"abc"}`)

	o, err := netonboard.DecodeOffer(b)
	c.Assert(err, IsNil)
	c.Check(o.Token, Equals, "abc")
}

func (s *protoSuite) TestDecodeOfferMalformed(c *C) {
	tests := []struct {
		in  string
		err string
	}{
		{"", `empty message \(2\)`},
		{"\x00\x00", `empty message \(2\)`},
		{"garbage", `can't deserialize offer: .* \(2\)`},
		{`{"cmdType":1,"ssid":"net"`, `can't deserialize offer: .* \(2\)`},
		{`[1,2]`, `can't deserialize offer: .* \(2\)`},
		{`{"cmdType":1,"ssid":"net","password":"pw"}`, `offer without token \(2\)`},
		{`{"cmdType":0,"token":null}`, `offer without token \(2\)`},
		{`{"cmdType":0,"token":42}`, `can't deserialize offer: .* \(2\)`},
		{`{"token":"abc"}`, `offer without cmdType \(2\)`},
		{`{"cmdType":"1","token":"abc"}`, `can't deserialize offer: .* \(2\)`},
		{`{"cmdType":2,"token":"abc"}`, `unexpected device-reply in offer \(2\)`},
		{`{"cmdType":7,"token":"abc"}`, `unexpected cmd-type\(7\) in offer \(2\)`},
		{`{"cmdType":0,"token":"` + strings.Repeat("t", 33) + `"}`, `token longer than 32 bytes \(2\)`},
		{`{"cmdType":1,"ssid":"` + strings.Repeat("s", 33) + `","password":"pw","token":"abc"}`, `ssid longer than 32 bytes \(2\)`},
		{`{"cmdType":1,"ssid":"net","password":"` + strings.Repeat("p", 65) + `","token":"abc"}`, `password longer than 64 bytes \(2\)`},
	}

	for _, t := range tests {
		o, err := netonboard.DecodeOffer([]byte(t.in))
		c.Check(o, IsNil)
		c.Check(err, ErrorMatches, t.err, Commentf("%q", t.in))
		c.Check(err, testutil.ErrorIs, netonboard.ErrMalformedMessage, Commentf("%q", t.in))
	}
}

func (s *protoSuite) TestDecodeOfferMissingCredential(c *C) {
	for _, in := range []string{
		`{"cmdType":1,"token":"abc"}`,
		`{"cmdType":1,"ssid":"net","token":"abc"}`,
		`{"cmdType":1,"password":"pw","token":"abc"}`,
	} {
		_, err := netonboard.DecodeOffer([]byte(in))
		c.Check(err, ErrorMatches, `offer without ssid or password \(3\)`)
		c.Check(err, testutil.ErrorIs, netonboard.ErrMissingCredential)
		c.Check(errors.Is(err, netonboard.ErrMalformedMessage), Equals, false)
	}
}

func (s *protoSuite) TestReply(c *C) {
	r, err := netonboard.NewDeviceReply("PRODUCT1", "dev-1")
	c.Assert(err, IsNil)

	b := netonboard.EncodeReply(r)
	s.dump(c, b)
	c.Check(string(b), Equals, `{"cmdType":2,"productId":"PRODUCT1","deviceName":"dev-1","protoVersion":"2.0"}`)
	c.Check(len(b) <= netonboard.MaxDatagramSize, Equals, true)

	_, err = s.cftor.TokenOffer("abc")
	c.Assert(err, IsNil)
	got, err := s.cftor.RcvReply(b)
	c.Assert(err, IsNil)
	c.Check(got, DeepEquals, r)
}

func (s *protoSuite) TestReplyTooBig(c *C) {
	_, err := netonboard.NewDeviceReply(strings.Repeat("p", 40), strings.Repeat("d", 40))
	c.Check(err, ErrorMatches, `device reply is 145 bytes, more than the 128 bytes allowed`)
}

func (s *protoSuite) TestRcvReplyErrors(c *C) {
	_, err := s.cftor.RcvReply([]byte(`{"cmdType":2}`))
	c.Check(err, ErrorMatches, `an offer must have been sent \(1\)`)

	_, err = s.cftor.Offer("net", "pw", "abc")
	c.Assert(err, IsNil)

	_, err = s.cftor.RcvReply([]byte(`xx`))
	c.Check(err, ErrorMatches, `can't deserialize reply: .* \(2\)`)

	_, err = s.cftor.RcvReply([]byte(`{"cmdType":1,"token":"abc"}`))
	c.Check(err, ErrorMatches, `expected device-reply, got credential-and-token \(2\)`)
}

func (s *protoSuite) TestOfferTooBig(c *C) {
	_, err := s.cftor.Offer(strings.Repeat("s", 32), strings.Repeat("p", 63), "abc")
	c.Check(err, ErrorMatches, `offer is \d+ bytes, more than the 128 bytes allowed \(1\)`)

	_, err = s.cftor.TokenOffer(strings.Repeat("t", 33))
	c.Check(err, ErrorMatches, `token longer than 32 bytes \(1\)`)

	_, err = s.cftor.Offer(strings.Repeat("s", 33), "pw", "abc")
	c.Check(err, ErrorMatches, `ssid longer than 32 bytes \(1\)`)
	_, err = s.cftor.Offer("net", strings.Repeat("p", 65), "abc")
	c.Check(err, ErrorMatches, `password longer than 64 bytes \(1\)`)
	c.Check(s.cftor.Offered, Equals, 0)
}

func (s *protoSuite) TestPairingURL(c *C) {
	u, err := netonboard.PairingURL("", "softap", "PRODUCT1", "dev 1")
	c.Assert(err, IsNil)

	parsed, err := url.Parse(u)
	c.Assert(err, IsNil)
	c.Check(parsed.Host, Equals, "iot.cloud.tencent.com")
	c.Check(parsed.Query(), DeepEquals, url.Values{
		"page":      {"softap"},
		"productId": {"PRODUCT1"},
		"ver":       {"v1"},
		"name":      {"dev 1"},
	})

	_, err = netonboard.PairingURL("://bad", "softap", "PRODUCT1", "dev")
	c.Check(err, ErrorMatches, `can't parse pairing url: .*`)
}
