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

package netonboard

import (
	"encoding/json"
)

// Configurator implements the companion application side of the
// handshake: it builds offers and checks device replies.
type Configurator struct {
	// Offered counts the offers built so far.
	Offered int
}

func (c *Configurator) encode(o *offer) ([]byte, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, internal("can't serialize offer: %v", err)
	}
	if len(b) > MaxDatagramSize {
		return nil, internal("offer is %d bytes, more than the %d bytes allowed", len(b), MaxDatagramSize)
	}
	if len(*o.Token) > MaxTokenSize {
		return nil, internal("token longer than %d bytes", MaxTokenSize)
	}
	c.Offered++
	return b, nil
}

// Offer builds a credential-and-token offer.
func (c *Configurator) Offer(ssid, password, token string) ([]byte, error) {
	if len(ssid) > MaxSSIDSize {
		return nil, internal("ssid longer than %d bytes", MaxSSIDSize)
	}
	if len(password) > MaxPasswordSize {
		return nil, internal("password longer than %d bytes", MaxPasswordSize)
	}
	cmd := int(CmdCredentialAndToken)
	return c.encode(&offer{
		CmdType:  &cmd,
		SSID:     &ssid,
		Password: &password,
		Token:    &token,
	})
}

// TokenOffer builds a token-only offer, for when the credential
// reached the device through a side channel.
func (c *Configurator) TokenOffer(token string) ([]byte, error) {
	cmd := int(CmdTokenOnly)
	return c.encode(&offer{
		CmdType: &cmd,
		Token:   &token,
	})
}

// RcvReply decodes a device reply.
func (c *Configurator) RcvReply(b []byte) (*DeviceReply, error) {
	if c.Offered == 0 {
		return nil, internal("an offer must have been sent")
	}
	var r reply
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, malformed("can't deserialize reply: %v", err)
	}
	if CmdType(r.CmdType) != CmdDeviceReply {
		return nil, malformed("expected %s, got %s", CmdDeviceReply, CmdType(r.CmdType))
	}
	return &DeviceReply{
		ProductID:    r.ProductID,
		DeviceName:   r.DeviceName,
		ProtoVersion: r.ProtoVersion,
	}, nil
}
