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
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeOffer decodes a datagram received from the companion
// application. Empty network name or secret are accepted, the
// network stack gets to reject them.
func DecodeOffer(b []byte) (*CredentialOffer, error) {
	// the companion may send the payload NUL terminated
	b = bytes.TrimRight(b, "\x00")
	if len(b) == 0 {
		return nil, malformed("empty message")
	}
	var o offer
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, malformed("can't deserialize offer: %v", err)
	}
	if o.Token == nil {
		return nil, malformed("offer without token")
	}
	if len(*o.Token) > MaxTokenSize {
		return nil, malformed("token longer than %d bytes", MaxTokenSize)
	}
	if o.CmdType == nil {
		return nil, malformed("offer without cmdType")
	}
	cmd := CmdType(*o.CmdType)
	res := &CredentialOffer{
		Cmd:   cmd,
		Token: *o.Token,
	}
	switch cmd {
	case CmdTokenOnly:
	case CmdCredentialAndToken:
		if o.SSID == nil || o.Password == nil {
			return nil, missingCredential("offer without ssid or password")
		}
		if len(*o.SSID) > MaxSSIDSize {
			return nil, malformed("ssid longer than %d bytes", MaxSSIDSize)
		}
		if len(*o.Password) > MaxPasswordSize {
			return nil, malformed("password longer than %d bytes", MaxPasswordSize)
		}
		res.SSID = *o.SSID
		res.Password = *o.Password
	default:
		return nil, malformed("unexpected %s in offer", cmd)
	}
	return res, nil
}

// NewDeviceReply builds the reply the device sends once connected,
// checking that it fits in a datagram.
func NewDeviceReply(productID, deviceName string) (*DeviceReply, error) {
	r := &DeviceReply{
		ProductID:    productID,
		DeviceName:   deviceName,
		ProtoVersion: ProtoVersion,
	}
	b, err := json.Marshal(r.wire())
	if err != nil {
		return nil, internal("can't serialize reply: %v", err)
	}
	if len(b) > MaxDatagramSize {
		return nil, fmt.Errorf("device reply is %d bytes, more than the %d bytes allowed", len(b), MaxDatagramSize)
	}
	return r, nil
}

func (r *DeviceReply) wire() *reply {
	return &reply{
		CmdType:      int(CmdDeviceReply),
		ProductID:    r.ProductID,
		DeviceName:   r.DeviceName,
		ProtoVersion: r.ProtoVersion,
	}
}

// EncodeReply serializes a reply built with NewDeviceReply.
func EncodeReply(r *DeviceReply) []byte {
	b, err := json.Marshal(r.wire())
	if err != nil {
		// only strings, cannot happen
		panic(fmt.Sprintf("internal error: can't serialize reply: %v", err))
	}
	return b
}
