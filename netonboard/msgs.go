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
	"fmt"
)

const (
	// MaxDatagramSize bounds every message of the handshake, in
	// either direction.
	MaxDatagramSize = 128
	// MaxTokenSize bounds the authentication token.
	MaxTokenSize = 32
	// MaxSSIDSize and MaxPasswordSize bound the network credential
	// as station configurations do.
	MaxSSIDSize     = 32
	MaxPasswordSize = 64
	// ProtoVersion is advertised in every device reply.
	ProtoVersion = "2.0"
)

// CmdType discriminates the handshake messages.
type CmdType int

const (
	// CmdTokenOnly carries only the token, the credential reaches the
	// device through a side channel.
	CmdTokenOnly CmdType = 0
	// CmdCredentialAndToken carries network credential and token.
	CmdCredentialAndToken CmdType = 1
	// CmdDeviceReply is sent back by the device once connected.
	CmdDeviceReply CmdType = 2
)

func (t CmdType) String() string {
	switch t {
	case CmdTokenOnly:
		return "token-only"
	case CmdCredentialAndToken:
		return "credential-and-token"
	case CmdDeviceReply:
		return "device-reply"
	}
	return fmt.Sprintf("cmd-type(%d)", int(t))
}

// CredentialOffer is what the companion application offers the device.
type CredentialOffer struct {
	Cmd      CmdType
	SSID     string
	Password string
	Token    string
}

// DeviceReply is what the device answers once connected.
type DeviceReply struct {
	ProductID    string
	DeviceName   string
	ProtoVersion string
}

// offer is the wire form of a CredentialOffer, pointers tell absent
// fields from empty ones
type offer struct {
	CmdType  *int    `json:"cmdType"`
	SSID     *string `json:"ssid,omitempty"`
	Password *string `json:"password,omitempty"`
	Token    *string `json:"token"`
}

// reply is the wire form of a DeviceReply, field order is the one
// expected by the companion application
type reply struct {
	CmdType      int    `json:"cmdType"`
	ProductID    string `json:"productId"`
	DeviceName   string `json:"deviceName"`
	ProtoVersion string `json:"protoVersion"`
}

type ErrorCode int

const (
	InternalErrorCode ErrorCode = iota + 1
	MalformedMessageCode
	MissingCredentialCode
)

type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d)", e.Msg, e.Code)
}

// Is makes errors.Is match any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Msg == "" || t.Msg == e.Msg)
}

func errorMaker(code ErrorCode) func(msgFmt string, v ...interface{}) *Error {
	return func(msgFmt string, v ...interface{}) *Error {
		return &Error{
			Code: code,
			Msg:  fmt.Sprintf(msgFmt, v...),
		}
	}
}

var (
	internal          = errorMaker(InternalErrorCode)
	malformed         = errorMaker(MalformedMessageCode)
	missingCredential = errorMaker(MissingCredentialCode)
)

var (
	// ErrMalformedMessage matches, via errors.Is, every decoding
	// failure of a message that is not well formed.
	ErrMalformedMessage = &Error{Code: MalformedMessageCode}
	// ErrMissingCredential matches, via errors.Is, a
	// credential-and-token offer lacking network name or secret.
	ErrMissingCredential = &Error{Code: MissingCredentialCode}
)
