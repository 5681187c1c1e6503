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

// Package wifi defines the capability the provisioning handshake uses
// to drive the network stack and implements it on top of
// NetworkManager.
package wifi

import (
	"errors"
	"fmt"
)

// ErrNoCredential is returned by CurrentCredential when no credential
// is applied.
var ErrNoCredential = errors.New("no network credential applied")

// Credential is a Wi-Fi network name and secret.
type Credential struct {
	SSID     string `json:"ssid" cbor:"ssid"`
	Password string `json:"password" cbor:"password"`
}

// IsZero returns whether the credential is empty, applying an empty
// credential clears the station configuration.
func (c Credential) IsZero() bool {
	return c.SSID == "" && c.Password == ""
}

// String does not reveal the secret.
func (c Credential) String() string {
	if c.Password == "" {
		return fmt.Sprintf("%q (open)", c.SSID)
	}
	return fmt.Sprintf("%q (secret: %d bytes)", c.SSID, len(c.Password))
}

// Station is the network stack seen from the provisioning handshake.
type Station interface {
	// ApplyCredential configures the station with cred, the zero
	// Credential clears the configuration.
	ApplyCredential(cred Credential) error
	// Connect starts connecting with the applied credential, it does
	// not wait for the connection to be established.
	Connect() error
	// Disconnect drops any connection of the station.
	Disconnect() error
	// CurrentCredential returns the credential as held by the stack.
	CurrentCredential() (Credential, error)
	// OnConnected registers f to be called, from a goroutine owned
	// by the station, every time connectivity is established. The
	// returned function cancels the registration.
	OnConnected(f func()) (cancel func())
}
