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
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/snapcore/netprov/storage"
	"github.com/snapcore/netprov/wifi"
)

const (
	tokenKey      = "token"
	credentialKey = "wifi-credential"
)

// Store is the persistent key-value capability holding the record.
// Get returns storage.ErrNotFound for missing keys.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Erase(key string) error
}

// Record is what a successful session persists.
type Record struct {
	Token      string
	Credential wifi.Credential
}

func saveRecord(store Store, rec *Record) error {
	blob, err := cbor.Marshal(rec.Credential)
	if err != nil {
		return fmt.Errorf("cannot encode network credential: %v", err)
	}
	if err := store.Set(credentialKey, blob); err != nil {
		return err
	}
	// the token goes last, its presence marks a complete record
	return store.Set(tokenKey, []byte(rec.Token))
}

// LoadRecord returns the stored record or ErrNotProvisioned.
func LoadRecord(store Store) (*Record, error) {
	token, err := store.Get(tokenKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotProvisioned
	}
	if err != nil {
		return nil, err
	}
	blob, err := store.Get(credentialKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotProvisioned
	}
	if err != nil {
		return nil, err
	}
	rec := &Record{Token: string(token)}
	if err := cbor.Unmarshal(blob, &rec.Credential); err != nil {
		return nil, fmt.Errorf("cannot decode stored network credential: %v", err)
	}
	return rec, nil
}

// Reset erases the stored record.
func Reset(store Store) error {
	if err := store.Erase(tokenKey); err != nil {
		return err
	}
	return store.Erase(credentialKey)
}
