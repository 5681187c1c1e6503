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

// Package motd shows the pairing instructions to console users
// through a message of the day fragment while the device waits to be
// provisioned.
package motd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/snapcore/netprov/dirs"
)

const (
	fragmentName = "50-netprov"

	// See `man 8 pam_motd`
	maxMotdSize = 64 * 1024
)

func fragmentPath() string {
	return dirs.Root.MotdDir().Join(fragmentName)
}

func message(pairingURL string) string {
	return fmt.Sprintf(`This device is waiting for a network credential.
Pair it with the companion application using:

  %s
`, pairingURL)
}

// SetPairing writes the fragment with the pairing instructions.
func SetPairing(pairingURL string) error {
	msg := []byte(message(pairingURL))
	if len(msg) > maxMotdSize {
		return fmt.Errorf("cannot set message of the day: size %d bytes exceeds limit of %d bytes", len(msg), maxMotdSize)
	}
	p := fragmentPath()
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("cannot set message of the day: %v", err)
	}
	// replace atomically, pam_motd may be reading it
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, msg, 0644); err != nil {
		return fmt.Errorf("cannot set message of the day: %v", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cannot set message of the day: %v", err)
	}
	return nil
}

// Get returns the current fragment, empty if there is none.
func Get() (string, error) {
	b, err := os.ReadFile(fragmentPath())
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cannot get message of the day: %v", err)
	}
	return string(b), nil
}

// Clear removes the fragment, if any.
func Clear() error {
	if err := os.Remove(fragmentPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cannot unset message of the day: %v", err)
	}
	return nil
}
