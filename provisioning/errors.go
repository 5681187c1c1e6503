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
)

var (
	// ErrConnectTimeout is the outcome of an attempt whose credential
	// did not bring connectivity in time, the session goes on.
	ErrConnectTimeout = errors.New("timeout waiting for connection")
	// ErrOverallTimeout is the reason of a failed session that did
	// not complete in time.
	ErrOverallTimeout = errors.New("provisioning did not complete in time")
	// ErrProvisioningFailed matches, via errors.Is, every *FailedError.
	ErrProvisioningFailed = errors.New("provisioning failed")
	// ErrBusy is returned when a session is already running.
	ErrBusy = errors.New("provisioning already in progress")
	// ErrNotProvisioned is returned by LoadRecord when no complete
	// record is stored.
	ErrNotProvisioned = errors.New("device is not provisioned")
)

// SocketError is a failure of the rendezvous socket, fatal to the
// session.
type SocketError struct {
	Op  string
	Err error
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("cannot %s on rendezvous socket: %v", e.Op, e.Err)
}

func (e *SocketError) Unwrap() error {
	return e.Err
}

// FailedError is the outcome of a session that did not succeed.
type FailedError struct {
	Reason error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("provisioning failed: %v", e.Reason)
}

func (e *FailedError) Unwrap() error {
	return e.Reason
}

func (e *FailedError) Is(target error) bool {
	return target == ErrProvisioningFailed
}
