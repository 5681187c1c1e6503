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
	"net"
	"time"

	"github.com/snapcore/netprov/testutil"
)

func MockListenUDP(f func(address string) (net.PacketConn, error)) (restore func()) {
	restore = testutil.Backup(&listenUDP)
	listenUDP = f
	return restore
}

// LinearDelays returns the first n pauses of the reply strategy
// before the attempt limit applies.
func LinearDelays(step time.Duration, n int) []time.Duration {
	timer := linear{step: step}.NewTimer(time.Now())
	delays := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		d, ok := timer.NextSleep(time.Now())
		if !ok {
			break
		}
		delays = append(delays, d)
	}
	return delays
}

var ReplyStrategy = replyStrategy

const (
	TokenKey      = tokenKey
	CredentialKey = credentialKey
)
