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
	"time"

	"gopkg.in/retry.v1"
)

// linear pauses i*step after the i-th attempt.
type linear struct {
	step time.Duration
}

func (s linear) NewTimer(now time.Time) retry.Timer {
	return &linearTimer{step: s.step}
}

type linearTimer struct {
	step time.Duration
	n    int
}

func (t *linearTimer) NextSleep(now time.Time) (time.Duration, bool) {
	t.n++
	return time.Duration(t.n) * t.step, true
}

func replyStrategy(attempts int, step time.Duration) retry.Strategy {
	return retry.LimitCount(attempts, linear{step: step})
}
