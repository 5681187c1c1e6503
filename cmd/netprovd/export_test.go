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

package main

import (
	"context"
	"os"

	"github.com/snapcore/netprov/advertise"
	"github.com/snapcore/netprov/testutil"
	"github.com/snapcore/netprov/wifi"
)

func MockNewStation(f func(iface string) (wifi.Station, func() error, error)) (restore func()) {
	restore = testutil.Backup(&newStation)
	newStation = f
	return restore
}

func MockSdNotify(f func(unsetEnvironment bool, state string) (bool, error)) (restore func()) {
	restore = testutil.Backup(&sdNotify)
	sdNotify = f
	return restore
}

func MockStartAdvertise(f func(cfg *advertise.Config) (*advertise.Announcement, error)) (restore func()) {
	restore = testutil.Backup(&startAdvertise)
	startAdvertise = f
	return restore
}

func MockNotifyContext(f func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc)) (restore func()) {
	restore = testutil.Backup(&notifyContext)
	notifyContext = f
	return restore
}
