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

package advertise

import (
	"net"

	"github.com/enbility/zeroconf/v3"

	"github.com/snapcore/netprov/testutil"
)

type Server = server

func MockRegister(f func(instance, service, domain string, port int, txt []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (Server, error)) (restore func()) {
	restore = testutil.Backup(&register)
	register = f
	return restore
}

func MockInterfaceByName(f func(name string) (*net.Interface, error)) (restore func()) {
	restore = testutil.Backup(&interfaceByName)
	interfaceByName = f
	return restore
}
