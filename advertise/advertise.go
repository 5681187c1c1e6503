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

// Package advertise announces the provisioning rendezvous port over
// mDNS so that companion applications can find the device without
// knowing its address.
package advertise

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/snapcore/netprov/netonboard"
)

const (
	ServiceType = "_netprov._udp"
	Domain      = "local."

	// mDNS labels are bounded to 63 bytes
	maxInstanceNameLen = 63
)

// Config describes the announcement.
type Config struct {
	ProductID  string
	DeviceName string
	Port       int
	// Interface restricts the announcement, empty means all.
	Interface string
	TTL       time.Duration
}

type server interface {
	Shutdown()
}

var register = func(instance, service, domain string, port int, txt []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (server, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces, opts...)
}

var interfaceByName = net.InterfaceByName

// Announcement is a running mDNS announcement.
type Announcement struct {
	mu     sync.Mutex
	server server
}

func instanceName(cfg *Config) string {
	name := fmt.Sprintf("%s-%s", cfg.ProductID, cfg.DeviceName)
	if len(name) > maxInstanceNameLen {
		name = name[:maxInstanceNameLen]
	}
	return name
}

func txtRecords(cfg *Config) []string {
	return []string{
		"pid=" + cfg.ProductID,
		"name=" + cfg.DeviceName,
		"ver=" + netonboard.ProtoVersion,
	}
}

// Start starts announcing.
func Start(cfg *Config) (*Announcement, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("cannot announce invalid port %d", cfg.Port)
	}
	var ifaces []net.Interface
	if cfg.Interface != "" {
		iface, err := interfaceByName(cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("cannot announce on %q: %v", cfg.Interface, err)
		}
		ifaces = []net.Interface{*iface}
	}
	var opts []zeroconf.ServerOption
	if cfg.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(cfg.TTL.Seconds())))
	}
	srv, err := register(instanceName(cfg), ServiceType, Domain, cfg.Port, txtRecords(cfg), ifaces, opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot register mDNS service: %v", err)
	}
	return &Announcement{server: srv}, nil
}

// Stop stops announcing, it can be called more than once.
func (a *Announcement) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
