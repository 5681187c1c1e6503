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

package wifi

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/snapcore/netprov/logger"
)

const (
	nmBusName      = "org.freedesktop.NetworkManager"
	nmObjectPath   = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	nmInterface    = "org.freedesktop.NetworkManager"
	nmDeviceIface  = "org.freedesktop.NetworkManager.Device"
	nmSettingsConn = "org.freedesktop.NetworkManager.Settings.Connection"
	nmActiveConn   = "org.freedesktop.NetworkManager.Connection.Active"
	dbusProperties = "org.freedesktop.DBus.Properties"

	wirelessSetting = "802-11-wireless"
	securitySetting = "802-11-wireless-security"

	// NM_DEVICE_STATE_ACTIVATED
	nmDeviceStateActivated = uint32(100)

	connectionIDPrefix = "netprov-"
)

// busConn is the subset of *dbus.Conn used by NetworkManager.
type busConn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
}

// NetworkManager implements Station for one wireless interface
// managed by NetworkManager over the system bus.
type NetworkManager struct {
	conn   busConn
	iface  string
	device dbus.ObjectPath

	mu       sync.Mutex
	pending  *Credential
	connPath dbus.ObjectPath
	subs     map[int]func()
	nextSub  int

	signals chan *dbus.Signal
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewNetworkManager returns a Station driving iface through
// NetworkManager, conn is usually from dbus.SystemBus().
func NewNetworkManager(conn busConn, iface string) (*NetworkManager, error) {
	var device dbus.ObjectPath
	nm := conn.Object(nmBusName, nmObjectPath)
	if err := nm.Call(nmInterface+".GetDeviceByIpIface", 0, iface).Store(&device); err != nil {
		return nil, fmt.Errorf("cannot find network device %q: %v", iface, err)
	}
	n := &NetworkManager{
		conn:    conn,
		iface:   iface,
		device:  device,
		subs:    make(map[int]func()),
		signals: make(chan *dbus.Signal, 16),
		done:    make(chan struct{}),
	}
	if err := conn.AddMatchSignal(n.matchOptions()...); err != nil {
		return nil, fmt.Errorf("cannot watch network device %q: %v", iface, err)
	}
	conn.Signal(n.signals)
	n.wg.Add(1)
	go n.dispatch()
	return n, nil
}

func (n *NetworkManager) matchOptions() []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchObjectPath(n.device),
		dbus.WithMatchInterface(nmDeviceIface),
		dbus.WithMatchMember("StateChanged"),
	}
}

// Close stops watching the device.
func (n *NetworkManager) Close() error {
	n.conn.RemoveSignal(n.signals)
	err := n.conn.RemoveMatchSignal(n.matchOptions()...)
	close(n.done)
	n.wg.Wait()
	return err
}

func (n *NetworkManager) dispatch() {
	defer n.wg.Done()
	for {
		select {
		case sig := <-n.signals:
			n.handleSignal(sig)
		case <-n.done:
			return
		}
	}
}

func (n *NetworkManager) handleSignal(sig *dbus.Signal) {
	if sig == nil || sig.Path != n.device || sig.Name != nmDeviceIface+".StateChanged" {
		return
	}
	if len(sig.Body) < 1 {
		return
	}
	newState, ok := sig.Body[0].(uint32)
	if !ok || newState != nmDeviceStateActivated {
		return
	}
	logger.Debugf("network device %q activated", n.iface)

	n.mu.Lock()
	subs := make([]func(), 0, len(n.subs))
	for _, f := range n.subs {
		subs = append(subs, f)
	}
	n.mu.Unlock()

	for _, f := range subs {
		f()
	}
}

// OnConnected is part of Station.
func (n *NetworkManager) OnConnected(f func()) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = f
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

// ApplyCredential is part of Station. The connection profile is
// only created by Connect, applying the zero Credential deletes the
// profile created earlier.
func (n *NetworkManager) ApplyCredential(cred Credential) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !cred.IsZero() {
		n.pending = &cred
		return nil
	}
	n.pending = nil
	return n.deleteProfile()
}

func (n *NetworkManager) deleteProfile() error {
	if n.connPath == "" {
		return nil
	}
	obj := n.conn.Object(nmBusName, n.connPath)
	if err := obj.Call(nmSettingsConn+".Delete", 0).Err; err != nil {
		return fmt.Errorf("cannot delete connection profile: %v", err)
	}
	n.connPath = ""
	return nil
}

// Connect is part of Station.
func (n *NetworkManager) Connect() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending == nil {
		return ErrNoCredential
	}
	// replace the profile of a previous attempt
	if err := n.deleteProfile(); err != nil {
		return err
	}
	var connPath, activePath dbus.ObjectPath
	settings := connectionSettings(*n.pending, n.iface)
	nm := n.conn.Object(nmBusName, nmObjectPath)
	err := nm.Call(nmInterface+".AddAndActivateConnection", 0, settings, n.device, dbus.ObjectPath("/")).Store(&connPath, &activePath)
	if err != nil {
		return fmt.Errorf("cannot activate connection to %s: %v", n.pending, err)
	}
	n.connPath = connPath
	logger.Debugf("activating %s on %q as %s", n.pending, n.iface, activePath)
	return nil
}

// Disconnect is part of Station.
func (n *NetworkManager) Disconnect() error {
	dev := n.conn.Object(nmBusName, n.device)
	if err := dev.Call(nmDeviceIface+".Disconnect", 0).Err; err != nil {
		return fmt.Errorf("cannot disconnect network device %q: %v", n.iface, err)
	}
	return nil
}

// CurrentCredential is part of Station, it reads back the profile
// as stored by NetworkManager. Without a profile of our own the
// profile of the connection active on the device is used, the
// credential then came through some other channel.
func (n *NetworkManager) CurrentCredential() (Credential, error) {
	n.mu.Lock()
	connPath := n.connPath
	n.mu.Unlock()
	if connPath == "" {
		var err error
		connPath, err = n.activeProfile()
		if err != nil {
			return Credential{}, err
		}
	}
	obj := n.conn.Object(nmBusName, connPath)
	var settings map[string]map[string]dbus.Variant
	if err := obj.Call(nmSettingsConn+".GetSettings", 0).Store(&settings); err != nil {
		return Credential{}, fmt.Errorf("cannot get connection settings: %v", err)
	}
	var secrets map[string]map[string]dbus.Variant
	if _, ok := settings[securitySetting]; ok {
		if err := obj.Call(nmSettingsConn+".GetSecrets", 0, securitySetting).Store(&secrets); err != nil {
			return Credential{}, fmt.Errorf("cannot get connection secrets: %v", err)
		}
	}
	return credentialFromSettings(settings, secrets)
}

func (n *NetworkManager) objectPathProperty(path dbus.ObjectPath, iface, prop string) (dbus.ObjectPath, error) {
	var v dbus.Variant
	obj := n.conn.Object(nmBusName, path)
	if err := obj.Call(dbusProperties+".Get", 0, iface, prop).Store(&v); err != nil {
		return "", err
	}
	p, ok := v.Value().(dbus.ObjectPath)
	if !ok {
		return "", fmt.Errorf("unexpected %s value %v", prop, v)
	}
	return p, nil
}

// activeProfile returns the settings path of the connection active
// on the device.
func (n *NetworkManager) activeProfile() (dbus.ObjectPath, error) {
	active, err := n.objectPathProperty(n.device, nmDeviceIface, "ActiveConnection")
	if err != nil {
		return "", fmt.Errorf("cannot get active connection of %q: %v", n.iface, err)
	}
	if active == "" || active == "/" {
		return "", ErrNoCredential
	}
	profile, err := n.objectPathProperty(active, nmActiveConn, "Connection")
	if err != nil {
		return "", fmt.Errorf("cannot get connection profile of %q: %v", n.iface, err)
	}
	if profile == "" || profile == "/" {
		return "", ErrNoCredential
	}
	return profile, nil
}

func connectionSettings(cred Credential, iface string) map[string]map[string]dbus.Variant {
	settings := map[string]map[string]dbus.Variant{
		"connection": {
			"id":             dbus.MakeVariant(connectionIDPrefix + cred.SSID),
			"type":           dbus.MakeVariant(wirelessSetting),
			"interface-name": dbus.MakeVariant(iface),
			"autoconnect":    dbus.MakeVariant(true),
		},
		wirelessSetting: {
			"ssid": dbus.MakeVariant([]byte(cred.SSID)),
			"mode": dbus.MakeVariant("infrastructure"),
		},
		"ipv4": {"method": dbus.MakeVariant("auto")},
		"ipv6": {"method": dbus.MakeVariant("auto")},
	}
	if cred.Password != "" {
		settings[securitySetting] = map[string]dbus.Variant{
			"key-mgmt": dbus.MakeVariant("wpa-psk"),
			"psk":      dbus.MakeVariant(cred.Password),
		}
	}
	return settings
}

func credentialFromSettings(settings, secrets map[string]map[string]dbus.Variant) (Credential, error) {
	wireless, ok := settings[wirelessSetting]
	if !ok {
		return Credential{}, fmt.Errorf("connection profile is not a wireless one")
	}
	ssid, ok := wireless["ssid"].Value().([]byte)
	if !ok {
		return Credential{}, fmt.Errorf("connection profile has no ssid")
	}
	cred := Credential{SSID: string(ssid)}
	if sec, ok := secrets[securitySetting]; ok {
		if psk, ok := sec["psk"].Value().(string); ok {
			cred.Password = psk
		}
	}
	return cred, nil
}
