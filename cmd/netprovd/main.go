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
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	sddaemon "github.com/coreos/go-systemd/daemon"
	"github.com/godbus/dbus/v5"
	"github.com/jessevdk/go-flags"

	"github.com/snapcore/netprov/advertise"
	"github.com/snapcore/netprov/config"
	"github.com/snapcore/netprov/daemon"
	"github.com/snapcore/netprov/dirs"
	"github.com/snapcore/netprov/logger"
	"github.com/snapcore/netprov/motd"
	"github.com/snapcore/netprov/netonboard"
	"github.com/snapcore/netprov/provisioning"
	"github.com/snapcore/netprov/storage"
	"github.com/snapcore/netprov/wifi"
)

func main() {
	if err := logger.SimpleSetup(); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: failed to activate logging: %v\n", err)
	}
	if err := Run(); err != nil {
		fmt.Fprintf(os.Stderr, "netprovd: %s\n", err)
		os.Exit(1)
	}
}

// Standard streams, redirected for testing.
var Stdout io.Writer = os.Stdout

var (
	newStation = func(iface string) (wifi.Station, func() error, error) {
		conn, err := dbus.SystemBus()
		if err != nil {
			return nil, nil, fmt.Errorf("cannot connect to the system bus: %v", err)
		}
		nm, err := wifi.NewNetworkManager(conn, iface)
		if err != nil {
			return nil, nil, err
		}
		return nm, nm.Close, nil
	}

	sdNotify = sddaemon.SdNotify

	startAdvertise = advertise.Start

	notifyContext = signal.NotifyContext
)

type options struct {
	Config  string `long:"config" description:"configuration file (defaults to /etc/netprov/netprov.yaml)"`
	Force   bool   `long:"force" description:"run the handshake even if the device is already provisioned"`
	Reset   bool   `long:"reset" description:"erase all stored provisioning data and exit"`
	Timeout string `long:"timeout" description:"overall handshake timeout, overrides the configuration (0 waits forever)"`
}

func notify(state string) {
	if _, err := sdNotify(false, state); err != nil {
		logger.Debugf("cannot notify systemd: %v", err)
	}
}

func Run() error {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag)

	_, err := parser.Parse()
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		parser.WriteHelp(Stdout)
		return nil
	} else if err != nil {
		return err
	}

	configPath := opts.Config
	if configPath == "" {
		configPath = dirs.Root.ConfigFile()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if opts.Timeout != "" {
		cfg.OverallTimeout, err = time.ParseDuration(opts.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %v", err)
		}
	}

	store, err := storage.Open(dirs.Root.StateDB())
	if err != nil {
		return err
	}
	defer store.Close()

	if opts.Reset {
		// factory reset, not only the record
		if err := store.EraseAll(); err != nil {
			return fmt.Errorf("cannot reset provisioning: %v", err)
		}
		fmt.Fprintf(Stdout, "provisioning data erased\n")
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	station, closeStation, err := newStation(cfg.Interface)
	if err != nil {
		return err
	}
	defer closeStation()

	if !opts.Force {
		rec, err := provisioning.LoadRecord(store)
		switch {
		case err == nil:
			return useStored(station, rec)
		case !errors.Is(err, provisioning.ErrNotProvisioned):
			return err
		}
	}

	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := provisioning.New(station, store, cfg.ProvisioningOptions())

	var api *daemon.Daemon
	if cfg.APIAddress != "" {
		api = daemon.New(p)
		if err := api.Start(cfg.APIAddress); err != nil {
			return err
		}
		defer api.Stop()
	}

	if cfg.Advertise {
		// ListenPort was checked by Validate
		port, _ := cfg.ListenPort()
		ann, err := startAdvertise(&advertise.Config{
			ProductID:  cfg.ProductID,
			DeviceName: cfg.DeviceName,
			Port:       port,
			Interface:  cfg.Interface,
		})
		if err != nil {
			logger.Noticef("cannot advertise provisioning service: %v", err)
		} else {
			defer ann.Stop()
		}
	}

	pairingURL, err := netonboard.PairingURL(cfg.PairingURL, "softap", cfg.ProductID, cfg.DeviceName)
	if err != nil {
		return err
	}
	fmt.Fprintf(Stdout, "pairing URL: %s\n", pairingURL)
	if err := motd.SetPairing(pairingURL); err != nil {
		logger.Noticef("%v", err)
	}

	notify("READY=1\nSTATUS=waiting for network credential")
	rec, err := p.Run(ctx, cfg.Timeout())
	clearPairing()
	if err != nil {
		notify("STATUS=provisioning failed")
		return err
	}
	notify("STATUS=provisioned")
	fmt.Fprintf(Stdout, "device provisioned on %s\n", rec.Credential)

	if api != nil {
		// keep answering status and reset requests
		<-ctx.Done()
	}
	return nil
}

// clearPairing drops the pairing notice once no session waits for an
// offer anymore.
func clearPairing() {
	if err := motd.Clear(); err != nil {
		logger.Noticef("%v", err)
	}
}

func useStored(station wifi.Station, rec *provisioning.Record) error {
	if err := station.ApplyCredential(rec.Credential); err != nil {
		return fmt.Errorf("cannot apply stored network credential: %v", err)
	}
	if err := station.Connect(); err != nil {
		return fmt.Errorf("cannot connect with stored network credential: %v", err)
	}
	notify("READY=1\nSTATUS=provisioned")
	fmt.Fprintf(Stdout, "device already provisioned on %s, use --force to provision again\n", rec.Credential)
	return nil
}
