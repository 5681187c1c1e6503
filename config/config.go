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

// Package config loads the configuration of the provisioning daemon.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/snapcore/netprov/barrier"
	"github.com/snapcore/netprov/netonboard"
	"github.com/snapcore/netprov/provisioning"
)

// Config is the daemon configuration, as found in netprov.yaml.
type Config struct {
	ProductID  string `yaml:"product-id"`
	DeviceName string `yaml:"device-name"`

	Listen     string `yaml:"listen"`
	BufferSize int    `yaml:"buffer-size"`

	PollInterval   time.Duration `yaml:"poll-interval"`
	ConnectTimeout time.Duration `yaml:"connect-timeout"`
	// OverallTimeout of 0 waits forever.
	OverallTimeout time.Duration `yaml:"overall-timeout"`

	ReplyAttempts int           `yaml:"reply-attempts"`
	ReplyStep     time.Duration `yaml:"reply-step"`

	Interface string `yaml:"interface"`

	// APIAddress, when set, is where the local REST API listens.
	APIAddress string `yaml:"api-address"`
	// Advertise announces the rendezvous port over mDNS.
	Advertise bool `yaml:"advertise"`
	// PairingURL is the base of the URL given to the companion
	// application, empty means the default one.
	PairingURL string `yaml:"pairing-url"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	return &Config{
		Listen:         provisioning.DefaultListen,
		BufferSize:     netonboard.MaxDatagramSize,
		PollInterval:   provisioning.DefaultPollInterval,
		ConnectTimeout: provisioning.DefaultConnectTimeout,
		ReplyAttempts:  provisioning.DefaultReplyAttempts,
		ReplyStep:      provisioning.DefaultReplyStep,
		Interface:      "wlan0",
		PairingURL:     netonboard.DefaultPairingURL,
	}
}

// Load reads the configuration at path on top of the defaults. A
// missing file gives the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read configuration: %v", err)
	}
	if err := cfg.parse(data); err != nil {
		return nil, fmt.Errorf("cannot parse configuration %q: %v", path, err)
	}
	return cfg, nil
}

func (cfg *Config) parse(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Validate checks the configuration is usable.
func (cfg *Config) Validate() error {
	if cfg.ProductID == "" {
		return fmt.Errorf("product-id must be set")
	}
	if cfg.DeviceName == "" {
		return fmt.Errorf("device-name must be set")
	}
	if _, err := cfg.ListenPort(); err != nil {
		return err
	}
	if cfg.BufferSize < netonboard.MaxDatagramSize {
		return fmt.Errorf("buffer-size cannot be smaller than %d", netonboard.MaxDatagramSize)
	}
	if cfg.PollInterval <= 0 || cfg.ConnectTimeout <= 0 || cfg.ReplyStep <= 0 {
		return fmt.Errorf("poll-interval, connect-timeout and reply-step must be positive")
	}
	if cfg.OverallTimeout < 0 {
		return fmt.Errorf("overall-timeout cannot be negative")
	}
	if cfg.ReplyAttempts < 1 {
		return fmt.Errorf("reply-attempts must be at least 1")
	}
	if cfg.Interface == "" {
		return fmt.Errorf("interface must be set")
	}
	// the reply must fit a datagram
	if _, err := netonboard.NewDeviceReply(cfg.ProductID, cfg.DeviceName); err != nil {
		return err
	}
	return nil
}

// ListenPort returns the port of the listen address.
func (cfg *Config) ListenPort() (int, error) {
	_, port, err := net.SplitHostPort(cfg.Listen)
	if err != nil {
		return 0, fmt.Errorf("invalid listen address %q: %v", cfg.Listen, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return 0, fmt.Errorf("invalid listen port %q", port)
	}
	return n, nil
}

// Timeout returns the overall session timeout as understood by
// provisioning.Provisioner.Run.
func (cfg *Config) Timeout() time.Duration {
	if cfg.OverallTimeout == 0 {
		return barrier.Forever
	}
	return cfg.OverallTimeout
}

// ProvisioningOptions returns the session options.
func (cfg *Config) ProvisioningOptions() *provisioning.Options {
	return &provisioning.Options{
		Listen:         cfg.Listen,
		ProductID:      cfg.ProductID,
		DeviceName:     cfg.DeviceName,
		BufferSize:     cfg.BufferSize,
		PollInterval:   cfg.PollInterval,
		ConnectTimeout: cfg.ConnectTimeout,
		ReplyAttempts:  cfg.ReplyAttempts,
		ReplyStep:      cfg.ReplyStep,
	}
}
