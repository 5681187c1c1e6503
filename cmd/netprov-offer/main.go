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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"

	"github.com/snapcore/netprov/netonboard"
	"github.com/snapcore/netprov/provisioning"
)

func main() {
	if err := Run(); err != nil {
		fmt.Fprintf(os.Stderr, "netprov-offer: %s\n", err)
		os.Exit(1)
	}
}

// Standard streams, redirected for testing.
var Stdout io.Writer = os.Stdout

type replyOutput struct {
	ProductID    string `json:"product-id" yaml:"product-id"`
	DeviceName   string `json:"device-name" yaml:"device-name"`
	ProtoVersion string `json:"proto-version" yaml:"proto-version"`
	From         string `json:"from" yaml:"from"`
}

func Run() error {
	var opts struct {
		Positional struct {
			Token string `positional-arg-name:"<token>" required:"yes" description:"authentication token to hand to the device (mandatory)"`
		} `positional-args:"yes"`

		Address   string `long:"address" default:"255.255.255.255:8266" description:"address of the device rendezvous socket"`
		SSID      string `long:"ssid" description:"name of the Wi-Fi network the device should join"`
		Password  string `long:"password" description:"secret of the Wi-Fi network"`
		TokenOnly bool   `long:"token-only" description:"send only the token, the device got the network credential some other way"`

		Timeout string `long:"timeout" default:"30s" description:"how long to wait for the device reply"`
		Resend  string `long:"resend" default:"1s" description:"interval between repeated offers"`
		Format  string `long:"format" default:"yaml" description:"the format of the output (json|yaml)"`
	}

	parser := flags.NewParser(&opts, flags.HelpFlag)

	_, err := parser.Parse()
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		parser.WriteHelp(Stdout)
		return nil
	} else if err != nil {
		return err
	}

	if opts.Format != "yaml" && opts.Format != "json" {
		return fmt.Errorf("output format can only be yaml or json")
	}
	timeout, err := time.ParseDuration(opts.Timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout: %v", err)
	}
	resend, err := time.ParseDuration(opts.Resend)
	if err != nil || resend <= 0 {
		return fmt.Errorf("invalid resend interval %q", opts.Resend)
	}

	var cftor netonboard.Configurator
	var offer []byte
	if opts.TokenOnly {
		if opts.SSID != "" || opts.Password != "" {
			return fmt.Errorf("does not make sense to specify --ssid/--password with --token-only")
		}
		offer, err = cftor.TokenOffer(opts.Positional.Token)
	} else {
		if opts.SSID == "" {
			return fmt.Errorf("--ssid is required unless --token-only is given")
		}
		offer, err = cftor.Offer(opts.SSID, opts.Password, opts.Positional.Token)
	}
	if err != nil {
		return fmt.Errorf("cannot build offer: %v", err)
	}

	device, err := net.ResolveUDPAddr("udp4", opts.Address)
	if err != nil {
		return fmt.Errorf("cannot resolve device address: %v", err)
	}

	// broadcast capable
	conn, err := provisioning.ListenUDP("0.0.0.0:0")
	if err != nil {
		return err
	}
	defer conn.Close()

	reply, from, err := exchange(conn, device, &cftor, offer, timeout, resend)
	if err != nil {
		return err
	}
	return output(opts.Format, &replyOutput{
		ProductID:    reply.ProductID,
		DeviceName:   reply.DeviceName,
		ProtoVersion: reply.ProtoVersion,
		From:         from.String(),
	})
}

// exchange sends offer every resend until a device reply arrives.
// The device only replies once connected, earlier offers are lost
// while it is switching networks.
func exchange(conn net.PacketConn, device net.Addr, cftor *netonboard.Configurator, offer []byte, timeout, resend time.Duration) (*netonboard.DeviceReply, net.Addr, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, netonboard.MaxDatagramSize*2)
	for time.Now().Before(deadline) {
		if _, err := conn.WriteTo(offer, device); err != nil {
			return nil, nil, fmt.Errorf("cannot send offer: %v", err)
		}
		next := time.Now().Add(resend)
		if next.After(deadline) {
			next = deadline
		}
		for {
			conn.SetReadDeadline(next)
			n, from, err := conn.ReadFrom(buf)
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				break
			}
			if err != nil {
				return nil, nil, fmt.Errorf("cannot receive reply: %v", err)
			}
			reply, err := cftor.RcvReply(buf[:n])
			if err != nil {
				// not for us
				continue
			}
			return reply, from, nil
		}
	}
	return nil, nil, fmt.Errorf("no reply from the device within %v", timeout)
}

func output(format string, out *replyOutput) error {
	var b []byte
	var err error
	switch format {
	case "json":
		b, err = json.MarshalIndent(out, "", "  ")
		b = append(b, '\n')
	default:
		b, err = yaml.Marshal(out)
	}
	if err != nil {
		return err
	}
	_, err = Stdout.Write(b)
	return err
}
