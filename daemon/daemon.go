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

// Package daemon implements the local REST API of the provisioning
// daemon.
package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/tomb.v2"

	"github.com/snapcore/netprov/logger"
	"github.com/snapcore/netprov/netonboard"
)

var shutdownTimeout = 5 * time.Second

// Provisioner is what the API exposes.
type Provisioner interface {
	Status() *netonboard.ProvisioningInfo
	Reset() error
}

// A Daemon serves the REST API.
type Daemon struct {
	provisioner Provisioner

	router   *mux.Router
	listener net.Listener
	server   *http.Server

	tomb tomb.Tomb
}

// A ResponseFunc handles one of the individual verbs for a method
type ResponseFunc func(*Command, *http.Request) Response

// A Command routes a request to an individual per-verb ResponseFUnc
type Command struct {
	Path string

	GET  ResponseFunc
	POST ResponseFunc

	d *Daemon
}

func (c *Command) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var rspf ResponseFunc
	switch r.Method {
	case "GET":
		rspf = c.GET
	case "POST":
		rspf = c.POST
	}

	var rsp Response
	if rspf == nil {
		rsp = MethodNotAllowed("method %q not allowed", r.Method)
	} else {
		rsp = rspf(c, r)
	}
	rsp.ServeHTTP(w, r)
}

// New returns a daemon exposing p.
func New(p Provisioner) *Daemon {
	d := &Daemon{provisioner: p}
	d.addRoutes()
	return d
}

func (d *Daemon) addRoutes() {
	d.router = mux.NewRouter()

	for _, c := range api {
		c := *c
		c.d = d
		d.router.Handle(c.Path, &c).Name(c.Path)
	}

	d.router.NotFoundHandler = NotFound("not found")
}

// Handler returns the handler of the API.
func (d *Daemon) Handler() http.Handler {
	return d.router
}

// Start starts serving on address.
func (d *Daemon) Start(address string) error {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("cannot listen on %q: %v", address, err)
	}
	d.listener = l
	d.server = &http.Server{Handler: d.router}

	d.tomb.Go(func() error {
		err := d.server.Serve(d.listener)
		if err == http.ErrServerClosed {
			return nil
		}
		if err != nil {
			select {
			case <-d.tomb.Dying():
				return nil
			default:
			}
		}
		return err
	})
	logger.Noticef("API listening on %s", l.Addr())
	return nil
}

// Addr returns the address the API listens on, once started.
func (d *Daemon) Addr() net.Addr {
	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

// Stop shuts the server down.
func (d *Daemon) Stop() error {
	if d.server == nil {
		return nil
	}
	d.tomb.Kill(nil)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("cannot stop API server: %v", err)
	}
	return d.tomb.Wait()
}
