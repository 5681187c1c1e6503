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

	"github.com/snapcore/netprov/netonboard"
)

const (
	DefaultListen         = ":8266"
	DefaultPollInterval   = time.Second
	DefaultConnectTimeout = 5 * time.Second
	DefaultReplyAttempts  = 5
	DefaultReplyStep      = 10 * time.Millisecond
)

// Options tune a provisioning session, zero fields get defaults.
type Options struct {
	// Listen is the rendezvous address bound by Run.
	Listen string

	ProductID  string
	DeviceName string

	// BufferSize bounds the received datagrams.
	BufferSize int
	// PollInterval bounds how long a stop request can go unnoticed
	// while listening.
	PollInterval time.Duration
	// ConnectTimeout bounds the wait for connectivity after applying
	// an offered credential.
	ConnectTimeout time.Duration
	// ReplyAttempts and ReplyStep shape the burst of device replies,
	// attempt i is followed by a pause of i*ReplyStep.
	ReplyAttempts int
	ReplyStep     time.Duration
}

func (o *Options) withDefaults() Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	if opts.Listen == "" {
		opts.Listen = DefaultListen
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = netonboard.MaxDatagramSize
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReplyAttempts <= 0 {
		opts.ReplyAttempts = DefaultReplyAttempts
	}
	if opts.ReplyStep <= 0 {
		opts.ReplyStep = DefaultReplyStep
	}
	return opts
}
