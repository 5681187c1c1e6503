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

package daemon

import (
	"encoding/json"
	"net/http"

	"github.com/snapcore/netprov/netonboard"
	"github.com/snapcore/netprov/provisioning"
)

var api = []*Command{
	provisioningCmd,
}

var provisioningCmd = &Command{
	Path: "/v1/provisioning",
	GET:  getProvisioning,
	POST: postProvisioning,
}

func getProvisioning(c *Command, r *http.Request) Response {
	return SyncResponse(c.d.provisioner.Status())
}

func postProvisioning(c *Command, r *http.Request) Response {
	var act netonboard.ProvisioningAction

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&act); err != nil {
		return BadRequest("cannot decode request into provisioning action: %v", err)
	}

	switch act.Action {
	case "reset":
		err := c.d.provisioner.Reset()
		if err == provisioning.ErrBusy {
			return Conflict("cannot reset: %v", err)
		}
		if err != nil {
			return InternalError("cannot reset: %v", err)
		}
		return SyncResponse(c.d.provisioner.Status())
	default:
		return BadRequest("unknown provisioning action %q", act.Action)
	}
}
