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

package netonboard

/* These are requests and results used by the local REST API of the
   provisioning daemon */

type ProvisioningInfo struct {
	Provisioned bool   `json:"provisioned"`
	InProgress  bool   `json:"in-progress"`
	State       string `json:"state,omitempty"`
	Session     string `json:"session,omitempty"`
	// Network is the network of the latest attempt
	Network     string `json:"network,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`
}

type ProvisioningAction struct {
	// Action can be reset
	Action string `json:"action"`
}
