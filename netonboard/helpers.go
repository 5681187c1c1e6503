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

import (
	"net/url"
)

const (
	// DefaultPairingURL is where the companion application looks up
	// the product to pair with.
	DefaultPairingURL = "https://iot.cloud.tencent.com/iotexplorer/device"

	pairingVersion = "v1"
)

// PairingURL builds the payload the companion application scans to
// start pairing with this device over the given transport page
// (e.g. "softap"). Rendering it as a QR code is left to the caller.
func PairingURL(base, page, productID, name string) (string, error) {
	if base == "" {
		base = DefaultPairingURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", internal("can't parse pairing url: %v", err)
	}
	q := u.Query()
	q.Set("page", page)
	q.Set("productId", productID)
	q.Set("ver", pairingVersion)
	q.Set("name", name)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
