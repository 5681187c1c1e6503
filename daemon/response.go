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
	"fmt"
	"net/http"

	"github.com/snapcore/netprov/logger"
)

// ResponseType is the response type
type ResponseType string

// "there are three standard return types: Standard return value,
// Background operation, Error", we only have two of them
const (
	ResponseTypeSync  ResponseType = "sync"
	ResponseTypeError ResponseType = "error"
)

// Response knows how to serve itself.
type Response interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

type resp struct {
	Type   ResponseType `json:"type"`
	Status int          `json:"status-code"`
	Result interface{}  `json:"result,omitempty"`
}

type respJSON struct {
	Type       ResponseType `json:"type"`
	Status     int          `json:"status-code"`
	StatusText string       `json:"status"`
	Result     interface{}  `json:"result,omitempty"`
}

func (r *resp) MarshalJSON() ([]byte, error) {
	return json.Marshal(respJSON{
		Type:       r.Type,
		Status:     r.Status,
		StatusText: http.StatusText(r.Status),
		Result:     r.Result,
	})
}

func (r *resp) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	status := r.Status
	bs, err := r.MarshalJSON()
	if err != nil {
		logger.Noticef("cannot marshal %#v to JSON: %v", *r, err)
		bs = nil
		status = 500
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(bs)
}

type errorResult struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

const (
	errorKindNotFound   = "not-found"
	errorKindBusy       = "provisioning-in-progress"
	errorKindBadRequest = "bad-request"
)

// SyncResponse builds a "sync" response from the given result.
func SyncResponse(result interface{}) Response {
	return &resp{
		Type:   ResponseTypeSync,
		Status: 200,
		Result: result,
	}
}

func makeErrorResponder(status int, kind string) func(string, ...interface{}) Response {
	return func(format string, v ...interface{}) Response {
		res := &errorResult{Kind: kind}
		if len(v) == 0 {
			res.Message = format
		} else {
			res.Message = fmt.Sprintf(format, v...)
		}
		if status == 401 || status == 500 {
			logger.Noticef("api error: %s", res.Message)
		}
		return &resp{
			Type:   ResponseTypeError,
			Result: res,
			Status: status,
		}
	}
}

// standard error responses
var (
	BadRequest       = makeErrorResponder(400, errorKindBadRequest)
	NotFound         = makeErrorResponder(404, errorKindNotFound)
	MethodNotAllowed = makeErrorResponder(405, "")
	Conflict         = makeErrorResponder(409, errorKindBusy)
	InternalError    = makeErrorResponder(500, "")
)
