// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
)

// accessLog tags each request with an ID and records the
// response status, size and latency. Pings are not logged;
// load-balancer heartbeats would otherwise spam the logs.
func (s *server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/-/ping" {
			next.ServeHTTP(w, r)
			return
		}
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Printf("%s %s %s %d %dB %s id=%s",
			r.RemoteAddr, r.Method, r.URL.Path, m.Code, m.Written, m.Duration, id)
	})
}

func writeResultResponse(w http.ResponseWriter, statusCode int, v interface{}) {
	result, err := json.Marshal(v)
	if err != nil {
		panic("unable to serialize HTTP response")
	}
	w.Header().Add("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(result)))
	w.WriteHeader(statusCode)
	w.Write(result)
}
