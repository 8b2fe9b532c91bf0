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
	"net/http"

	"golang.org/x/exp/slices"

	"github.com/wirehttpd/wirehttpd/cache"
)

func (s *server) pingHandler(w http.ResponseWriter, r *http.Request) {
	writeResultResponse(w, http.StatusOK, map[string]string{"status": "up"})
}

type statusResponse struct {
	Version  string            `json:"version"`
	Epoch    uint64            `json:"epoch"`
	Hits     int64             `json:"hits"`
	Misses   int64             `json:"misses"`
	Failures int64             `json:"failures"`
	Entries  []cache.EntryInfo `json:"entries"`
}

func (s *server) statusHandler(w http.ResponseWriter, r *http.Request) {
	entries := s.cache.Snapshot()
	slices.SortFunc(entries, func(a, b cache.EntryInfo) bool {
		return a.Name < b.Name
	})
	writeResultResponse(w, http.StatusOK, &statusResponse{
		Version:  version,
		Epoch:    s.cache.Epoch(),
		Hits:     s.cache.Hits(),
		Misses:   s.cache.Misses(),
		Failures: s.cache.Failures(),
		Entries:  entries,
	})
}

// refreshHandler is the HTTP twin of SIGUSR1: it asks the
// refresh controller to advance the epoch. The bump is
// asynchronous, hence 202.
func (s *server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	s.cache.Refresh()
	w.WriteHeader(http.StatusAccepted)
}
