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
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wirehttpd/wirehttpd/cache"
	"github.com/wirehttpd/wirehttpd/wio"
)

type server struct {
	logger *log.Logger
	cache  *cache.Cache
	pool   *wio.Pool
	files  *wio.DirFS

	// when started, the http server and the
	// address of its listener
	srv   http.Server
	bound net.Addr
}

// handler builds the router. Everything under the
// reserved /-/ prefix is control surface; the rest
// of the namespace is files.
func (s *server) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.accessLog)
	r.Get("/-/ping", s.pingHandler)
	r.Get("/-/status", s.statusHandler)
	r.Post("/-/refresh", s.refreshHandler)
	r.Get("/*", s.fileHandler)
	r.Head("/*", s.fileHandler)
	return r
}

func (s *server) Serve(l net.Listener) error {
	s.bound = l.Addr()
	s.srv.Handler = s.handler()
	s.srv.ReadHeaderTimeout = 10 * time.Second
	s.srv.IdleTimeout = 10 * time.Second
	return s.srv.Serve(l)
}

func (s *server) Close() error {
	return s.srv.Close()
}

func (s *server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.cache.Close()
	s.pool.Close()
	return err
}
