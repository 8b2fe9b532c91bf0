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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wirehttpd/wirehttpd/cache"
	"github.com/wirehttpd/wirehttpd/wio"
)

func runDaemon(logger *log.Logger, cfg *config) {
	interval, err := cfg.refreshInterval()
	if err != nil {
		logger.Fatal(err)
	}
	if _, err := os.Stat(cfg.Root); err != nil {
		logger.Fatalf("root %s: %s", cfg.Root, err)
	}

	pool := wio.NewPool(cfg.IOWorkers)
	files := wio.NewDirFS(pool, cfg.Root)
	store := cache.New(cache.NewDirFS(files), cache.Config{
		BufferSize:      cfg.BufferSize,
		CacheSize:       cfg.CacheEntries,
		SpareBuffers:    cfg.SpareBuffers,
		RefreshInterval: interval,
	})
	store.Logger = logger

	server := &server{
		logger: logger,
		cache:  store,
		pool:   pool,
		files:  files,
	}
	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		logger.Fatal(err)
	}
	go func() {
		logger.Printf("wired %s serving %s on %v", version, cfg.Root, listener.Addr())
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Fatal(err)
		}
	}()

	notifyRefresh(logger, store)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("shutdown: %s", err)
	}
}
