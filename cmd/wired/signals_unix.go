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

//go:build unix

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/wirehttpd/wirehttpd/cache"
)

// notifyRefresh funnels SIGUSR1 and SIGUSR2 into the cache's
// refresh controller, so an operator (or a deploy hook) can
// force revalidation without waiting for the tick.
func notifyRefresh(logger *log.Logger, store *cache.Cache) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for range ch {
			logger.Printf("refresh requested by signal")
			store.Refresh()
		}
	}()
}
