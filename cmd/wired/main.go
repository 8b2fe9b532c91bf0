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

// Command wired is a static file server whose hot set is
// pinned in memory and refreshed in lockstep on a periodic
// tick (or on SIGUSR1/SIGUSR2).
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"
)

var version = "development"

func main() {
	flags := pflag.NewFlagSet("wired", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to YAML configuration file")
	listen := flags.StringP("listen", "l", "", "address to listen on")
	root := flags.StringP("root", "r", "", "directory to serve")
	entries := flags.Int("cache-entries", 0, "number of cache entry slots")
	bufsize := flags.Int("buffer-size", 0, "cache buffer size in bytes; larger files stream directly")
	spares := flags.Int("spare-buffers", 0, "spare buffers beyond the entry count")
	workers := flags.Int("io-workers", 0, "filesystem worker threads")
	interval := flags.Duration("refresh-interval", 0, "cache refresh period")
	showVersion := flags.Bool("version", false, "print the version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if *showVersion {
		fmt.Println("wired", version)
		return
	}

	logger := log.New(os.Stderr, "", log.Lshortfile)
	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("loading configuration: %s", err)
	}
	if flags.Changed("listen") {
		cfg.Listen = *listen
	}
	if flags.Changed("root") {
		cfg.Root = *root
	}
	if flags.Changed("cache-entries") {
		cfg.CacheEntries = *entries
	}
	if flags.Changed("buffer-size") {
		cfg.BufferSize = *bufsize
	}
	if flags.Changed("spare-buffers") {
		cfg.SpareBuffers = *spares
	}
	if flags.Changed("io-workers") {
		cfg.IOWorkers = *workers
	}
	if flags.Changed("refresh-interval") {
		cfg.RefreshInterval = interval.String()
	}
	runDaemon(logger, cfg)
}
