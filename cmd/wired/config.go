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
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"
)

// config is the daemon configuration. Every field has a
// working default; a YAML file fills in deployment values
// and command-line flags override both.
type config struct {
	Listen          string `json:"listen"`
	Root            string `json:"root"`
	CacheEntries    int    `json:"cache_entries"`
	BufferSize      int    `json:"buffer_size"`
	SpareBuffers    int    `json:"spare_buffers"`
	IOWorkers       int    `json:"io_workers"`
	RefreshInterval string `json:"refresh_interval"`
}

func defaultConfig() *config {
	return &config{
		Listen:          ":9090",
		Root:            ".",
		CacheEntries:    256,
		BufferSize:      1 << 20,
		SpareBuffers:    64,
		IOWorkers:       32,
		RefreshInterval: "30s",
	}
}

func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := cfg.refreshInterval(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *config) refreshInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil {
		return 0, fmt.Errorf("refresh_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("refresh_interval: %s is not positive", d)
	}
	return d, nil
}
