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

package cache

import "time"

// The refresh controller advances the epoch for every entry
// at once so that a burst of traffic after a tick validates
// each hot file at most once, and every response within a
// period observes one consistent generation of files.
// It never touches entries; staleness is evaluated lazily
// by Get.
func (c *Cache) refreshLoop() {
	defer c.wg.Done()
	tick := time.NewTicker(c.cfg.RefreshInterval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			c.epoch.Add(1)
		case <-c.refresh:
			c.logf("cache: refresh forced")
			c.epoch.Add(1)
		case <-c.done:
			return
		}
	}
}

// Refresh asks the controller to advance the epoch now,
// the same way the periodic tick does. Signals arriving
// while one is already pending coalesce; entries validate
// against the latest epoch either way.
func (c *Cache) Refresh() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

// Epoch returns the current global epoch.
func (c *Cache) Epoch() uint64 { return c.epoch.Load() }
