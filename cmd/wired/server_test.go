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
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirehttpd/wirehttpd/cache"
	"github.com/wirehttpd/wirehttpd/wio"
)

func newTestServer(t *testing.T, root string, cfg cache.Config) (*server, *httptest.Server) {
	t.Helper()
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = time.Hour
	}
	pool := wio.NewPool(4)
	files := wio.NewDirFS(pool, root)
	store := cache.New(cache.NewDirFS(files), cfg)
	s := &server{
		logger: log.New(io.Discard, "", 0),
		cache:  store,
		pool:   pool,
		files:  files,
	}
	ts := httptest.NewServer(s.handler())
	t.Cleanup(func() {
		ts.Close()
		store.Close()
		pool.Close()
	})
	return s, ts
}

func writeFile(t *testing.T, root, name string, content []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), content, 0644))
}

func TestServeFile(t *testing.T) {
	root := t.TempDir()
	content := []byte("<!DOCTYPE html><html><body>" + strings.Repeat("wired ", 100) + "</body></html>")
	writeFile(t, root, "index.html", content)
	_, ts := newTestServer(t, root, cache.Config{BufferSize: 1 << 16, CacheSize: 8, SpareBuffers: 2})

	resp, err := http.Get(ts.URL + "/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, content, body)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.NotEmpty(t, resp.Header.Get("ETag"))
	assert.NotEmpty(t, resp.Header.Get("Last-Modified"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestNotFound(t *testing.T) {
	root := t.TempDir()
	_, ts := newTestServer(t, root, cache.Config{BufferSize: 1 << 16, CacheSize: 8, SpareBuffers: 2})

	resp, err := http.Get(ts.URL + "/nope.txt")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "File not found\n", string(body))

	// the bare root resolves to no filename at all
	resp, err = http.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHead(t *testing.T) {
	root := t.TempDir()
	content := []byte{0x89, 'P', 'N', 'G', 1, 2, 3, 4}
	writeFile(t, root, "dot.png", content)
	_, ts := newTestServer(t, root, cache.Config{BufferSize: 1 << 16, CacheSize: 8, SpareBuffers: 2})

	resp, err := http.Head(ts.URL + "/dot.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)
	assert.Equal(t, "8", resp.Header.Get("Content-Length"))
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestConditionalRequests(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "page.txt", []byte("conditional content"))
	_, ts := newTestServer(t, root, cache.Config{BufferSize: 1 << 16, CacheSize: 8, SpareBuffers: 2})

	resp, err := http.Get(ts.URL + "/page.txt")
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	etag := resp.Header.Get("ETag")
	lastMod := resp.Header.Get("Last-Modified")
	require.NotEmpty(t, etag)
	require.NotEmpty(t, lastMod)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/page.txt", nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", etag)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	assert.Empty(t, body)

	req, err = http.NewRequest(http.MethodGet, ts.URL+"/page.txt", nil)
	require.NoError(t, err)
	req.Header.Set("If-Modified-Since", lastMod)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}

func TestGzipNegotiation(t *testing.T) {
	root := t.TempDir()
	content := []byte(strings.Repeat("compress me, please. ", 100))
	writeFile(t, root, "big.txt", content)
	_, ts := newTestServer(t, root, cache.Config{BufferSize: 1 << 16, CacheSize: 8, SpareBuffers: 2})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/big.txt", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	assert.Contains(t, resp.Header.Values("Vary"), "Accept-Encoding")
	zr, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	got, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// an image is served as-is even when encoding is acceptable
	writeFile(t, root, "pic.png", bytes.Repeat([]byte{0x89}, 1000))
	req, err = http.NewRequest(http.MethodGet, ts.URL+"/pic.png", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Content-Encoding"))
	assert.Equal(t, "1000", resp2.Header.Get("Content-Length"))
}

func TestDirectStreamLargeFile(t *testing.T) {
	root := t.TempDir()
	content := bytes.Repeat([]byte{0xce}, 5000)
	writeFile(t, root, "large.bin", content)
	s, ts := newTestServer(t, root, cache.Config{BufferSize: 1024, CacheSize: 8, SpareBuffers: 2})

	resp, err := http.Get(ts.URL + "/large.bin")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, content, body)
	assert.Equal(t, "5000", resp.Header.Get("Content-Length"))
	// weak validator only for streamed files
	assert.True(t, strings.HasPrefix(resp.Header.Get("ETag"), `W/"`))
	// and no slot was spent on it
	for _, e := range s.cache.Snapshot() {
		assert.NotEqual(t, "large.bin", e.Name)
	}
}

func TestPathHandling(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "ok.txt", []byte("fine"))
	s, _ := newTestServer(t, root, cache.Config{BufferSize: 1 << 16, CacheSize: 8, SpareBuffers: 2})
	h := s.handler()

	do := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, do("/ok.txt").Code)
	assert.Equal(t, http.StatusForbidden, do("/../etc/passwd").Code)
	assert.Equal(t, http.StatusForbidden, do("/a/../../etc/passwd").Code)

	// 254 bytes of filename are accepted (404, since the
	// file does not exist); 255 are rejected outright
	long := strings.Repeat("n", 254)
	assert.Equal(t, http.StatusNotFound, do("/"+long).Code)
	assert.Equal(t, http.StatusRequestURITooLong, do("/"+long+"n").Code)
}

func TestControlEndpoints(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "hot.txt", []byte("traffic"))
	s, ts := newTestServer(t, root, cache.Config{BufferSize: 1 << 16, CacheSize: 8, SpareBuffers: 2})

	resp, err := http.Get(ts.URL + "/-/ping")
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// some traffic so the counters move
	for i := 0; i < 3; i++ {
		r, err := http.Get(ts.URL + "/hot.txt")
		require.NoError(t, err)
		io.Copy(io.Discard, r.Body)
		r.Body.Close()
	}

	resp, err = http.Get(ts.URL + "/-/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, int64(1), status.Misses)
	assert.Equal(t, int64(2), status.Hits)
	require.Len(t, status.Entries, 1)
	assert.Equal(t, "hot.txt", status.Entries[0].Name)
	assert.Equal(t, int64(7), status.Entries[0].Size)

	// refresh bumps the epoch asynchronously
	before := s.cache.Epoch()
	resp, err = http.Post(ts.URL+"/-/refresh", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Eventually(t, func() bool {
		return s.cache.Epoch() > before
	}, 5*time.Second, time.Millisecond)

	// files answer only GET and HEAD
	resp, err = http.Post(ts.URL+"/hot.txt", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
