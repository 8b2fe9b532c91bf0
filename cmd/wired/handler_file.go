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
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/wirehttpd/wirehttpd/cache"
	"github.com/wirehttpd/wirehttpd/compr"
	"github.com/wirehttpd/wirehttpd/mimetab"
	"github.com/wirehttpd/wirehttpd/wio"
)

const (
	// chunk size for direct streaming
	streamBufSize = 64 * 1024
	// responses smaller than this are not worth encoding
	compressMin = 256
)

func (s *server) fileHandler(w http.ResponseWriter, r *http.Request) {
	name, status := cleanName(r.URL.Path)
	if status != 0 {
		if status == http.StatusNotFound {
			http.Error(w, "File not found", status)
			return
		}
		http.Error(w, http.StatusText(status), status)
		return
	}
	res, err := s.cache.Get(r.Context(), name)
	if err != nil {
		if r.Context().Err() != nil {
			// client went away; nothing to report
			return
		}
		switch cache.ErrorKind(err) {
		case cache.KindNotFound:
			http.Error(w, "File not found", http.StatusNotFound)
		case cache.KindMetaFailure:
			s.logger.Printf("%s: %s", name, err)
			http.Error(w, "Error getting info on file", http.StatusInternalServerError)
		case cache.KindIoFailure:
			s.logger.Printf("%s: %s", name, err)
			http.Error(w, "Error reading file", http.StatusInternalServerError)
		default:
			s.logger.Printf("%s: %s", name, err)
			http.Error(w, "Internal failure", http.StatusInternalServerError)
		}
		return
	}
	if res.Cached() {
		s.serveCached(w, r, name, res)
		return
	}
	s.serveDirect(w, r, name, res)
}

// cleanName maps the request path onto a cache filename.
// The returned status is zero when the name is usable.
func cleanName(urlPath string) (string, int) {
	name := strings.TrimPrefix(urlPath, "/")
	if name == "" {
		return "", http.StatusNotFound
	}
	// the on-wire filename limit includes the terminator
	if len(name)+1 > cache.FilenameMax {
		return "", http.StatusRequestURITooLong
	}
	name = path.Clean(name)
	if name == "." || name == ".." || path.IsAbs(name) || strings.HasPrefix(name, "../") {
		return "", http.StatusForbidden
	}
	return name, 0
}

func (s *server) serveCached(w http.ResponseWriter, r *http.Request, name string, res *cache.Result) {
	defer res.Pin.Release()
	body := res.Pin.Bytes()
	etag := weakETag(name, res.Size, res.ModTime)
	if len(res.Digest) > 0 {
		etag = strongETag(res.Digest)
	}
	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Last-Modified", res.ModTime.UTC().Format(http.TimeFormat))
	if notModified(r, etag, res.ModTime) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	ctype := mimetab.Lookup(name, body)
	h.Set("Content-Type", ctype)
	enc := compr.Negotiate(r.Header.Get("Accept-Encoding"))
	if enc != nil && mimetab.Compressible(ctype) && len(body) >= compressMin {
		h.Set("Content-Encoding", enc.Name())
		h.Add("Vary", "Accept-Encoding")
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusOK)
		cw := enc.NewWriter(w)
		if _, err := cw.Write(body); err != nil {
			s.logger.Printf("writing %s: %s", name, err)
			cw.Close()
			return
		}
		if err := cw.Close(); err != nil {
			s.logger.Printf("writing %s: %s", name, err)
		}
		return
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		s.logger.Printf("writing %s: %s", name, err)
	}
}

func (s *server) serveDirect(w http.ResponseWriter, r *http.Request, name string, res *cache.Result) {
	defer res.File.Close()
	etag := weakETag(name, res.Size, res.ModTime)
	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Last-Modified", res.ModTime.UTC().Format(http.TimeFormat))
	if notModified(r, etag, res.ModTime) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.Set("Content-Type", mimetab.Lookup(name, nil))
	h.Set("Content-Length", strconv.FormatInt(res.Size, 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	buf := make([]byte, streamBufSize)
	rd := wio.Reader(r.Context(), res.File, res.Size)
	if _, err := io.CopyBuffer(w, rd, buf); err != nil {
		s.logger.Printf("streaming %s: %s", name, err)
	}
}

// notModified evaluates the conditional headers against the
// validator we are about to send. If-None-Match wins over
// If-Modified-Since when both are present.
func notModified(r *http.Request, etag string, mtime time.Time) bool {
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		for _, cand := range strings.Split(inm, ",") {
			cand = strings.TrimSpace(cand)
			if cand == "*" || cand == etag ||
				"W/"+cand == etag || cand == "W/"+etag {
				return true
			}
		}
		return false
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil {
			return !mtime.Truncate(time.Second).After(t)
		}
	}
	return false
}
