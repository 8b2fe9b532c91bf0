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

// Package compr provides a unified interface wrapping
// third-party compression libraries for HTTP response
// encoding.
package compr

import (
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Encoder produces streaming writers for one
// Content-Encoding token.
type Encoder interface {
	// Name is the Content-Encoding token.
	Name() string
	// NewWriter wraps w; the caller must Close the
	// result to flush the encoder trailer.
	NewWriter(w io.Writer) io.WriteCloser
}

type gzipEncoder struct{}

func (gzipEncoder) Name() string { return "gzip" }

func (gzipEncoder) NewWriter(w io.Writer) io.WriteCloser {
	zw, err := gzip.NewWriterLevel(w, gzip.DefaultCompression)
	if err != nil {
		panic(err)
	}
	return zw
}

type zstdEncoder struct{}

func (zstdEncoder) Name() string { return "zstd" }

func (zstdEncoder) NewWriter(w io.Writer) io.WriteCloser {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	return zw
}

// Encoding selects an encoder by name.
// The returned Encoder will return the same value
// for Encoder.Name as the specified name.
func Encoding(name string) Encoder {
	switch name {
	case "gzip":
		return gzipEncoder{}
	case "zstd":
		return zstdEncoder{}
	default:
		return nil
	}
}

// Negotiate picks the preferred supported encoder from an
// Accept-Encoding header value, or nil when the client did
// not ask for (or forbade) any encoding we implement.
// On equal quality zstd wins over gzip.
func Negotiate(acceptEncoding string) Encoder {
	var bestName string
	var bestQ float64
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, q := parseCoding(part)
		if q <= 0 {
			continue
		}
		switch name {
		case "gzip", "zstd":
		case "*":
			name = "zstd"
		default:
			continue
		}
		if q > bestQ || (q == bestQ && name == "zstd") {
			bestName, bestQ = name, q
		}
	}
	if bestName == "" {
		return nil
	}
	return Encoding(bestName)
}

// parseCoding splits one Accept-Encoding element into
// its token and quality; a missing or malformed q
// defaults to 1.
func parseCoding(s string) (string, float64) {
	name, params, ok := strings.Cut(strings.TrimSpace(s), ";")
	name = strings.ToLower(strings.TrimSpace(name))
	q := 1.0
	if !ok {
		return name, q
	}
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || strings.ToLower(strings.TrimSpace(k)) != "q" {
			continue
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			q = f
		}
	}
	return name, q
}
