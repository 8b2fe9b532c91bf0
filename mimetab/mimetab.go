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

// Package mimetab maps served filenames to media types.
// The extension table answers the common cases without
// looking at the content; unknown extensions fall back to
// sniffing the leading bytes when they are available.
package mimetab

import (
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// table pins down the types we serve most so the answer
// does not depend on the host's mime.types database.
var table = map[string]string{
	".css":   "text/css; charset=utf-8",
	".gif":   "image/gif",
	".htm":   "text/html; charset=utf-8",
	".html":  "text/html; charset=utf-8",
	".ico":   "image/x-icon",
	".jpeg":  "image/jpeg",
	".jpg":   "image/jpeg",
	".js":    "text/javascript; charset=utf-8",
	".json":  "application/json",
	".mp4":   "video/mp4",
	".pdf":   "application/pdf",
	".png":   "image/png",
	".svg":   "image/svg+xml",
	".txt":   "text/plain; charset=utf-8",
	".wasm":  "application/wasm",
	".webp":  "image/webp",
	".woff2": "font/woff2",
	".xml":   "text/xml; charset=utf-8",
}

// Lookup returns the media type for name. data, when
// non-empty, is the beginning of the file content and is
// only consulted if the extension does not decide.
func Lookup(name string, data []byte) string {
	ext := strings.ToLower(path.Ext(name))
	if typ, ok := table[ext]; ok {
		return typ
	}
	if typ := mime.TypeByExtension(ext); typ != "" {
		return typ
	}
	if len(data) > 0 {
		return mimetype.Detect(data).String()
	}
	return "application/octet-stream"
}

// Compressible reports whether content of the given media
// type is worth transfer-encoding. Already-compressed
// formats only waste cycles.
func Compressible(typ string) bool {
	if i := strings.IndexByte(typ, ';'); i >= 0 {
		typ = typ[:i]
	}
	typ = strings.TrimSpace(strings.ToLower(typ))
	if strings.HasPrefix(typ, "text/") {
		return true
	}
	switch typ {
	case "application/json", "application/javascript",
		"application/xml", "application/wasm",
		"image/svg+xml":
		return true
	}
	return strings.HasSuffix(typ, "+json") || strings.HasSuffix(typ, "+xml")
}
