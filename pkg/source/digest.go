// Copyright 2026 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package source

import (
	"fmt"
	"hash/fnv"
	"os"
)

// tabStop is the column width used when expanding tabs before hashing.
const tabStop = 8

// Digest computes the 64-bit FNV-1a fingerprint of data after normalizing
// line endings (CR and CRLF both hash as a single LF) and expanding tabs to
// spaces at 8-column stops.
//
// The normalization makes the fingerprint stable across checkouts with
// different line-ending or whitespace conventions, so a Windows checkout of
// an unchanged file does not invalidate the incremental cache.
func Digest(data []byte) uint64 {
	h := fnv.New64a()
	var buf [tabStop]byte
	col := 0
	for i := 0; i < len(data); i++ {
		switch c := data[i]; c {
		case '\r':
			if i+1 < len(data) && data[i+1] == '\n' {
				i++
			}
			buf[0] = '\n'
			_, _ = h.Write(buf[:1])
			col = 0
		case '\n':
			buf[0] = '\n'
			_, _ = h.Write(buf[:1])
			col = 0
		case '\t':
			n := tabStop - col%tabStop
			for j := 0; j < n; j++ {
				buf[j] = ' '
			}
			_, _ = h.Write(buf[:n])
			col += n
		default:
			buf[0] = c
			_, _ = h.Write(buf[:1])
			col++
		}
	}
	return h.Sum64()
}

// DigestString computes the fingerprint of a string with the same
// normalization as Digest.
func DigestString(s string) uint64 {
	return Digest([]byte(s))
}

// DigestFile computes the fingerprint of a file's contents.
func DigestFile(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return Digest(data), nil
}

// FormatDigest renders a digest the way sidecar .digest files store it:
// 16 lowercase hex digits.
func FormatDigest(d uint64) string {
	return fmt.Sprintf("%016x", d)
}

// ParseDigest parses the sidecar representation produced by FormatDigest.
func ParseDigest(s string) (uint64, error) {
	var d uint64
	if _, err := fmt.Sscanf(s, "%x", &d); err != nil {
		return 0, fmt.Errorf("parse digest %q: %w", s, err)
	}
	return d, nil
}
