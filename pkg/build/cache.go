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

package build

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/renameio"

	"github.com/kraklabs/fbuild/pkg/source"
)

// DigestSuffix is appended to a target's output path to name its sidecar
// digest file.
const DigestSuffix = ".digest"

// LogSuffix is appended to a target's output path to name its tool log.
const LogSuffix = ".log"

// readCachedDigest reads the sidecar digest next to output. Absence or a
// malformed value reads as a miss.
func readCachedDigest(output string) (uint64, bool) {
	data, err := os.ReadFile(output + DigestSuffix)
	if err != nil {
		return 0, false
	}
	digest, err := source.ParseDigest(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return digest, true
}

// writeDigest atomically writes the sidecar digest for output. The write
// happens once per target, by the worker that built it, and only after the
// tool succeeded.
func writeDigest(output string, digest uint64) error {
	path := output + DigestSuffix
	if err := renameio.WriteFile(path, []byte(source.FormatDigest(digest)+"\n"), 0644); err != nil {
		return fmt.Errorf("write digest %s: %w", path, err)
	}
	return nil
}
