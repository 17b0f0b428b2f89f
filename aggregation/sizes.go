// Copyright © 2025 Benjamin Schmitz

// This file is part of Nimbus.

// Nimbus is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License
// as published by the Free Software Foundation,
// either version 3 of the License, or (at your option)
// any later version.

// Nimbus is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public License
// along with Nimbus.  If not, see <http://www.gnu.org/licenses/>.

package aggregation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	kb = 1 << 10
	mb = 1 << 20
	gb = 1 << 30
)

// FormatSize renders a byte count as the human-readable label stored on
// file records, e.g. "12.50 KB".
func FormatSize(bytes int64) string {
	switch {
	case bytes < kb:
		return fmt.Sprintf("%d B", bytes)
	case bytes < mb:
		return fmt.Sprintf("%.2f KB", float64(bytes)/kb)
	case bytes < gb:
		return fmt.Sprintf("%.2f MB", float64(bytes)/mb)
	default:
		return fmt.Sprintf("%.2f GB", float64(bytes)/gb)
	}
}

// ParseSize converts a size label back to bytes. Malformed numbers
// count as zero and an unknown unit leaves the number as raw bytes, so
// summing over legacy records never fails.
func ParseSize(label string) int64 {
	if label == "" {
		return 0
	}

	parts := strings.SplitN(label, " ", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
		return 0
	}

	unit := "B"
	if len(parts) > 1 {
		unit = strings.ToUpper(strings.TrimSpace(parts[1]))
	}

	switch unit {
	case "B":
		return int64(num)
	case "KB":
		return int64(num * kb)
	case "MB":
		return int64(num * mb)
	case "GB":
		return int64(num * gb)
	default:
		return int64(num)
	}
}
