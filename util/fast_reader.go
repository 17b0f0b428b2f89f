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

package util

import "io"

const copyBufferSize = 256 * 1024

// FastReader makes io.Copy use a large buffer, which speeds up streaming
// of blob content to slow clients considerably.
type FastReader struct {
	io.Reader
}

var _ io.WriterTo = &FastReader{}

func (r *FastReader) WriteTo(w io.Writer) (int64, error) {
	return io.CopyBuffer(w, r.Reader, make([]byte, copyBufferSize))
}
