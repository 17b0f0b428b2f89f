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

package events

type Event struct {
	ID      string `avro:"id"`
	Version int    `avro:"version"`
}

const FileAccessActionView = "view"
const FileAccessActionDownload = "download"

// FileAccessEvent is published whenever a file is viewed or downloaded.
type FileAccessEvent struct {
	Event

	UserID    string `avro:"userId"`
	FileID    string `avro:"fileId"`
	FileName  string `avro:"fileName"`
	Action    string `avro:"action"`
	Timestamp int64  `avro:"timestamp"`
}
