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

package hierarchy_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"umbasa.net/nimbus/entities"
	"umbasa.net/nimbus/hierarchy"
)

// PATCH bodies must not be able to reassign record-keeping fields.
func TestFolderPatchIgnoresProtectedFields(t *testing.T) {
	patch := entities.MakePrototype(&hierarchy.FolderPrototype{})

	body := `{"name":"x","owner":"64b0f0f0f0f0f0f0f0f0f0f0","id":"64b0f0f0f0f0f0f0f0f0f0f0","createdAt":"2025-01-01T00:00:00Z"}`
	err := json.Unmarshal([]byte(body), patch)

	assert.Nil(t, err)
	assert.True(t, patch.Name.IsDefined())
	assert.False(t, patch.Owner.IsDefined())
	assert.False(t, patch.Id.IsDefined())
	assert.False(t, patch.CreatedAt.IsDefined())

	doc := entities.ToBson(patch)
	assert.Equal(t, 1, len(doc))
	assert.Equal(t, "x", doc["name"])
}

func TestFilePatchIgnoresProtectedFields(t *testing.T) {
	patch := entities.MakePrototype(&hierarchy.FilePrototype{})

	body := `{"name":"y","owner":"64b0f0f0f0f0f0f0f0f0f0f0","url":"blobs/evil","sharedLinks":[],"accessLogs":[]}`
	err := json.Unmarshal([]byte(body), patch)

	assert.Nil(t, err)
	assert.True(t, patch.Name.IsDefined())
	assert.False(t, patch.Owner.IsDefined())
	assert.False(t, patch.Url.IsDefined())
	assert.False(t, patch.SharedLinks.IsDefined())
	assert.False(t, patch.AccessLogs.IsDefined())
}
