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

package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DirStore keeps blobs as plain files in a single directory.
// Keys map directly to file names, so they must not contain path separators.
type DirStore struct {
	basePath string
	baseUrl  string
}

var _ Store = &DirStore{}

func NewDirStore(basePath string, baseUrl string) (*DirStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, err
	}
	return &DirStore{
		basePath: basePath,
		baseUrl:  strings.TrimSuffix(baseUrl, "/"),
	}, nil
}

// NewKey mints a fresh blob key from the original file name.
func NewKey(name string) string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), sanitizeName(name))
}

func sanitizeName(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

func (s *DirStore) path(key string) string {
	return filepath.Join(s.basePath, filepath.Base(key))
}

func (s *DirStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	tempFile, err := os.CreateTemp(s.basePath, "upload-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tempFile.Name())

	written, err := io.Copy(tempFile, r)
	if err != nil {
		tempFile.Close()
		return 0, err
	}
	tempFile.Close()

	if err := os.Rename(tempFile.Name(), s.path(key)); err != nil {
		return 0, err
	}

	return written, nil
}

func (s *DirStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return os.Open(s.path(key))
}

func (s *DirStore) Rename(ctx context.Context, oldKey string, newKey string) error {
	return os.Rename(s.path(oldKey), s.path(newKey))
}

func (s *DirStore) Copy(ctx context.Context, srcKey string, dstKey string) error {
	src, err := os.Open(s.path(srcKey))
	if err != nil {
		return err
	}
	defer src.Close()

	tempFile, err := os.CreateTemp(s.basePath, "copy-*")
	if err != nil {
		return err
	}
	defer os.Remove(tempFile.Name())

	if _, err := io.Copy(tempFile, src); err != nil {
		tempFile.Close()
		return err
	}
	tempFile.Close()

	return os.Rename(tempFile.Name(), s.path(dstKey))
}

func (s *DirStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *DirStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *DirStore) RetrievalURL(ctx context.Context, key string) (string, error) {
	if s.baseUrl == "" {
		return "", nil
	}
	return s.baseUrl + "/files/" + key, nil
}
