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

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"umbasa.net/nimbus/logging"
)

var Module = fx.Module("blob",
	fx.Provide(
		New,
	),
)

// Store holds the file contents addressed by the locator recorded
// on the file document.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Rename(ctx context.Context, oldKey string, newKey string) error
	Copy(ctx context.Context, srcKey string, dstKey string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// RetrievalURL returns an absolute URL under which the blob can be
	// fetched directly, or "" when the store cannot serve it.
	RetrievalURL(ctx context.Context, key string) (string, error)
}

type Params struct {
	fx.In

	Viper  *viper.Viper
	Logger *logging.Logger
}

type Result struct {
	fx.Out

	Store Store
}

func New(p Params) (Result, error) {
	p.Viper.SetDefault("blob.store", "dir")
	p.Viper.SetDefault("blob.dir.path", "files")
	p.Viper.SetDefault("publicBaseUrl", "http://localhost:8080")

	var store Store
	var err error

	switch kind := p.Viper.GetString("blob.store"); kind {
	case "dir":
		store, err = NewDirStore(p.Viper.GetString("blob.dir.path"), p.Viper.GetString("publicBaseUrl"))
	case "s3":
		store, err = NewS3Store(p.Viper, p.Logger)
	default:
		err = fmt.Errorf("unknown blob store type: %s", kind)
	}
	if err != nil {
		return Result{}, err
	}

	return Result{Store: store}, nil
}
