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

package aggregation_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx/fxtest"
	"umbasa.net/nimbus/aggregation"
	"umbasa.net/nimbus/blob"
	"umbasa.net/nimbus/logging"
	"umbasa.net/nimbus/mongodb"
	"umbasa.net/nimbus/tracing"
)

var mongoContainer testcontainers.Container
var mongoUrl string

func TestMain(m *testing.M) {
	setup()
	code := m.Run()
	shutdown()
	os.Exit(code)
}

func setup() {
	req := testcontainers.ContainerRequest{
		Image:        "mongo:8",
		ExposedPorts: []string{"27017/tcp"},
	}

	var err error
	mongoContainer, err = testcontainers.GenericContainer(context.Background(), testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		panic(err)
	}

	endpoint, err := mongoContainer.Endpoint(context.Background(), "")
	if err != nil {
		panic(err)
	}

	mongoUrl = fmt.Sprintf("mongodb://%s/", endpoint)
}

func shutdown() {
	if mongoContainer != nil {
		testcontainers.TerminateContainer(mongoContainer)
	}
}

func getProvider(t *testing.T) (*aggregation.AggregationProvider, *mongo.Database) {
	v := viper.New()
	v.Set("mongo.url", mongoUrl)

	res, err := mongodb.NewClient(mongodb.ClientParams{
		Viper: v,
		Lc:    fxtest.NewLifecycle(t),
	})
	if err != nil {
		t.Fatal(err)
	}

	store, err := blob.NewDirStore(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatal(err)
	}

	logger := logging.New(logging.Params{})
	logger.SetLevel(slog.LevelDebug)

	db := res.Client.Database("aggregation_test")

	res2, err := aggregation.New(aggregation.Params{
		Db:      db,
		Logger:  logger,
		Tracing: tracing.NewNoopTracing(),
		Store:   store,
	})
	if err != nil {
		t.Fatal(err)
	}

	return res2.AggregationProvider, db
}

func insertFile(t *testing.T, db *mongo.Database, owner primitive.ObjectID, name string, sizeLabel string, folder primitive.ObjectID, createdAt time.Time) {
	_, err := db.Collection("files").InsertOne(context.Background(), bson.M{
		"_id":       primitive.NewObjectID(),
		"name":      name,
		"owner":     owner,
		"folder":    folder,
		"fileSize":  sizeLabel,
		"createdAt": createdAt,
		"updatedAt": createdAt,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func insertFolder(t *testing.T, db *mongo.Database, owner primitive.ObjectID, name string, parent primitive.ObjectID, createdAt time.Time) {
	_, err := db.Collection("folders").InsertOne(context.Background(), bson.M{
		"_id":       primitive.NewObjectID(),
		"name":      name,
		"owner":     owner,
		"parent":    parent,
		"createdAt": createdAt,
		"updatedAt": createdAt,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSummaryEmptyAccount(t *testing.T) {
	p, _ := getProvider(t)
	owner := primitive.NewObjectID()

	summary, err := p.Summary(context.Background(), owner)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, int64(0), summary.Folders.Count)
	assert.Equal(t, "0 B", summary.Folders.Size)
	assert.Equal(t, int64(0), summary.Notes.Count)
	assert.Equal(t, "0 B", summary.Notes.Size)
	assert.Equal(t, int64(0), summary.Images.Count)
	assert.Equal(t, "0 B", summary.Images.Size)
	assert.Equal(t, int64(0), summary.Pdfs.Count)
	assert.Equal(t, "0 B", summary.Pdfs.Size)
}

func TestSummary(t *testing.T) {
	p, db := getProvider(t)
	owner := primitive.NewObjectID()
	now := time.Now().UTC()

	insertFolder(t, db, owner, "docs", primitive.NilObjectID, now)
	insertFolder(t, db, owner, "pics", primitive.NilObjectID, now)
	insertFile(t, db, owner, "report.pdf", "2.00 KB", primitive.NilObjectID, now)
	insertFile(t, db, owner, "todo.txt", "5 B", primitive.NilObjectID, now)
	insertFile(t, db, owner, "photo.png", "1.00 KB", primitive.NilObjectID, now)

	summary, err := p.Summary(context.Background(), owner)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, int64(2), summary.Folders.Count)
	assert.Equal(t, "3.00 KB", summary.Folders.Size)
	assert.Equal(t, int64(1), summary.Notes.Count)
	assert.Equal(t, "5 B", summary.Notes.Size)
	assert.Equal(t, int64(1), summary.Images.Count)
	assert.Equal(t, "1.00 KB", summary.Images.Size)
	assert.Equal(t, int64(1), summary.Pdfs.Count)
	assert.Equal(t, "2.00 KB", summary.Pdfs.Size)
}

func TestRecents(t *testing.T) {
	p, db := getProvider(t)
	owner := primitive.NewObjectID()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		insertFolder(t, db, owner, fmt.Sprintf("folder-%d", i), primitive.NilObjectID, base.Add(time.Duration(i)*time.Hour))
	}
	for i := 0; i < 3; i++ {
		insertFile(t, db, owner, fmt.Sprintf("file-%d.txt", i), "1 B", primitive.NilObjectID, base.Add(time.Duration(4+i)*time.Hour))
	}

	recents, err := p.Recents(context.Background(), owner)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, 5, len(recents))
	assert.Equal(t, "file-2.txt", recents[0].Name)
	assert.Equal(t, "file", recents[0].Kind)
	assert.Equal(t, "file-1.txt", recents[1].Name)
	assert.Equal(t, "file-0.txt", recents[2].Name)
	assert.Equal(t, "folder-3", recents[3].Name)
	assert.Equal(t, "folder", recents[3].Kind)
	assert.Equal(t, "folder-2", recents[4].Name)
}

func TestByDate(t *testing.T) {
	p, db := getProvider(t)
	owner := primitive.NewObjectID()

	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	insertFolder(t, db, owner, "that-day", primitive.NilObjectID, day.Add(10*time.Hour))
	insertFile(t, db, owner, "that-day.txt", "1 B", primitive.NilObjectID, day.Add(23*time.Hour))
	insertFile(t, db, owner, "day-before.txt", "1 B", primitive.NilObjectID, day.Add(-time.Hour))
	insertFile(t, db, owner, "day-after.txt", "1 B", primitive.NilObjectID, day.Add(24*time.Hour))

	items, err := p.ByDate(context.Background(), owner, day)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, 1, len(items.Folders))
	assert.Equal(t, "that-day", items.Folders[0].Name)
	assert.Equal(t, 1, len(items.Files))
	assert.Equal(t, "that-day.txt", items.Files[0].Name)
}
