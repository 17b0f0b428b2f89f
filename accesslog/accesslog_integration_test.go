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

package accesslog_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/fx/fxtest"
	"umbasa.net/nimbus/accesslog"
	"umbasa.net/nimbus/events"
	"umbasa.net/nimbus/logging"
	"umbasa.net/nimbus/mongodb"
	"umbasa.net/nimbus/tracing"
)

var natsServer *server.Server
var mongoContainer testcontainers.Container
var mongoUrl string

func TestMain(m *testing.M) {
	setup()
	code := m.Run()
	shutdown()
	os.Exit(code)
}

func setup() {
	opts := &server.Options{}
	var err error
	natsServer, err = server.NewServer(opts)
	if err != nil {
		panic(err)
	}

	natsServer.Start()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:8",
		ExposedPorts: []string{"27017/tcp"},
	}

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
	if natsServer != nil {
		natsServer.Shutdown()
		natsServer = nil
	}
	if mongoContainer != nil {
		testcontainers.TerminateContainer(mongoContainer)
	}
}

func TestRecordAccess(t *testing.T) {
	nc, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	v := viper.New()
	v.Set("mongo.url", mongoUrl)

	res, err := mongodb.NewClient(mongodb.ClientParams{
		Viper: v,
		Lc:    fxtest.NewLifecycle(t),
	})
	if err != nil {
		t.Fatal(err)
	}

	logger := logging.New(logging.Params{})
	logger.SetLevel(slog.LevelDebug)

	db := res.Client.Database("accesslog_test")
	files := db.Collection("files")

	fileId := primitive.NewObjectID()
	userId := primitive.NewObjectID()
	_, err = files.InsertOne(context.Background(), bson.M{
		"_id":        fileId,
		"name":       "watched.txt",
		"accessLogs": bson.A{},
	})
	if err != nil {
		t.Fatal(err)
	}

	res2, err := accesslog.New(accesslog.Params{
		Db:      db,
		Logger:  logger,
		Tracing: tracing.NewNoopTracing(),
		Nc:      nc,
	})
	if err != nil {
		t.Fatal(err)
	}
	writer := res2.AccessLogWriter

	if err := writer.Start(); err != nil {
		t.Fatal(err)
	}
	defer writer.Stop()

	accessTime := time.Now().Unix()
	event := events.FileAccessEvent{
		Event: events.Event{
			ID:      uuid.NewString(),
			Version: 1,
		},
		UserID:    userId.Hex(),
		FileID:    fileId.Hex(),
		FileName:  "watched.txt",
		Action:    events.FileAccessActionDownload,
		Timestamp: accessTime,
	}

	data, err := events.Api.Marshal(events.Schema, event)
	if err != nil {
		t.Fatal(err)
	}
	if err := nc.Publish(events.FileAccessTopic, data); err != nil {
		t.Fatal(err)
	}

	type fileDoc struct {
		AccessLogs []struct {
			UserId     primitive.ObjectID `bson:"userId"`
			AccessTime time.Time          `bson:"accessTime"`
		} `bson:"accessLogs"`
	}

	var doc fileDoc
	assert.Eventually(t, func() bool {
		if err := files.FindOne(context.Background(), bson.M{"_id": fileId}).Decode(&doc); err != nil {
			return false
		}
		return len(doc.AccessLogs) == 1
	}, 10*time.Second, 50*time.Millisecond)

	assert.Equal(t, userId, doc.AccessLogs[0].UserId)
	assert.Equal(t, time.Unix(accessTime, 0).UTC(), doc.AccessLogs[0].AccessTime.UTC())
}
