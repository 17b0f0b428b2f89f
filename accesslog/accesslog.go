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

package accesslog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"umbasa.net/nimbus/events"
	"umbasa.net/nimbus/logging"
	"umbasa.net/nimbus/messaging"
	"umbasa.net/nimbus/tracing"
)

var Module = fx.Module("accesslog",
	fx.Provide(
		New,
	),
)

type Params struct {
	fx.In

	Db      *mongo.Database
	Logger  *logging.Logger
	Tracing tracing.Tracing
	Nc      *nats.Conn `optional:"true"`
}

type Result struct {
	fx.Out

	AccessLogWriter *AccessLogWriter
}

// AccessLogWriter consumes file access events and appends them to the
// accessLogs array on the file document. Events are fire-and-forget, a
// lost entry is acceptable.
type AccessLogWriter struct {
	log    *slog.Logger
	tracer trace.Tracer
	files  *mongo.Collection
	nc     *nats.Conn
	sub    *nats.Subscription
}

func New(p Params) (Result, error) {
	return Result{
		AccessLogWriter: &AccessLogWriter{
			log:    p.Logger.GetLogger("accesslog"),
			tracer: p.Tracing.TracerProvider.Tracer("accesslog"),
			files:  p.Db.Collection("files"),
			nc:     p.Nc,
		},
	}, nil
}

func (w *AccessLogWriter) Start() error {
	if w.nc == nil {
		w.log.Info("no message bus configured, file access logging disabled")
		return nil
	}

	sub, err := w.nc.QueueSubscribe(events.FileAccessTopic, events.FileAccessTopic, func(msg *nats.Msg) {
		ctx := messaging.ExtractTraceContext(context.Background(), msg)
		ctx, span := w.tracer.Start(ctx, "recordAccess")
		defer span.End()

		event := events.FileAccessEvent{}
		if err := events.Api.Unmarshal(events.Schema, msg.Data, &event); err != nil {
			w.log.Error("failed to decode file access event", "error", err)
			return
		}

		w.recordAccess(ctx, event)
	})
	if err != nil {
		return fmt.Errorf("While starting AccessLogWriter: %w", err)
	}
	w.sub = sub
	return nil
}

func (w *AccessLogWriter) Stop() error {
	if w.sub != nil {
		err := w.sub.Unsubscribe()
		w.sub = nil
		if err != nil {
			return fmt.Errorf("While stopping AccessLogWriter: %w", err)
		}
	}
	return nil
}

func (w *AccessLogWriter) recordAccess(ctx context.Context, event events.FileAccessEvent) {
	fileId, err := primitive.ObjectIDFromHex(event.FileID)
	if err != nil {
		w.log.Error("file access event with invalid file id", "fileId", event.FileID)
		return
	}

	entry := bson.M{
		"accessTime": time.Unix(event.Timestamp, 0).UTC(),
	}
	if userId, err := primitive.ObjectIDFromHex(event.UserID); err == nil {
		entry["userId"] = userId
	}

	_, err = w.files.UpdateOne(ctx,
		bson.M{"_id": fileId},
		bson.M{"$push": bson.M{"accessLogs": entry}})
	if err != nil {
		w.log.Error("failed to record file access", "fileId", event.FileID, "error", err)
	}
}
