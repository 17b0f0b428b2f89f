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
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"umbasa.net/nimbus/blob"
	"umbasa.net/nimbus/faults"
	"umbasa.net/nimbus/logging"
	"umbasa.net/nimbus/tracing"
)

const recentsLimit = 5

var Module = fx.Module("aggregation",
	fx.Provide(
		New,
	),
)

type Params struct {
	fx.In

	Db      *mongo.Database
	Logger  *logging.Logger
	Tracing tracing.Tracing
	Store   blob.Store
}

type Result struct {
	fx.Out

	AggregationProvider *AggregationProvider
}

// AggregationProvider reads the folders and files collections that the
// hierarchy engine maintains and derives usage views from them.
type AggregationProvider struct {
	log     *slog.Logger
	tracer  trace.Tracer
	folders *mongo.Collection
	files   *mongo.Collection
	store   blob.Store
}

func New(p Params) (Result, error) {
	return Result{
		AggregationProvider: &AggregationProvider{
			log:     p.Logger.GetLogger("aggregation"),
			tracer:  p.Tracing.TracerProvider.Tracer("aggregation"),
			folders: p.Db.Collection("folders"),
			files:   p.Db.Collection("files"),
			store:   p.Store,
		},
	}, nil
}

type SummaryEntry struct {
	Count int64  `json:"count"`
	Size  string `json:"size"`
}

// Summary groups the owner's files by class. The folders entry carries
// the folder count and the combined size of all files.
type Summary struct {
	Folders SummaryEntry `json:"folders"`
	Notes   SummaryEntry `json:"notes"`
	Images  SummaryEntry `json:"images"`
	Pdfs    SummaryEntry `json:"pdfs"`
}

var (
	noteExts  = []string{"txt", "md", "doc", "docx"}
	imageExts = []string{"jpg", "jpeg", "png", "gif", "webp"}
	pdfExts   = []string{"pdf"}
)

func (a *AggregationProvider) Summary(ctx context.Context, owner primitive.ObjectID) (Summary, error) {
	ctx, span := a.tracer.Start(ctx, "summary")
	defer span.End()

	folderCount, err := a.folders.CountDocuments(ctx, bson.M{"owner": owner})
	if err != nil {
		return Summary{}, faults.Storage("while counting folders", err)
	}

	files, err := a.findItems(ctx, a.files, bson.M{"owner": owner})
	if err != nil {
		return Summary{}, err
	}

	var notes, images, pdfs SummaryEntry
	var notesBytes, imagesBytes, pdfsBytes, totalBytes int64

	for _, file := range files {
		ext := extensionOf(file.Name)
		bytes := ParseSize(file.FileSize)
		totalBytes += bytes

		switch {
		case contains(noteExts, ext):
			notes.Count++
			notesBytes += bytes
		case contains(imageExts, ext):
			images.Count++
			imagesBytes += bytes
		case contains(pdfExts, ext):
			pdfs.Count++
			pdfsBytes += bytes
		}
	}

	notes.Size = FormatSize(notesBytes)
	images.Size = FormatSize(imagesBytes)
	pdfs.Size = FormatSize(pdfsBytes)

	return Summary{
		Folders: SummaryEntry{Count: folderCount, Size: FormatSize(totalBytes)},
		Notes:   notes,
		Images:  images,
		Pdfs:    pdfs,
	}, nil
}

// Item is a flattened view of a folder or file document, shared by the
// recents and calendar views.
type Item struct {
	Kind        string             `bson:"-" json:"kind"`
	Id          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	FileSize    string             `bson:"fileSize,omitempty" json:"fileSize,omitempty"`
	Url         string             `bson:"url,omitempty" json:"-"`
	DownloadUrl string             `bson:"-" json:"downloadUrl,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Recents returns the most recently touched top-level folders and files.
func (a *AggregationProvider) Recents(ctx context.Context, owner primitive.ObjectID) ([]Item, error) {
	ctx, span := a.tracer.Start(ctx, "recents")
	defer span.End()

	folders, err := a.findItems(ctx, a.folders, bson.M{"owner": owner, "parent": primitive.NilObjectID})
	if err != nil {
		return nil, err
	}
	files, err := a.findItems(ctx, a.files, bson.M{"owner": owner, "folder": primitive.NilObjectID})
	if err != nil {
		return nil, err
	}

	combined := make([]Item, 0, len(folders)+len(files))
	for _, folder := range folders {
		folder.Kind = "folder"
		combined = append(combined, folder)
	}
	for _, file := range files {
		file.Kind = "file"
		combined = append(combined, file)
	}

	sort.SliceStable(combined, func(i, j int) bool {
		return touchedAt(combined[i]).After(touchedAt(combined[j]))
	})

	if len(combined) > recentsLimit {
		combined = combined[:recentsLimit]
	}
	a.resolveDownloadUrls(ctx, combined)

	return combined, nil
}

type CalendarItems struct {
	Folders []Item `json:"folders"`
	Files   []Item `json:"files"`
}

// ByDate returns everything created on the given UTC day, at any depth.
func (a *AggregationProvider) ByDate(ctx context.Context, owner primitive.ObjectID, date time.Time) (CalendarItems, error) {
	ctx, span := a.tracer.Start(ctx, "byDate")
	defer span.End()

	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	createdAt := bson.M{"$gte": start, "$lt": end}

	folders, err := a.findItems(ctx, a.folders, bson.M{"owner": owner, "createdAt": createdAt})
	if err != nil {
		return CalendarItems{}, err
	}
	for i := range folders {
		folders[i].Kind = "folder"
	}

	files, err := a.findItems(ctx, a.files, bson.M{"owner": owner, "createdAt": createdAt})
	if err != nil {
		return CalendarItems{}, err
	}
	for i := range files {
		files[i].Kind = "file"
	}
	a.resolveDownloadUrls(ctx, files)

	return CalendarItems{
		Folders: folders,
		Files:   files,
	}, nil
}

func (a *AggregationProvider) findItems(ctx context.Context, collection *mongo.Collection, filter bson.M) ([]Item, error) {
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		return nil, faults.Storage("while reading "+collection.Name(), err)
	}

	items := make([]Item, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, faults.Storage("while reading "+collection.Name(), err)
	}
	return items, nil
}

func (a *AggregationProvider) resolveDownloadUrls(ctx context.Context, items []Item) {
	for i := range items {
		if items[i].Url == "" {
			continue
		}
		url, err := a.store.RetrievalURL(ctx, items[i].Url)
		if err != nil {
			a.log.Warn("failed to resolve retrieval url", "item", items[i].Id.Hex(), "error", err)
			continue
		}
		items[i].DownloadUrl = url
	}
}

func touchedAt(item Item) time.Time {
	if item.UpdatedAt.IsZero() {
		return item.CreatedAt
	}
	return item.UpdatedAt
}

func extensionOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
