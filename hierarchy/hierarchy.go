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

package hierarchy

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"umbasa.net/nimbus/blob"
	"umbasa.net/nimbus/entities"
	"umbasa.net/nimbus/faults"
	"umbasa.net/nimbus/logging"
	"umbasa.net/nimbus/tracing"
	"umbasa.net/nimbus/util"
)

// moving a folder below itself must terminate even on corrupted parent chains
const maxFolderDepth = 100

// bound for concurrent blob deletes during a cascade
const deleteConcurrency = 4

var Module = fx.Module("hierarchy",
	fx.Provide(
		NewMigrations,
		New,
	),
)

type Params struct {
	fx.In

	Db      *mongo.Database
	Logger  *logging.Logger
	Tracing tracing.Tracing
	Viper   *viper.Viper
	Store   blob.Store
	Nc      *nats.Conn `optional:"true"`
	Mig     Migrations
}

type Result struct {
	fx.Out

	HierarchyProvider *HierarchyProvider
}

type HierarchyProvider struct {
	log     *slog.Logger
	tracer  trace.Tracer
	folders *mongo.Collection
	files   *mongo.Collection
	users   *mongo.Collection
	store   blob.Store
	nc      *nats.Conn
	baseUrl string
}

func New(p Params) (Result, error) {
	p.Viper.SetDefault("publicBaseUrl", "http://localhost:8080")

	return Result{
		HierarchyProvider: &HierarchyProvider{
			log:     p.Logger.GetLogger("hierarchy"),
			tracer:  p.Tracing.TracerProvider.Tracer("hierarchy"),
			folders: p.Db.Collection("folders"),
			files:   p.Db.Collection("files"),
			users:   p.Db.Collection("users"),
			store:   p.Store,
			nc:      p.Nc,
			baseUrl: strings.TrimSuffix(p.Viper.GetString("publicBaseUrl"), "/"),
		},
	}, nil
}

func (h *HierarchyProvider) CreateFolder(ctx context.Context, owner primitive.ObjectID, name string, parent primitive.ObjectID) (Folder, error) {
	ctx, span := h.tracer.Start(ctx, "createFolder")
	defer span.End()

	if strings.TrimSpace(name) == "" {
		return Folder{}, faults.Validation("folder name must not be empty")
	}

	if !parent.IsZero() {
		if _, err := h.folderById(ctx, owner, parent); err != nil {
			if faults.IsNotFound(err) {
				return Folder{}, faults.Validation("parent folder does not exist")
			}
			return Folder{}, err
		}
	}

	now := time.Now().UTC()
	proto := entities.MakePrototype(&FolderPrototype{})
	proto.Name.Set(name)
	proto.Parent.Set(parent)
	proto.Owner.Set(owner)
	proto.Favourite.Set(false)
	proto.SharedWith.Set([]SharedWith{})
	proto.CreatedAt.Set(now)
	proto.UpdatedAt.Set(now)

	insertRes, err := h.folders.InsertOne(ctx, proto)
	if err != nil {
		return Folder{}, faults.Storage("while creating folder", err)
	}

	folder := Folder{}
	if err := h.folders.FindOne(ctx, bson.M{"_id": insertRes.InsertedID}).Decode(&folder); err != nil {
		return Folder{}, faults.Storage("while reading created folder", err)
	}

	return folder, nil
}

func (h *HierarchyProvider) UpdateFolder(ctx context.Context, owner primitive.ObjectID, folderId primitive.ObjectID, patch *FolderPrototype) (Folder, error) {
	ctx, span := h.tracer.Start(ctx, "updateFolder")
	defer span.End()

	if _, err := h.folderById(ctx, owner, folderId); err != nil {
		return Folder{}, err
	}

	if patch.Name.IsDefined() && strings.TrimSpace(patch.Name.Get()) == "" {
		return Folder{}, faults.Validation("folder name must not be empty")
	}

	if patch.Parent.IsDefined() && !patch.Parent.Get().IsZero() {
		if err := h.checkMoveTarget(ctx, owner, folderId, patch.Parent.Get()); err != nil {
			return Folder{}, err
		}
	}

	patch.UpdatedAt.Set(time.Now().UTC())

	result := h.folders.FindOneAndUpdate(ctx,
		bson.M{"_id": folderId, "owner": owner},
		bson.M{"$set": patch},
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return Folder{}, faults.NotFound("folder not found")
		}
		return Folder{}, faults.Storage("while updating folder", result.Err())
	}

	folder := Folder{}
	result.Decode(&folder)
	return folder, nil
}

// checkMoveTarget walks from the prospective parent up to the root and
// rejects the move when the folder itself appears on the path.
func (h *HierarchyProvider) checkMoveTarget(ctx context.Context, owner primitive.ObjectID, folderId primitive.ObjectID, newParent primitive.ObjectID) error {
	if newParent == folderId {
		return faults.Validation("folder cannot be moved into itself or a descendant")
	}

	current := newParent
	for depth := 0; depth < maxFolderDepth; depth++ {
		parent, err := h.folderById(ctx, owner, current)
		if err != nil {
			if faults.IsNotFound(err) {
				return faults.Validation("parent folder does not exist")
			}
			return err
		}
		if parent.Parent.IsZero() {
			return nil
		}
		if parent.Parent == folderId {
			return faults.Validation("folder cannot be moved into itself or a descendant")
		}
		current = parent.Parent
	}

	return faults.Validation("folder hierarchy too deep")
}

type FolderDetail struct {
	Folder  Folder   `json:"folder"`
	Folders []Folder `json:"folders"`
	Files   []File   `json:"files"`
}

func (h *HierarchyProvider) FolderDetail(ctx context.Context, owner primitive.ObjectID, folderId primitive.ObjectID) (FolderDetail, error) {
	ctx, span := h.tracer.Start(ctx, "folderDetail")
	defer span.End()

	folder, err := h.folderById(ctx, owner, folderId)
	if err != nil {
		return FolderDetail{}, err
	}

	folders, err := h.findFolders(ctx, bson.M{"owner": owner, "parent": folderId})
	if err != nil {
		return FolderDetail{}, err
	}

	files, err := h.findFiles(ctx, bson.M{"owner": owner, "folder": folderId})
	if err != nil {
		return FolderDetail{}, err
	}
	h.resolveDownloadUrls(ctx, files)

	return FolderDetail{
		Folder:  folder,
		Folders: folders,
		Files:   files,
	}, nil
}

type TopLevel struct {
	Folders []Folder `json:"folders"`
	Files   []File   `json:"files"`
}

func (h *HierarchyProvider) TopLevel(ctx context.Context, owner primitive.ObjectID) (TopLevel, error) {
	ctx, span := h.tracer.Start(ctx, "topLevel")
	defer span.End()

	folders, err := h.findFolders(ctx, bson.M{"owner": owner, "parent": primitive.NilObjectID})
	if err != nil {
		return TopLevel{}, err
	}

	files, err := h.findFiles(ctx, bson.M{"owner": owner, "folder": primitive.NilObjectID})
	if err != nil {
		return TopLevel{}, err
	}
	h.resolveDownloadUrls(ctx, files)

	return TopLevel{
		Folders: folders,
		Files:   files,
	}, nil
}

func (h *HierarchyProvider) AllFolders(ctx context.Context, owner primitive.ObjectID) ([]Folder, error) {
	ctx, span := h.tracer.Start(ctx, "allFolders")
	defer span.End()

	return h.findFolders(ctx, bson.M{"owner": owner})
}

// DeleteFolder removes the folder and everything below it. File records
// go first, then the blobs (best effort), then the folder records from
// the bottom up.
func (h *HierarchyProvider) DeleteFolder(ctx context.Context, owner primitive.ObjectID, folderId primitive.ObjectID) error {
	ctx, span := h.tracer.Start(ctx, "deleteFolder")
	defer span.End()

	if _, err := h.folderById(ctx, owner, folderId); err != nil {
		return err
	}

	folderIds, err := h.collectDescendants(ctx, owner, folderId)
	if err != nil {
		return err
	}

	files, err := h.findFiles(ctx, bson.M{"owner": owner, "folder": bson.M{"$in": folderIds}})
	if err != nil {
		return err
	}

	if len(files) > 0 {
		fileIds := make([]primitive.ObjectID, len(files))
		for i, file := range files {
			fileIds[i] = file.Id
		}
		if _, err := h.files.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": fileIds}}); err != nil {
			return faults.Storage("while deleting file records", err)
		}
	}

	limiter := util.NewLimiter(deleteConcurrency)
	for _, file := range files {
		if !limiter.Begin(ctx) {
			break
		}
		go func(file File) {
			defer limiter.End()
			if err := h.store.Delete(ctx, file.Url); err != nil {
				h.log.Error("failed to delete blob for file", "file", file.Id.Hex(), "key", file.Url, "error", err)
			}
		}(file)
	}
	limiter.Join()

	// delete deepest first, so a failure never orphans a subtree
	for i := len(folderIds) - 1; i >= 0; i-- {
		if _, err := h.folders.DeleteOne(ctx, bson.M{"_id": folderIds[i]}); err != nil {
			return faults.Storage("while deleting folder record", err)
		}
	}

	return nil
}

// collectDescendants returns the folder and all folders below it,
// parents always before their children.
func (h *HierarchyProvider) collectDescendants(ctx context.Context, owner primitive.ObjectID, folderId primitive.ObjectID) ([]primitive.ObjectID, error) {
	result := []primitive.ObjectID{folderId}

	for frontier := []primitive.ObjectID{folderId}; len(frontier) > 0; {
		children, err := h.findFolders(ctx, bson.M{"owner": owner, "parent": bson.M{"$in": frontier}})
		if err != nil {
			return nil, err
		}
		frontier = nil
		for _, child := range children {
			result = append(result, child.Id)
			frontier = append(frontier, child.Id)
		}
	}

	return result, nil
}

type Favourites struct {
	Folders []Folder `json:"folders"`
	Files   []File   `json:"files"`
}

func (h *HierarchyProvider) Favourites(ctx context.Context, owner primitive.ObjectID) (Favourites, error) {
	ctx, span := h.tracer.Start(ctx, "favourites")
	defer span.End()

	folders, err := h.findFolders(ctx, bson.M{"owner": owner, "favourite": true})
	if err != nil {
		return Favourites{}, err
	}

	files, err := h.findFiles(ctx, bson.M{"owner": owner, "favourite": true})
	if err != nil {
		return Favourites{}, err
	}
	h.resolveDownloadUrls(ctx, files)

	return Favourites{
		Folders: folders,
		Files:   files,
	}, nil
}

// Resource is a file or a folder, used by the operations that accept
// either kind of id. A folder copy also carries the files duplicated
// into the new folder.
type Resource struct {
	File        *File   `json:"file,omitempty"`
	Folder      *Folder `json:"folder,omitempty"`
	CopiedFiles []File  `json:"files,omitempty"`
}

// MarkFavourite sets the favourite flag on the file or folder with
// the given id. Files are probed first. Marking an already favourite
// resource leaves it favourite.
func (h *HierarchyProvider) MarkFavourite(ctx context.Context, owner primitive.ObjectID, resourceId primitive.ObjectID) (Resource, error) {
	ctx, span := h.tracer.Start(ctx, "markFavourite")
	defer span.End()

	_, err := h.fileById(ctx, owner, resourceId)
	if err == nil {
		result := h.files.FindOneAndUpdate(ctx,
			bson.M{"_id": resourceId, "owner": owner},
			bson.M{"$set": bson.M{"favourite": true, "updatedAt": time.Now().UTC()}},
			options.FindOneAndUpdate().SetReturnDocument(options.After))
		if result.Err() != nil {
			return Resource{}, faults.Storage("while updating file", result.Err())
		}
		updated := File{}
		result.Decode(&updated)
		return Resource{File: &updated}, nil
	}
	if !faults.IsNotFound(err) {
		return Resource{}, err
	}

	if _, err := h.folderById(ctx, owner, resourceId); err != nil {
		return Resource{}, err
	}

	result := h.folders.FindOneAndUpdate(ctx,
		bson.M{"_id": resourceId, "owner": owner},
		bson.M{"$set": bson.M{"favourite": true, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	if result.Err() != nil {
		return Resource{}, faults.Storage("while updating folder", result.Err())
	}
	updated := Folder{}
	result.Decode(&updated)
	return Resource{Folder: &updated}, nil
}

func (h *HierarchyProvider) folderById(ctx context.Context, owner primitive.ObjectID, id primitive.ObjectID) (Folder, error) {
	folder := Folder{}
	err := h.folders.FindOne(ctx, bson.M{"_id": id, "owner": owner}).Decode(&folder)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Folder{}, faults.NotFound("folder not found")
		}
		return Folder{}, faults.Storage("while reading folder", err)
	}
	return folder, nil
}

func (h *HierarchyProvider) fileById(ctx context.Context, owner primitive.ObjectID, id primitive.ObjectID) (File, error) {
	file := File{}
	err := h.files.FindOne(ctx, bson.M{"_id": id, "owner": owner}).Decode(&file)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return File{}, faults.NotFound("file not found")
		}
		return File{}, faults.Storage("while reading file", err)
	}
	return file, nil
}

func (h *HierarchyProvider) findFolders(ctx context.Context, filter bson.M) ([]Folder, error) {
	cursor, err := h.folders.Find(ctx, filter)
	if err != nil {
		return nil, faults.Storage("while reading folders", err)
	}

	folders := make([]Folder, 0)
	if err := cursor.All(ctx, &folders); err != nil {
		return nil, faults.Storage("while reading folders", err)
	}
	return folders, nil
}

func (h *HierarchyProvider) findFiles(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]File, error) {
	cursor, err := h.files.Find(ctx, filter, opts...)
	if err != nil {
		return nil, faults.Storage("while reading files", err)
	}

	files := make([]File, 0)
	if err := cursor.All(ctx, &files); err != nil {
		return nil, faults.Storage("while reading files", err)
	}
	return files, nil
}

func (h *HierarchyProvider) resolveDownloadUrls(ctx context.Context, files []File) {
	for i := range files {
		url, err := h.store.RetrievalURL(ctx, files[i].Url)
		if err != nil {
			h.log.Warn("failed to resolve retrieval url", "file", files[i].Id.Hex(), "error", err)
			continue
		}
		files[i].DownloadUrl = url
	}
}
