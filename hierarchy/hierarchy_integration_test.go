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
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/fx/fxtest"
	"umbasa.net/nimbus/blob"
	"umbasa.net/nimbus/entities"
	"umbasa.net/nimbus/faults"
	"umbasa.net/nimbus/hierarchy"
	"umbasa.net/nimbus/logging"
	"umbasa.net/nimbus/mongodb"
	"umbasa.net/nimbus/tracing"
)

var mongoContainer testcontainers.Container
var mongoUrl string
var hierarchyMigrations hierarchy.Migrations

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

	v := viper.New()
	v.Set("mongo.url", mongoUrl)
	v.Set("mongo.db", "hierarchy_test")

	hierarchyMigrations, err = hierarchy.NewMigrations(v)
	if err != nil {
		panic(err)
	}
}

func shutdown() {
	if mongoContainer != nil {
		testcontainers.TerminateContainer(mongoContainer)
	}
}

func getProvider(t *testing.T) (*hierarchy.HierarchyProvider, blob.Store) {
	v := viper.New()
	v.Set("mongo.url", mongoUrl)
	v.Set("mongo.db", "hierarchy_test")
	v.Set("publicBaseUrl", "http://localhost:8080")

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

	res2, err := hierarchy.New(hierarchy.Params{
		Db:      res.Client.Database("hierarchy_test"),
		Logger:  logger,
		Tracing: tracing.NewNoopTracing(),
		Viper:   v,
		Store:   store,
		Mig:     hierarchyMigrations,
	})
	if err != nil {
		t.Fatal(err)
	}

	return res2.HierarchyProvider, store
}

func upload(t *testing.T, p *hierarchy.HierarchyProvider, owner primitive.ObjectID, name string, folder primitive.ObjectID, content string) hierarchy.File {
	file, err := p.Upload(context.Background(), owner, hierarchy.UploadRequest{
		Name:    name,
		Folder:  folder,
		Content: strings.NewReader(content),
	})
	if err != nil {
		t.Fatal(err)
	}
	return file
}

func TestFolderCrud(t *testing.T) {
	p, _ := getProvider(t)
	owner := primitive.NewObjectID()
	ctx := context.Background()

	folder, err := p.CreateFolder(ctx, owner, "documents", primitive.NilObjectID)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "documents", folder.Name)
	assert.Equal(t, owner, folder.Owner)
	assert.True(t, folder.Parent.IsZero())

	child, err := p.CreateFolder(ctx, owner, "invoices", folder.Id)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, folder.Id, child.Parent)

	top, err := p.TopLevel(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 1, len(top.Folders))
	assert.Equal(t, folder.Id, top.Folders[0].Id)

	detail, err := p.FolderDetail(ctx, owner, folder.Id)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 1, len(detail.Folders))
	assert.Equal(t, child.Id, detail.Folders[0].Id)

	patch := entities.MakePrototype(&hierarchy.FolderPrototype{})
	patch.Name.Set("papers")
	renamed, err := p.UpdateFolder(ctx, owner, folder.Id, patch)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "papers", renamed.Name)

	all, err := p.AllFolders(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 2, len(all))

	err = p.DeleteFolder(ctx, owner, child.Id)
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.FolderDetail(ctx, owner, child.Id)
	assert.True(t, faults.IsNotFound(err))
}

func TestCreateFolderValidation(t *testing.T) {
	p, _ := getProvider(t)
	owner := primitive.NewObjectID()
	ctx := context.Background()

	_, err := p.CreateFolder(ctx, owner, "   ", primitive.NilObjectID)
	assert.True(t, faults.IsValidation(err))

	_, err = p.CreateFolder(ctx, owner, "orphan", primitive.NewObjectID())
	assert.True(t, faults.IsValidation(err))
}

func TestMoveFolderRejectsCycle(t *testing.T) {
	p, _ := getProvider(t)
	owner := primitive.NewObjectID()
	ctx := context.Background()

	a, err := p.CreateFolder(ctx, owner, "a", primitive.NilObjectID)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.CreateFolder(ctx, owner, "b", a.Id)
	if err != nil {
		t.Fatal(err)
	}

	patch := entities.MakePrototype(&hierarchy.FolderPrototype{})
	patch.Parent.Set(b.Id)
	_, err = p.UpdateFolder(ctx, owner, a.Id, patch)
	assert.True(t, faults.IsValidation(err))

	patch = entities.MakePrototype(&hierarchy.FolderPrototype{})
	patch.Parent.Set(a.Id)
	_, err = p.UpdateFolder(ctx, owner, a.Id, patch)
	assert.True(t, faults.IsValidation(err))
}

func TestUploadAndDuplicate(t *testing.T) {
	p, store := getProvider(t)
	owner := primitive.NewObjectID()
	ctx := context.Background()

	folder, err := p.CreateFolder(ctx, owner, "stuff", primitive.NilObjectID)
	if err != nil {
		t.Fatal(err)
	}

	file := upload(t, p, owner, "notes.txt", folder.Id, "hello")
	assert.Equal(t, "notes.txt", file.Name)
	assert.Equal(t, "5 B", file.FileSize)
	assert.Equal(t, "txt", file.FileExtension)
	assert.NotEmpty(t, file.FileType)
	assert.NotEmpty(t, file.DownloadUrl)

	exists, err := store.Exists(ctx, file.Url)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, exists)

	_, err = p.Upload(ctx, owner, hierarchy.UploadRequest{
		Name:    "notes.txt",
		Folder:  folder.Id,
		Content: strings.NewReader("hello"),
	})
	assert.True(t, faults.IsConflict(err))

	conflict, ok := faults.AsConflict(err)
	assert.True(t, ok)
	existing, ok := conflict.Existing.(*hierarchy.File)
	assert.True(t, ok)
	assert.Equal(t, file.Id, existing.Id)

	_, err = p.Upload(ctx, owner, hierarchy.UploadRequest{
		Name:    "other.txt",
		Folder:  primitive.NewObjectID(),
		Content: strings.NewReader("hello"),
	})
	assert.True(t, faults.IsValidation(err))
}

func TestDeleteFolderCascades(t *testing.T) {
	p, store := getProvider(t)
	owner := primitive.NewObjectID()
	ctx := context.Background()

	root, err := p.CreateFolder(ctx, owner, "root", primitive.NilObjectID)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := p.CreateFolder(ctx, owner, "sub", root.Id)
	if err != nil {
		t.Fatal(err)
	}

	f1 := upload(t, p, owner, "a.txt", root.Id, "aaa")
	f2 := upload(t, p, owner, "b.txt", sub.Id, "bbb")

	err = p.DeleteFolder(ctx, owner, root.Id)
	if err != nil {
		t.Fatal(err)
	}

	top, err := p.TopLevel(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	assert.Empty(t, top.Folders)
	assert.Empty(t, top.Files)

	for _, key := range []string{f1.Url, f2.Url} {
		exists, err := store.Exists(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		assert.False(t, exists)
	}
}

func TestCopyFileAndFolder(t *testing.T) {
	p, store := getProvider(t)
	owner := primitive.NewObjectID()
	ctx := context.Background()

	source, err := p.CreateFolder(ctx, owner, "source", primitive.NilObjectID)
	if err != nil {
		t.Fatal(err)
	}
	target, err := p.CreateFolder(ctx, owner, "target", primitive.NilObjectID)
	if err != nil {
		t.Fatal(err)
	}

	file := upload(t, p, owner, "pic.png", source.Id, "pngdata")

	res, err := p.Copy(ctx, owner, file.Id, target.Id)
	if err != nil {
		t.Fatal(err)
	}
	assert.NotNil(t, res.File)
	assert.Equal(t, target.Id, res.File.Folder)
	assert.NotEqual(t, file.Url, res.File.Url)

	exists, err := store.Exists(ctx, res.File.Url)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, exists)

	res, err = p.Copy(ctx, owner, source.Id, primitive.NilObjectID)
	if err != nil {
		t.Fatal(err)
	}
	assert.NotNil(t, res.Folder)
	assert.Equal(t, "source Copy", res.Folder.Name)
	assert.Equal(t, 1, len(res.CopiedFiles))
	assert.Equal(t, "pic.png", res.CopiedFiles[0].Name)
	assert.Equal(t, res.Folder.Id, res.CopiedFiles[0].Folder)

	detail, err := p.FolderDetail(ctx, owner, res.Folder.Id)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 1, len(detail.Files))
	assert.Equal(t, "pic.png", detail.Files[0].Name)
}

func TestRenameFile(t *testing.T) {
	p, store := getProvider(t)
	owner := primitive.NewObjectID()
	ctx := context.Background()

	file := upload(t, p, owner, "draft.txt", primitive.NilObjectID, "content")

	// renaming keeps the original extension
	renamed, err := p.RenameFile(ctx, owner, file.Id, "final")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "final", renamed.Name)
	assert.Equal(t, "txt", renamed.FileExtension)
	assert.NotEqual(t, file.Url, renamed.Url)
	assert.True(t, strings.HasSuffix(renamed.Url, ".txt"))

	exists, err := store.Exists(ctx, file.Url)
	if err != nil {
		t.Fatal(err)
	}
	assert.False(t, exists)

	exists, err = store.Exists(ctx, renamed.Url)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, exists)

	_, err = p.RenameFile(ctx, owner, file.Id, "")
	assert.True(t, faults.IsValidation(err))

	_, err = p.RenameFile(ctx, owner, primitive.NewObjectID(), "x.txt")
	assert.True(t, faults.IsNotFound(err))
}

func TestDeleteFile(t *testing.T) {
	p, store := getProvider(t)
	owner := primitive.NewObjectID()
	ctx := context.Background()

	file := upload(t, p, owner, "gone.txt", primitive.NilObjectID, "bye")

	err := p.DeleteFile(ctx, owner, file.Id)
	if err != nil {
		t.Fatal(err)
	}

	exists, err := store.Exists(ctx, file.Url)
	if err != nil {
		t.Fatal(err)
	}
	assert.False(t, exists)

	err = p.DeleteFile(ctx, owner, file.Id)
	assert.True(t, faults.IsNotFound(err))
}

func TestShareLinkRoundTrip(t *testing.T) {
	p, _ := getProvider(t)
	owner := primitive.NewObjectID()
	ctx := context.Background()

	file := upload(t, p, owner, "shared.txt", primitive.NilObjectID, "shared content")

	link, err := p.IssueShareLink(ctx, owner, file.Id)
	if err != nil {
		t.Fatal(err)
	}
	assert.Contains(t, link, "/api/files/shared/"+file.Id.Hex()+"/")

	token := link[strings.LastIndex(link, "/")+1:]

	download, err := p.ResolveSharedLink(ctx, file.Id, token)
	if err != nil {
		t.Fatal(err)
	}
	defer download.Reader.Close()

	content, err := io.ReadAll(download.Reader)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "shared content", string(content))
	assert.Equal(t, "shared.txt", download.File.Name)

	_, err = p.ResolveSharedLink(ctx, file.Id, "bogus")
	assert.True(t, faults.IsNotFound(err))
}

func TestMarkFavourite(t *testing.T) {
	p, _ := getProvider(t)
	owner := primitive.NewObjectID()
	ctx := context.Background()

	file := upload(t, p, owner, "fav.txt", primitive.NilObjectID, "x")

	res, err := p.MarkFavourite(ctx, owner, file.Id)
	if err != nil {
		t.Fatal(err)
	}
	assert.NotNil(t, res.File)
	assert.True(t, res.File.Favourite)

	// marking again keeps the flag set
	res, err = p.MarkFavourite(ctx, owner, file.Id)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, res.File.Favourite)

	folder, err := p.CreateFolder(ctx, owner, "favdir", primitive.NilObjectID)
	if err != nil {
		t.Fatal(err)
	}

	res, err = p.MarkFavourite(ctx, owner, folder.Id)
	if err != nil {
		t.Fatal(err)
	}
	assert.NotNil(t, res.Folder)
	assert.True(t, res.Folder.Favourite)

	favs, err := p.Favourites(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 1, len(favs.Folders))
	assert.Equal(t, 1, len(favs.Files))

	_, err = p.MarkFavourite(ctx, owner, primitive.NewObjectID())
	assert.True(t, faults.IsNotFound(err))
}

func TestSearchAndClasses(t *testing.T) {
	p, _ := getProvider(t)
	owner := primitive.NewObjectID()
	ctx := context.Background()

	upload(t, p, owner, "report.txt", primitive.NilObjectID, "text")
	upload(t, p, owner, "report.pdf", primitive.NilObjectID, "pdf")
	upload(t, p, owner, "photo.png", primitive.NilObjectID, "png")

	results, err := p.Search(ctx, owner, "report")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 2, len(results))

	results, err = p.Search(ctx, owner, "PHOTO")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 1, len(results))
	assert.Equal(t, "photo.png", results[0].Name)

	notes, err := p.ListByClass(ctx, owner, "notes")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 1, len(notes))
	assert.Equal(t, "report.txt", notes[0].Name)

	pdfs, err := p.ListByClass(ctx, owner, "pdfs")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 1, len(pdfs))

	_, err = p.ListByClass(ctx, owner, "videos")
	assert.True(t, faults.IsValidation(err))
}
