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
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"umbasa.net/nimbus/aggregation"
	"umbasa.net/nimbus/blob"
	"umbasa.net/nimbus/entities"
	"umbasa.net/nimbus/events"
	"umbasa.net/nimbus/faults"
	"umbasa.net/nimbus/messaging"
	"umbasa.net/nimbus/util"
)

const shareTokenLength = 32

// file classes selectable via the listing endpoints
var fileClasses = map[string][]string{
	"notes":  {"txt", "md", "doc", "docx"},
	"images": {"jpg", "jpeg", "png", "gif", "webp"},
	"pdfs":   {"pdf"},
}

type UploadRequest struct {
	Name        string
	Folder      primitive.ObjectID
	ContentType string
	Content     io.Reader
}

// Upload stores the content first and checks for duplicates afterwards:
// the blob has to be written anyway to learn the actual size, which is
// part of the duplicate key. On a duplicate the fresh blob is removed
// again and the existing record is returned in the conflict.
func (h *HierarchyProvider) Upload(ctx context.Context, owner primitive.ObjectID, req UploadRequest) (File, error) {
	ctx, span := h.tracer.Start(ctx, "upload")
	defer span.End()

	if strings.TrimSpace(req.Name) == "" {
		return File{}, faults.Validation("file name must not be empty")
	}
	if !req.Folder.IsZero() {
		if _, err := h.folderById(ctx, owner, req.Folder); err != nil {
			if faults.IsNotFound(err) {
				return File{}, faults.Validation("target folder does not exist")
			}
			return File{}, err
		}
	}

	key := blob.NewKey(req.Name)
	header := &prefixRecorder{}
	written, err := h.store.Put(ctx, key, io.TeeReader(req.Content, header))
	if err != nil {
		return File{}, faults.Storage("while storing file content", err)
	}

	fileType := req.ContentType
	if fileType == "" {
		fileType = mimetype.Detect(header.prefix).String()
	}

	sizeLabel := aggregation.FormatSize(written)
	extension := extensionOf(req.Name)

	existing, found, err := h.findDuplicate(ctx, owner, req.Name, req.Folder, sizeLabel, extension)
	if err != nil {
		return File{}, err
	}
	if found {
		if err := h.store.Delete(ctx, key); err != nil {
			h.log.Error("failed to delete blob after duplicate upload", "key", key, "error", err)
		}
		return File{}, faults.Conflict("file already exists", existing)
	}

	now := time.Now().UTC()
	proto := entities.MakePrototype(&FilePrototype{})
	proto.Name.Set(req.Name)
	proto.Owner.Set(owner)
	proto.Folder.Set(req.Folder)
	proto.Url.Set(key)
	proto.FileType.Set(fileType)
	proto.FileSize.Set(sizeLabel)
	proto.FileExtension.Set(extension)
	proto.Favourite.Set(false)
	proto.SharedWith.Set([]SharedWith{})
	proto.AccessLogs.Set([]AccessLog{})
	proto.SharedLinks.Set([]SharedLink{})
	proto.CreatedAt.Set(now)
	proto.UpdatedAt.Set(now)

	insertRes, err := h.files.InsertOne(ctx, proto)
	if err != nil {
		return File{}, faults.Storage("while creating file record", err)
	}

	file := File{}
	if err := h.files.FindOne(ctx, bson.M{"_id": insertRes.InsertedID}).Decode(&file); err != nil {
		return File{}, faults.Storage("while reading created file", err)
	}

	files := []File{file}
	h.resolveDownloadUrls(ctx, files)
	return files[0], nil
}

// Copy duplicates a file or a folder. Folder copies are shallow: a new
// folder named "<name> Copy" is created and only the direct file
// children are copied into it.
func (h *HierarchyProvider) Copy(ctx context.Context, owner primitive.ObjectID, resourceId primitive.ObjectID, targetFolder primitive.ObjectID) (Resource, error) {
	ctx, span := h.tracer.Start(ctx, "copy")
	defer span.End()

	if !targetFolder.IsZero() {
		if _, err := h.folderById(ctx, owner, targetFolder); err != nil {
			if faults.IsNotFound(err) {
				return Resource{}, faults.Validation("target folder does not exist")
			}
			return Resource{}, err
		}
	}

	file, err := h.fileById(ctx, owner, resourceId)
	if err == nil {
		copied, err := h.copyFile(ctx, owner, file, targetFolder)
		if err != nil {
			return Resource{}, err
		}
		return Resource{File: &copied}, nil
	}
	if !faults.IsNotFound(err) {
		return Resource{}, err
	}

	folder, err := h.folderById(ctx, owner, resourceId)
	if err != nil {
		return Resource{}, err
	}

	copied, copiedFiles, err := h.copyFolder(ctx, owner, folder, targetFolder)
	if err != nil {
		return Resource{}, err
	}
	return Resource{Folder: &copied, CopiedFiles: copiedFiles}, nil
}

func (h *HierarchyProvider) copyFile(ctx context.Context, owner primitive.ObjectID, file File, targetFolder primitive.ObjectID) (File, error) {
	existing, found, err := h.findDuplicate(ctx, owner, file.Name, targetFolder, file.FileSize, file.FileExtension)
	if err != nil {
		return File{}, err
	}
	if found {
		return File{}, faults.Conflict("file already exists", existing)
	}

	newKey := blob.NewKey(file.Name)
	if err := h.store.Copy(ctx, file.Url, newKey); err != nil {
		return File{}, faults.Storage("while copying file content", err)
	}

	now := time.Now().UTC()
	proto := entities.MakePrototype(&FilePrototype{})
	proto.Name.Set(file.Name)
	proto.Owner.Set(owner)
	proto.Folder.Set(targetFolder)
	proto.Url.Set(newKey)
	proto.FileType.Set(file.FileType)
	proto.FileSize.Set(file.FileSize)
	proto.FileExtension.Set(file.FileExtension)
	proto.Favourite.Set(false)
	proto.SharedWith.Set([]SharedWith{})
	proto.AccessLogs.Set([]AccessLog{})
	proto.SharedLinks.Set([]SharedLink{})
	proto.CreatedAt.Set(now)
	proto.UpdatedAt.Set(now)

	insertRes, err := h.files.InsertOne(ctx, proto)
	if err != nil {
		return File{}, faults.Storage("while creating file record", err)
	}

	copied := File{}
	if err := h.files.FindOne(ctx, bson.M{"_id": insertRes.InsertedID}).Decode(&copied); err != nil {
		return File{}, faults.Storage("while reading copied file", err)
	}
	return copied, nil
}

func (h *HierarchyProvider) copyFolder(ctx context.Context, owner primitive.ObjectID, folder Folder, targetFolder primitive.ObjectID) (Folder, []File, error) {
	copied, err := h.CreateFolder(ctx, owner, folder.Name+" Copy", targetFolder)
	if err != nil {
		return Folder{}, nil, err
	}

	files, err := h.findFiles(ctx, bson.M{"owner": owner, "folder": folder.Id})
	if err != nil {
		return Folder{}, nil, err
	}

	copiedFiles := make([]File, 0, len(files))
	for _, file := range files {
		copiedFile, err := h.copyFile(ctx, owner, file, copied.Id)
		if err != nil {
			// a duplicate inside a fresh folder would mean duplicate
			// source records; report anything else
			if !faults.IsConflict(err) {
				return Folder{}, nil, err
			}
			continue
		}
		copiedFiles = append(copiedFiles, copiedFile)
	}

	return copied, copiedFiles, nil
}

// RenameFile updates the record before touching the blob: a crash
// between the two steps leaves a record whose locator can be repaired,
// whereas a renamed blob with a stale record would be unreachable.
func (h *HierarchyProvider) RenameFile(ctx context.Context, owner primitive.ObjectID, fileId primitive.ObjectID, newName string) (File, error) {
	ctx, span := h.tracer.Start(ctx, "renameFile")
	defer span.End()

	if strings.TrimSpace(newName) == "" {
		return File{}, faults.Validation("file name must not be empty")
	}

	file, err := h.fileById(ctx, owner, fileId)
	if err != nil {
		return File{}, err
	}

	exists, err := h.store.Exists(ctx, file.Url)
	if err != nil {
		return File{}, faults.Storage("while checking file content", err)
	}
	if !exists {
		return File{}, faults.NotFound("file not found in blob store")
	}

	// The extension sticks with the file: renaming "report.pdf" to
	// "summary" keeps it a pdf, in the record and in the blob key.
	keyName := newName
	if file.FileExtension != "" {
		keyName = newName + "." + file.FileExtension
	}
	newKey := blob.NewKey(keyName)

	patch := entities.MakePrototype(&FilePrototype{})
	patch.Name.Set(newName)
	patch.Url.Set(newKey)
	patch.FileExtension.Set(file.FileExtension)
	patch.UpdatedAt.Set(time.Now().UTC())

	result := h.files.FindOneAndUpdate(ctx,
		bson.M{"_id": fileId, "owner": owner},
		bson.M{"$set": patch},
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	if result.Err() != nil {
		return File{}, faults.Storage("while updating file record", result.Err())
	}

	if err := h.store.Rename(ctx, file.Url, newKey); err != nil {
		return File{}, faults.Storage("while renaming file content", err)
	}

	updated := File{}
	result.Decode(&updated)
	return updated, nil
}

func (h *HierarchyProvider) DeleteFile(ctx context.Context, owner primitive.ObjectID, fileId primitive.ObjectID) error {
	ctx, span := h.tracer.Start(ctx, "deleteFile")
	defer span.End()

	file, err := h.fileById(ctx, owner, fileId)
	if err != nil {
		return err
	}

	if _, err := h.files.DeleteOne(ctx, bson.M{"_id": fileId, "owner": owner}); err != nil {
		return faults.Storage("while deleting file record", err)
	}

	if err := h.store.Delete(ctx, file.Url); err != nil {
		h.log.Error("failed to delete blob for file", "file", fileId.Hex(), "key", file.Url, "error", err)
	}

	return nil
}

// IssueShareLink appends a fresh token to the file's shared links and
// returns the absolute public URL. Links do not expire.
func (h *HierarchyProvider) IssueShareLink(ctx context.Context, owner primitive.ObjectID, fileId primitive.ObjectID) (string, error) {
	ctx, span := h.tracer.Start(ctx, "issueShareLink")
	defer span.End()

	if _, err := h.fileById(ctx, owner, fileId); err != nil {
		return "", err
	}

	token := util.RandomString(shareTokenLength)
	link := SharedLink{
		Link:      token,
		CreatedAt: time.Now().UTC(),
	}

	_, err := h.files.UpdateOne(ctx,
		bson.M{"_id": fileId, "owner": owner},
		bson.M{"$push": bson.M{"sharedLinks": link}})
	if err != nil {
		return "", faults.Storage("while storing shared link", err)
	}

	return h.baseUrl + "/api/files/shared/" + fileId.Hex() + "/" + token, nil
}

type SharedDownload struct {
	File   File
	Reader io.ReadCloser
}

// ResolveSharedLink looks up the file by id and token, without any
// owner scoping: share links are the public surface. The caller must
// close the reader.
func (h *HierarchyProvider) ResolveSharedLink(ctx context.Context, fileId primitive.ObjectID, token string) (SharedDownload, error) {
	ctx, span := h.tracer.Start(ctx, "resolveSharedLink")
	defer span.End()

	file := File{}
	err := h.files.FindOne(ctx, bson.M{"_id": fileId, "sharedLinks.link": token}).Decode(&file)
	if err != nil {
		return SharedDownload{}, faults.NotFound("shared link not found")
	}

	reader, err := h.store.Open(ctx, file.Url)
	if err != nil {
		return SharedDownload{}, faults.NotFound("file not found in blob store")
	}

	h.publishAccess(ctx, file, "", events.FileAccessActionDownload)

	return SharedDownload{
		File:   file,
		Reader: reader,
	}, nil
}

type SearchResult struct {
	File

	FolderName string `json:"folderName,omitempty"`
	OwnerName  string `json:"ownerName,omitempty"`
}

// Search matches the query as a case-insensitive substring of the file
// name, newest first.
func (h *HierarchyProvider) Search(ctx context.Context, owner primitive.ObjectID, query string) ([]SearchResult, error) {
	ctx, span := h.tracer.Start(ctx, "search")
	defer span.End()

	filter := bson.M{
		"owner": owner,
		"name":  primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"},
	}
	files, err := h.findFiles(ctx, filter, options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	h.resolveDownloadUrls(ctx, files)

	folderNames, err := h.folderNames(ctx, owner, files)
	if err != nil {
		return nil, err
	}
	ownerName := h.ownerName(ctx, owner)

	results := make([]SearchResult, len(files))
	for i, file := range files {
		results[i] = SearchResult{
			File:       file,
			FolderName: folderNames[file.Folder],
			OwnerName:  ownerName,
		}
	}
	return results, nil
}

// ListByClass returns the owner's files of the given class. The filter
// runs in-process over all of the owner's files, which is fine for the
// personal-drive scale this serves.
func (h *HierarchyProvider) ListByClass(ctx context.Context, owner primitive.ObjectID, class string) ([]File, error) {
	ctx, span := h.tracer.Start(ctx, "listByClass")
	defer span.End()

	extensions, ok := fileClasses[class]
	if !ok {
		return nil, faults.Validation("unknown file class: " + class)
	}

	files, err := h.findFiles(ctx, bson.M{"owner": owner})
	if err != nil {
		return nil, err
	}

	matching := make([]File, 0)
	for _, file := range files {
		for _, ext := range extensions {
			if file.FileExtension == ext {
				matching = append(matching, file)
				break
			}
		}
	}

	h.resolveDownloadUrls(ctx, matching)
	return matching, nil
}

func (h *HierarchyProvider) findDuplicate(ctx context.Context, owner primitive.ObjectID, name string, folder primitive.ObjectID, sizeLabel string, extension string) (*File, bool, error) {
	filter := entities.MakePrototype(&FilePrototype{})
	filter.Name.Set(name)
	filter.Owner.Set(owner)
	filter.Folder.Set(folder)
	filter.FileSize.Set(sizeLabel)
	filter.FileExtension.Set(extension)

	existing := File{}
	err := h.files.FindOne(ctx, filter).Decode(&existing)
	if err == nil {
		return &existing, true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	return nil, false, faults.Storage("while checking for duplicate file", err)
}

func (h *HierarchyProvider) folderNames(ctx context.Context, owner primitive.ObjectID, files []File) (map[primitive.ObjectID]string, error) {
	ids := make([]primitive.ObjectID, 0)
	seen := make(map[primitive.ObjectID]bool)
	for _, file := range files {
		if !file.Folder.IsZero() && !seen[file.Folder] {
			seen[file.Folder] = true
			ids = append(ids, file.Folder)
		}
	}
	if len(ids) == 0 {
		return map[primitive.ObjectID]string{}, nil
	}

	folders, err := h.findFolders(ctx, bson.M{"owner": owner, "_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}

	names := make(map[primitive.ObjectID]string, len(folders))
	for _, folder := range folders {
		names[folder.Id] = folder.Name
	}
	return names, nil
}

func (h *HierarchyProvider) ownerName(ctx context.Context, owner primitive.ObjectID) string {
	var user struct {
		Name string `bson:"name"`
	}
	if err := h.users.FindOne(ctx, bson.M{"_id": owner}).Decode(&user); err != nil {
		return ""
	}
	return user.Name
}

func (h *HierarchyProvider) publishAccess(ctx context.Context, file File, userId string, action string) {
	if h.nc == nil {
		return
	}

	event := events.FileAccessEvent{
		Event: events.Event{
			ID:      uuid.NewString(),
			Version: 1,
		},
		UserID:    userId,
		FileID:    file.Id.Hex(),
		FileName:  file.Name,
		Action:    action,
		Timestamp: time.Now().Unix(),
	}

	data, err := events.Api.Marshal(events.Schema, event)
	if err != nil {
		h.log.Error("failed to encode file access event", "error", err)
		return
	}

	msg := &nats.Msg{
		Subject: events.FileAccessTopic,
		Header:  messaging.InjectTraceContext(ctx, nats.Header{}),
		Data:    data,
	}
	if err := h.nc.PublishMsg(msg); err != nil {
		h.log.Error("failed to publish file access event", "error", err)
	}
}

func extensionOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// prefixRecorder captures the first bytes of a stream for mime sniffing.
type prefixRecorder struct {
	prefix []byte
}

const sniffLength = 3072

func (r *prefixRecorder) Write(p []byte) (int, error) {
	if len(r.prefix) < sniffLength {
		take := sniffLength - len(r.prefix)
		if take > len(p) {
			take = len(p)
		}
		r.prefix = append(r.prefix, p[:take]...)
	}
	return len(p), nil
}
