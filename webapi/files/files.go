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

package files

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/akyoto/cache"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/fx"
	"umbasa.net/nimbus/auth"
	"umbasa.net/nimbus/faults"
	handler "umbasa.net/nimbus/gateway-handler"
	"umbasa.net/nimbus/hierarchy"
	"umbasa.net/nimbus/logging"
	"umbasa.net/nimbus/util"
)

// invalid share lookups are remembered briefly to keep repeated probing
// away from the database
const notFoundCacheTTL = time.Minute

var Module = fx.Module("webapi-files",
	fx.Provide(
		New,
	),
)

type Params struct {
	fx.In

	Log       *logging.Logger
	Auth      auth.Auth
	Hierarchy *hierarchy.HierarchyProvider
}

type Result struct {
	fx.Out

	Handler handler.GatewayHandler `group:"gatewayhandlers"`
}

type filesHandler struct {
	log           *slog.Logger
	auth          auth.Auth
	hierarchy     *hierarchy.HierarchyProvider
	notFoundCache *cache.Cache
}

func New(p Params) Result {
	return Result{
		Handler: &filesHandler{
			log:           p.Log.GetLogger("webapi-files"),
			auth:          p.Auth,
			hierarchy:     p.Hierarchy,
			notFoundCache: cache.New(notFoundCacheTTL),
		},
	}
}

type renameRequest struct {
	Name string `json:"name"`
}

type copyRequest struct {
	Id     string `json:"id"`
	Folder string `json:"folder"`
}

func (h *filesHandler) Setup(engine *gin.Engine, apiGroup *gin.RouterGroup) {
	apiGroup.POST("files/upload", func(ctx *gin.Context) {
		owner, ok := h.owner(ctx)
		if !ok {
			return
		}

		fileHeader, err := ctx.FormFile("file")
		if err != nil {
			handler.RespondError(ctx, faults.Validation("no file in request"))
			return
		}

		folder, err := optionalId(ctx.PostForm("folder"))
		if err != nil {
			handler.RespondError(ctx, faults.Validation("invalid folder id"))
			return
		}

		content, err := fileHeader.Open()
		if err != nil {
			handler.RespondError(ctx, faults.Storage("while reading upload", err))
			return
		}
		defer content.Close()

		file, err := h.hierarchy.Upload(ctx.Request.Context(), owner, hierarchy.UploadRequest{
			Name:        fileHeader.Filename,
			Folder:      folder,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Content:     content,
		})
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusCreated, "file uploaded", file)
	})

	apiGroup.GET("files/search", func(ctx *gin.Context) {
		owner, ok := h.owner(ctx)
		if !ok {
			return
		}

		query := ctx.Query("q")
		if query == "" {
			query = ctx.Query("name")
		}

		results, err := h.hierarchy.Search(ctx.Request.Context(), owner, query)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "success", results)
	})

	for _, class := range []string{"notes", "images", "pdfs"} {
		class := class
		apiGroup.GET("files/"+class, func(ctx *gin.Context) {
			owner, ok := h.owner(ctx)
			if !ok {
				return
			}

			files, err := h.hierarchy.ListByClass(ctx.Request.Context(), owner, class)
			if err != nil {
				handler.RespondError(ctx, err)
				return
			}

			handler.Respond(ctx, http.StatusOK, "success", files)
		})
	}

	apiGroup.PUT("files/:id", func(ctx *gin.Context) {
		owner, ok := h.owner(ctx)
		if !ok {
			return
		}

		fileId, err := primitive.ObjectIDFromHex(ctx.Param("id"))
		if err != nil {
			handler.RespondError(ctx, faults.Validation("invalid file id"))
			return
		}

		req := renameRequest{}
		if err := ctx.BindJSON(&req); err != nil {
			handler.RespondError(ctx, faults.Validation("invalid request body"))
			return
		}

		file, err := h.hierarchy.RenameFile(ctx.Request.Context(), owner, fileId, req.Name)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "file renamed", file)
	})

	apiGroup.DELETE("files/:id", func(ctx *gin.Context) {
		owner, ok := h.owner(ctx)
		if !ok {
			return
		}

		fileId, err := primitive.ObjectIDFromHex(ctx.Param("id"))
		if err != nil {
			handler.RespondError(ctx, faults.Validation("invalid file id"))
			return
		}

		if err := h.hierarchy.DeleteFile(ctx.Request.Context(), owner, fileId); err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "file deleted", nil)
	})

	apiGroup.POST("files/:id/share", func(ctx *gin.Context) {
		owner, ok := h.owner(ctx)
		if !ok {
			return
		}

		fileId, err := primitive.ObjectIDFromHex(ctx.Param("id"))
		if err != nil {
			handler.RespondError(ctx, faults.Validation("invalid file id"))
			return
		}

		link, err := h.hierarchy.IssueShareLink(ctx.Request.Context(), owner, fileId)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusCreated, "share link created", gin.H{"link": link})
	})

	apiGroup.POST("files/copy", func(ctx *gin.Context) {
		owner, ok := h.owner(ctx)
		if !ok {
			return
		}

		req := copyRequest{}
		if err := ctx.BindJSON(&req); err != nil {
			handler.RespondError(ctx, faults.Validation("invalid request body"))
			return
		}

		resourceId, err := primitive.ObjectIDFromHex(req.Id)
		if err != nil {
			handler.RespondError(ctx, faults.Validation("invalid resource id"))
			return
		}
		folder, err := optionalId(req.Folder)
		if err != nil {
			handler.RespondError(ctx, faults.Validation("invalid folder id"))
			return
		}

		resource, err := h.hierarchy.Copy(ctx.Request.Context(), owner, resourceId, folder)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusCreated, "copy created", resource)
	})

	// public: share links carry their own proof of access
	engine.GET("/api/files/shared/:id/:token", func(ctx *gin.Context) {
		fileId, err := primitive.ObjectIDFromHex(ctx.Param("id"))
		if err != nil {
			handler.RespondError(ctx, faults.NotFound("shared link not found"))
			return
		}
		token := ctx.Param("token")

		cacheKey := ctx.Param("id") + "/" + token
		if _, found := h.notFoundCache.Get(cacheKey); found {
			handler.RespondError(ctx, faults.NotFound("shared link not found"))
			return
		}

		download, err := h.hierarchy.ResolveSharedLink(ctx.Request.Context(), fileId, token)
		if err != nil {
			if faults.IsNotFound(err) {
				h.notFoundCache.Set(cacheKey, true, notFoundCacheTTL)
			}
			handler.RespondError(ctx, err)
			return
		}
		defer download.Reader.Close()

		ctx.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": download.File.Name}))
		ctx.Header("Content-Type", download.File.FileType)
		ctx.Status(http.StatusOK)

		if _, err := io.Copy(ctx.Writer, &util.FastReader{Reader: download.Reader}); err != nil {
			h.log.Warn("shared download aborted", "file", download.File.Id.Hex(), "error", err)
		}
	})
}

func (h *filesHandler) owner(ctx *gin.Context) (primitive.ObjectID, bool) {
	owner, err := primitive.ObjectIDFromHex(h.auth.GetUserId(ctx))
	if err != nil {
		handler.RespondError(ctx, faults.Auth("invalid principal"))
		return primitive.NilObjectID, false
	}
	return owner, true
}

func optionalId(hex string) (primitive.ObjectID, error) {
	if hex == "" {
		return primitive.NilObjectID, nil
	}
	return primitive.ObjectIDFromHex(hex)
}
