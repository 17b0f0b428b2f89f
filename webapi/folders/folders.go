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

package folders

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/fx"
	"umbasa.net/nimbus/auth"
	"umbasa.net/nimbus/entities"
	"umbasa.net/nimbus/faults"
	handler "umbasa.net/nimbus/gateway-handler"
	"umbasa.net/nimbus/hierarchy"
	"umbasa.net/nimbus/logging"
)

var Module = fx.Module("webapi-folders",
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

type foldersHandler struct {
	log       *slog.Logger
	auth      auth.Auth
	hierarchy *hierarchy.HierarchyProvider
}

func New(p Params) Result {
	return Result{
		Handler: &foldersHandler{
			log:       p.Log.GetLogger("webapi-folders"),
			auth:      p.Auth,
			hierarchy: p.Hierarchy,
		},
	}
}

type createFolderRequest struct {
	Name   string `json:"name"`
	Parent string `json:"parent"`
}

func (h *foldersHandler) Setup(engine *gin.Engine, apiGroup *gin.RouterGroup) {
	apiGroup.POST("folders", func(ctx *gin.Context) {
		owner, ok := ownerFrom(ctx, h.auth)
		if !ok {
			return
		}

		req := createFolderRequest{}
		if err := ctx.BindJSON(&req); err != nil {
			handler.RespondError(ctx, faults.Validation("invalid request body"))
			return
		}

		parent, err := optionalId(req.Parent)
		if err != nil {
			handler.RespondError(ctx, faults.Validation("invalid parent folder id"))
			return
		}

		folder, err := h.hierarchy.CreateFolder(ctx.Request.Context(), owner, req.Name, parent)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusCreated, "folder created", folder)
	})

	apiGroup.GET("folders", func(ctx *gin.Context) {
		owner, ok := ownerFrom(ctx, h.auth)
		if !ok {
			return
		}

		topLevel, err := h.hierarchy.TopLevel(ctx.Request.Context(), owner)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "success", topLevel)
	})

	apiGroup.GET("folders/all", func(ctx *gin.Context) {
		owner, ok := ownerFrom(ctx, h.auth)
		if !ok {
			return
		}

		folders, err := h.hierarchy.AllFolders(ctx.Request.Context(), owner)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "success", folders)
	})

	apiGroup.GET("folders/:id", func(ctx *gin.Context) {
		owner, ok := ownerFrom(ctx, h.auth)
		if !ok {
			return
		}

		folderId, err := primitive.ObjectIDFromHex(ctx.Param("id"))
		if err != nil {
			handler.RespondError(ctx, faults.Validation("invalid folder id"))
			return
		}

		detail, err := h.hierarchy.FolderDetail(ctx.Request.Context(), owner, folderId)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "success", detail)
	})

	apiGroup.PATCH("folders/:id", func(ctx *gin.Context) {
		owner, ok := ownerFrom(ctx, h.auth)
		if !ok {
			return
		}

		folderId, err := primitive.ObjectIDFromHex(ctx.Param("id"))
		if err != nil {
			handler.RespondError(ctx, faults.Validation("invalid folder id"))
			return
		}

		patch := entities.MakePrototype(&hierarchy.FolderPrototype{})
		if err := ctx.BindJSON(patch); err != nil {
			handler.RespondError(ctx, faults.Validation("invalid request body"))
			return
		}

		folder, err := h.hierarchy.UpdateFolder(ctx.Request.Context(), owner, folderId, patch)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "folder updated", folder)
	})

	apiGroup.DELETE("folders/:id", func(ctx *gin.Context) {
		owner, ok := ownerFrom(ctx, h.auth)
		if !ok {
			return
		}

		folderId, err := primitive.ObjectIDFromHex(ctx.Param("id"))
		if err != nil {
			handler.RespondError(ctx, faults.Validation("invalid folder id"))
			return
		}

		if err := h.hierarchy.DeleteFolder(ctx.Request.Context(), owner, folderId); err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "folder deleted", nil)
	})
}

// ownerFrom resolves the authenticated principal to an ObjectID. A
// respond-and-abort happens in place when the principal is unusable.
func ownerFrom(ctx *gin.Context, a auth.Auth) (primitive.ObjectID, bool) {
	owner, err := primitive.ObjectIDFromHex(a.GetUserId(ctx))
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
