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

package users

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/fx"
	"umbasa.net/nimbus/aggregation"
	"umbasa.net/nimbus/auth"
	"umbasa.net/nimbus/entities"
	"umbasa.net/nimbus/faults"
	handler "umbasa.net/nimbus/gateway-handler"
	"umbasa.net/nimbus/hierarchy"
	"umbasa.net/nimbus/logging"
	"umbasa.net/nimbus/users"
)

var Module = fx.Module("webapi-users",
	fx.Provide(
		New,
	),
)

type Params struct {
	fx.In

	Log         *logging.Logger
	Auth        auth.Auth
	Users       *users.UsersProvider
	Hierarchy   *hierarchy.HierarchyProvider
	Aggregation *aggregation.AggregationProvider
}

type Result struct {
	fx.Out

	Handler handler.GatewayHandler `group:"gatewayhandlers"`
}

type usersHandler struct {
	log         *slog.Logger
	auth        auth.Auth
	users       *users.UsersProvider
	hierarchy   *hierarchy.HierarchyProvider
	aggregation *aggregation.AggregationProvider
}

func New(p Params) Result {
	return Result{
		Handler: &usersHandler{
			log:         p.Log.GetLogger("webapi-users"),
			auth:        p.Auth,
			users:       p.Users,
			hierarchy:   p.Hierarchy,
			aggregation: p.Aggregation,
		},
	}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resetPasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type favouriteRequest struct {
	Id string `json:"id"`
}

func (h *usersHandler) Setup(engine *gin.Engine, apiGroup *gin.RouterGroup) {
	h.setupPublic(engine)
	h.setupAuthenticated(apiGroup)
}

func (h *usersHandler) setupPublic(engine *gin.Engine) {
	engine.POST("/api/users/signup", func(ctx *gin.Context) {
		req := signupRequest{}
		if err := ctx.BindJSON(&req); err != nil {
			handler.RespondError(ctx, faults.Validation("invalid request body"))
			return
		}

		user, token, err := h.users.Signup(ctx.Request.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusCreated, "user created", gin.H{"user": user, "token": token})
	})

	engine.POST("/api/users/login", func(ctx *gin.Context) {
		req := loginRequest{}
		if err := ctx.BindJSON(&req); err != nil {
			handler.RespondError(ctx, faults.Validation("invalid request body"))
			return
		}

		user, token, err := h.users.Login(ctx.Request.Context(), req.Email, req.Password)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "login successful", gin.H{"user": user, "token": token})
	})

	engine.POST("/api/users/forgot-password", func(ctx *gin.Context) {
		req := emailRequest{}
		if err := ctx.BindJSON(&req); err != nil {
			handler.RespondError(ctx, faults.Validation("invalid request body"))
			return
		}

		if err := h.users.ForgotPassword(ctx.Request.Context(), req.Email); err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "verification code sent", nil)
	})

	engine.POST("/api/users/verify-code", func(ctx *gin.Context) {
		req := verifyCodeRequest{}
		if err := ctx.BindJSON(&req); err != nil {
			handler.RespondError(ctx, faults.Validation("invalid request body"))
			return
		}

		if err := h.users.VerifyResetCode(ctx.Request.Context(), req.Email, req.Code); err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "code verified", nil)
	})

	engine.POST("/api/users/reset-password/:code", func(ctx *gin.Context) {
		req := resetPasswordRequest{}
		if err := ctx.BindJSON(&req); err != nil {
			handler.RespondError(ctx, faults.Validation("invalid request body"))
			return
		}

		err := h.users.ResetPassword(ctx.Request.Context(), req.Email, ctx.Param("code"), req.Password)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "password reset", nil)
	})
}

func (h *usersHandler) setupAuthenticated(apiGroup *gin.RouterGroup) {
	apiGroup.POST("users/change-password", func(ctx *gin.Context) {
		owner, ok := h.owner(ctx)
		if !ok {
			return
		}

		req := changePasswordRequest{}
		if err := ctx.BindJSON(&req); err != nil {
			handler.RespondError(ctx, faults.Validation("invalid request body"))
			return
		}

		user, err := h.users.GetUser(ctx.Request.Context(), owner)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		err = h.users.ChangePassword(ctx.Request.Context(), user.Email, req.CurrentPassword, req.NewPassword)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "password changed", nil)
	})

	apiGroup.GET("users/favourites", func(ctx *gin.Context) {
		owner, ok := h.owner(ctx)
		if !ok {
			return
		}

		favourites, err := h.hierarchy.Favourites(ctx.Request.Context(), owner)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "success", favourites)
	})

	apiGroup.POST("users/favourite", func(ctx *gin.Context) {
		owner, ok := h.owner(ctx)
		if !ok {
			return
		}

		req := favouriteRequest{}
		if err := ctx.BindJSON(&req); err != nil {
			handler.RespondError(ctx, faults.Validation("invalid request body"))
			return
		}

		resourceId, err := primitive.ObjectIDFromHex(req.Id)
		if err != nil {
			handler.RespondError(ctx, faults.Validation("invalid resource id"))
			return
		}

		resource, err := h.hierarchy.MarkFavourite(ctx.Request.Context(), owner, resourceId)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "favourite marked", resource)
	})

	apiGroup.GET("users/recents", func(ctx *gin.Context) {
		owner, ok := h.owner(ctx)
		if !ok {
			return
		}

		recents, err := h.aggregation.Recents(ctx.Request.Context(), owner)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "success", recents)
	})

	apiGroup.GET("users/calendar", func(ctx *gin.Context) {
		owner, ok := h.owner(ctx)
		if !ok {
			return
		}

		date, err := time.Parse(time.DateOnly, ctx.Query("date"))
		if err != nil {
			handler.RespondError(ctx, faults.Validation("invalid date, expected YYYY-MM-DD"))
			return
		}

		items, err := h.aggregation.ByDate(ctx.Request.Context(), owner, date)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "success", items)
	})

	apiGroup.GET("users/summary", func(ctx *gin.Context) {
		owner, ok := h.owner(ctx)
		if !ok {
			return
		}

		summary, err := h.aggregation.Summary(ctx.Request.Context(), owner)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "success", summary)
	})

	apiGroup.GET("users/:id", func(ctx *gin.Context) {
		owner, ok := h.self(ctx)
		if !ok {
			return
		}

		user, err := h.users.GetUser(ctx.Request.Context(), owner)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "success", user)
	})

	apiGroup.PATCH("users/:id", func(ctx *gin.Context) {
		owner, ok := h.self(ctx)
		if !ok {
			return
		}

		patch := entities.MakePrototype(&users.UserPrototype{})
		if err := ctx.BindJSON(patch); err != nil {
			handler.RespondError(ctx, faults.Validation("invalid request body"))
			return
		}

		user, err := h.users.UpdateUser(ctx.Request.Context(), owner, patch)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "user updated", user)
	})

	apiGroup.DELETE("users/:id", func(ctx *gin.Context) {
		owner, ok := h.self(ctx)
		if !ok {
			return
		}

		if err := h.users.DeleteUser(ctx.Request.Context(), owner); err != nil {
			handler.RespondError(ctx, err)
			return
		}

		handler.Respond(ctx, http.StatusOK, "user deleted", nil)
	})
}

func (h *usersHandler) owner(ctx *gin.Context) (primitive.ObjectID, bool) {
	owner, err := primitive.ObjectIDFromHex(h.auth.GetUserId(ctx))
	if err != nil {
		handler.RespondError(ctx, faults.Auth("invalid principal"))
		return primitive.NilObjectID, false
	}
	return owner, true
}

// self additionally requires the :id parameter to name the caller.
func (h *usersHandler) self(ctx *gin.Context) (primitive.ObjectID, bool) {
	owner, ok := h.owner(ctx)
	if !ok {
		return primitive.NilObjectID, false
	}
	if ctx.Param("id") != owner.Hex() {
		handler.RespondError(ctx, faults.Auth("cannot access another user"))
		return primitive.NilObjectID, false
	}
	return owner, true
}
