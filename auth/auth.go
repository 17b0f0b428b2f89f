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

package auth

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"umbasa.net/nimbus/faults"
	handler "umbasa.net/nimbus/gateway-handler"
	"umbasa.net/nimbus/logging"
)

const userIdKey = "nimbus.userId"

var Module = fx.Module("auth",
	fx.Provide(
		New,
	),
)

type Params struct {
	fx.In

	Log   *logging.Logger
	Viper *viper.Viper
}

type Result struct {
	fx.Out

	Auth   Auth
	Tokens *Tokens
}

type Auth interface {
	AuthMiddleware() gin.HandlerFunc
	GetUserId(ctx *gin.Context) string
}

type jwtAuth struct {
	log    *slog.Logger
	tokens *Tokens
}

func New(p Params) (Result, error) {
	log := p.Log.GetLogger("auth")

	p.Viper.SetDefault("auth.disabled", false)
	p.Viper.SetDefault("auth.tokenValidity", 24*time.Hour)

	secret := p.Viper.GetString("auth.secret")
	tokens := NewTokens([]byte(secret), p.Viper.GetDuration("auth.tokenValidity"))

	if p.Viper.GetBool("auth.disabled") {
		log.Warn("AUTHENTICATION DISABLED via auth.disabled parameter!! Access to all APIs and data is granted without login.")
		return Result{Auth: &noAuth{}, Tokens: tokens}, nil
	}

	if secret == "" {
		return Result{}, errors.New("auth.secret is required (or set auth.disabled)")
	}

	return Result{
		Auth: &jwtAuth{
			log:    log,
			tokens: tokens,
		},
		Tokens: tokens,
	}, nil
}

func (a *jwtAuth) AuthMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			handler.RespondError(ctx, faults.Auth("missing bearer token"))
			return
		}

		claims, err := a.tokens.Verify(token)
		if err != nil {
			handler.RespondError(ctx, err)
			return
		}

		ctx.Set(userIdKey, claims.UserID)
		ctx.Next()
	}
}

func (a *jwtAuth) GetUserId(ctx *gin.Context) string {
	return ctx.GetString(userIdKey)
}
