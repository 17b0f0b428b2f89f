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

package gateway

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Cyprinus12138/otelgin"
	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
	"github.com/spf13/viper"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"
	"go.uber.org/fx"
	"umbasa.net/nimbus/auth"
	handler "umbasa.net/nimbus/gateway-handler"
	"umbasa.net/nimbus/logging"
)

var Module = fx.Module("gateway",
	fx.Provide(
		New,
	),
)

type Params struct {
	fx.In

	Log      *logging.Logger
	Viper    *viper.Viper
	Auth     auth.Auth
	Handlers []handler.GatewayHandler `group:"gatewayhandlers"`
	Lc       fx.Lifecycle
}

type Result struct {
	fx.Out

	Gateway Gateway
}

type Gateway interface {
	Start(handlers []handler.GatewayHandler)
	Stop()
}

type gateway struct {
	log    *slog.Logger
	viper  *viper.Viper
	auth   auth.Auth
	server *http.Server
}

func New(p Params) Result {
	p.Viper.SetDefault("gateway.address", ":8080")

	gateway := &gateway{
		log:   p.Log.GetLogger("gateway"),
		viper: p.Viper,
		auth:  p.Auth,
	}

	p.Lc.Append(fx.StartHook(func() {
		gateway.Start(p.Handlers)
	}))
	p.Lc.Append(fx.StopHook(gateway.Stop))

	return Result{Gateway: gateway}
}

func (g *gateway) Start(handlers []handler.GatewayHandler) {
	engine := gin.New()
	engine.Use(sloggin.New(g.log))
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("nimbus"))

	apiGroup := engine.Group("/api", cachecontrol.New(cachecontrol.NoCachePreset), g.auth.AuthMiddleware())

	// uploaded blobs are served directly when the local dir store is active
	if g.viper.GetString("blob.store") == "dir" {
		engine.Static("/files", g.viper.GetString("blob.dir.path"))
	}

	for _, handler := range handlers {
		handler.Setup(engine, apiGroup)
	}

	address := g.viper.GetString("gateway.address")
	g.server = &http.Server{
		Addr:    address,
		Handler: engine.Handler(),
	}

	go g.server.ListenAndServe()

	g.log.Info("HTTP Server listening on " + address)
}

func (g *gateway) Stop() {
	if g.server == nil {
		return
	}
	g.server.Shutdown(context.Background())
	g.server = nil
	g.log.Info("HTTP Server closed")
}
