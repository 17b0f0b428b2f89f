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

package main

import (
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"umbasa.net/nimbus/accesslog"
	"umbasa.net/nimbus/aggregation"
	"umbasa.net/nimbus/auth"
	"umbasa.net/nimbus/blob"
	"umbasa.net/nimbus/config"
	"umbasa.net/nimbus/gateway"
	"umbasa.net/nimbus/hierarchy"
	"umbasa.net/nimbus/logging"
	"umbasa.net/nimbus/messaging"
	"umbasa.net/nimbus/mongodb"
	"umbasa.net/nimbus/tracing"
	"umbasa.net/nimbus/users"
	webapifiles "umbasa.net/nimbus/webapi/files"
	webapifolders "umbasa.net/nimbus/webapi/folders"
	webapiusers "umbasa.net/nimbus/webapi/users"
)

func main() {
	fx.New(
		logging.Module,
		config.Module,
		messaging.Module,
		mongodb.Module,
		tracing.Module,
		blob.Module,
		auth.Module,
		users.Module,
		hierarchy.Module,
		aggregation.Module,
		accesslog.Module,
		webapiusers.Module,
		webapifolders.Module,
		webapifiles.Module,
		gateway.Module,
		logging.FxLogger(),
		fx.Decorate(func(viper *viper.Viper) *viper.Viper {
			viper.SetDefault("serviceName", "nimbus")
			viper.SetDefault("mongo.db", "nimbus")
			return viper
		}),
		fx.Invoke(func(writer *accesslog.AccessLogWriter, lc fx.Lifecycle) {
			lc.Append(fx.StartHook(func() error {
				return writer.Start()
			}))
			lc.Append(fx.StopHook(func() error {
				return writer.Stop()
			}))
		}),
		fx.Invoke(func(gateway.Gateway) {}),
	).Run()
}
