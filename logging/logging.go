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

package logging

import (
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

var Module = fx.Module("logging",
	fx.Provide(
		New,
	),
)

// Logger is a factory for per-component slog loggers. All loggers share a
// single level var, so the level can be changed at runtime for the whole
// process.
type Logger struct {
	nc       *nats.Conn
	levelVar *slog.LevelVar
}

type Params struct {
	fx.In

	Nc *nats.Conn `optional:"true"`
}

func New(p Params) *Logger {
	levelVar := &slog.LevelVar{}
	levelVar.Set(slog.LevelInfo)
	return &Logger{nc: p.Nc, levelVar: levelVar}
}

func (l *Logger) SetLevel(level slog.Level) {
	l.levelVar.Set(level)
}

func (l *Logger) GetLogger(name string) *slog.Logger {
	handlers := []slog.Handler{
		NewConsoleHandler(l.levelVar),
	}
	if l.nc != nil {
		handlers = append(handlers, NewNatsHandler(l.nc))
	}
	return slog.New(NewHandlerMux(handlers...)).With("component", name)
}

// FxLogger routes the fx framework's own events through the Logger.
func FxLogger() fx.Option {
	return fx.WithLogger(func(logger *Logger) fxevent.Logger {
		return &fxevent.SlogLogger{Logger: logger.GetLogger("fx")}
	})
}
