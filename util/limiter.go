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

package util

import (
	"context"
	"sync"
)

// Limiter bounds the number of concurrent operations.
//
// [Limiter.Begin] blocks while the limit is reached and returns false when
// the context is cancelled before a slot becomes free. Every successful
// Begin must be paired with a call to [Limiter.End].
//
// [Limiter.Join] blocks until all admitted operations have ended. Begin
// must not be called concurrently with Join.
type Limiter interface {
	Begin(context.Context) bool
	End()
	Join()
}

type limiter struct {
	slots   chan struct{}
	running sync.WaitGroup
}

func NewLimiter(limit int) Limiter {
	return &limiter{
		slots: make(chan struct{}, limit),
	}
}

func (l *limiter) Begin(ctx context.Context) bool {
	select {
	case l.slots <- struct{}{}:
		l.running.Add(1)
		return true
	case <-ctx.Done():
		return false
	}
}

func (l *limiter) End() {
	<-l.slots
	l.running.Done()
}

func (l *limiter) Join() {
	l.running.Wait()
}
