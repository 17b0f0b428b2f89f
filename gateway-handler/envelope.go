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
	"net/http"

	"github.com/gin-gonic/gin"
	"umbasa.net/nimbus/faults"
)

// Envelope is the uniform response body returned by all API handlers.
type Envelope struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func Respond(ctx *gin.Context, code int, message string, data any) {
	ctx.JSON(code, Envelope{
		Code:    code,
		Status:  http.StatusText(code),
		Message: message,
		Data:    data,
	})
}

// RespondError maps the error taxonomy to HTTP status codes.
// A ConflictError carries the already existing record in the data field.
func RespondError(ctx *gin.Context, err error) {
	code := http.StatusInternalServerError
	var data any

	switch {
	case faults.IsValidation(err):
		code = http.StatusBadRequest
	case faults.IsAuth(err):
		code = http.StatusUnauthorized
	case faults.IsNotFound(err):
		code = http.StatusNotFound
	case faults.IsConflict(err):
		code = http.StatusConflict
		if conflict, ok := faults.AsConflict(err); ok {
			data = conflict.Existing
		}
	}

	ctx.AbortWithStatusJSON(code, Envelope{
		Code:    code,
		Status:  http.StatusText(code),
		Message: err.Error(),
		Data:    data,
		Error:   err.Error(),
	})
}
