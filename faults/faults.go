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

// Package faults defines the error taxonomy shared by all Nimbus providers.
// The web layer maps each kind to an HTTP status; providers never touch
// HTTP status codes themselves.
package faults

import "errors"

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string {
	return e.Msg
}

// ConflictError signals a duplicate on upload or copy. Existing carries the
// record that caused the conflict so the caller can return it to the client.
type ConflictError struct {
	Msg      string
	Existing any
}

func (e *ConflictError) Error() string {
	return e.Msg
}

type StorageError struct {
	Msg   string
	Cause error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string {
	return e.Msg
}

func Validation(msg string) error {
	return &ValidationError{Msg: msg}
}

func NotFound(msg string) error {
	return &NotFoundError{Msg: msg}
}

func Conflict(msg string, existing any) error {
	return &ConflictError{Msg: msg, Existing: existing}
}

func Storage(msg string, cause error) error {
	return &StorageError{Msg: msg, Cause: cause}
}

func Auth(msg string) error {
	return &AuthError{Msg: msg}
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsStorage(err error) bool {
	var e *StorageError
	return errors.As(err, &e)
}

func IsAuth(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

// AsConflict returns the ConflictError when err is one, for access to the
// existing record.
func AsConflict(err error) (*ConflictError, bool) {
	var e *ConflictError
	ok := errors.As(err, &e)
	return e, ok
}
