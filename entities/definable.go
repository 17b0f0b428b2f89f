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

package entities

import (
	"errors"
	"reflect"
)

// Definable is a field of a Prototype that distinguishes "not set" from the
// zero value. Only defined fields take part in database filters, partial
// updates and JSON bodies.
type Definable[T any] struct {
	Value   T
	Defined bool
}

type definableValue interface {
	getInternal() (any, bool)
	getType() reflect.Type
}

type definableWriter interface {
	setInternal(any, bool)
}

var _ definableValue = Definable[any]{}
var _ definableWriter = &Definable[any]{}

func (d *Definable[T]) Set(value T) {
	d.Value = value
	d.Defined = true
}

func (d *Definable[T]) Unset() {
	var zero T
	d.Value = zero
	d.Defined = false
}

func (d *Definable[T]) Get() T {
	return d.Value
}

func (d *Definable[T]) IsDefined() bool {
	return d.Defined
}

func (d Definable[T]) getInternal() (any, bool) {
	return d.Value, d.Defined
}

func (d Definable[T]) getType() reflect.Type {
	var t [0]T
	return reflect.TypeOf(t).Elem()
}

func (d *Definable[T]) setInternal(v any, defined bool) {
	if converted, ok := v.(T); ok {
		d.Value = converted
	} else {
		val := reflect.ValueOf(v)
		typ := d.getType()
		if !val.IsValid() {
			var zero T
			d.Value = zero
		} else if val.CanConvert(typ) {
			d.Value = val.Convert(typ).Interface().(T)
		} else {
			panic(errors.New("unable to convert " + val.Type().String() + " to " + typ.String()))
		}
	}
	d.Defined = defined
}
