package entities

import (
	"errors"
	"reflect"

	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
)

// PrototypeEncoder writes a prototype struct as a BSON document containing
// only the defined fields. Undefined Definables are always omitted.
type PrototypeEncoder struct{}

func (e *PrototypeEncoder) EncodeValue(ctx bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	typ := val.Type()
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
		val = val.Elem()
	}

	docWriter, err := vw.WriteDocument()
	if err != nil {
		return err
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() || field.Anonymous {
			continue
		}

		fieldValue := val.Field(i)
		if safeIsNil(fieldValue) {
			continue
		}

		if def, ok := fieldValue.Interface().(definableValue); ok {
			inner, defined := def.getInternal()
			if !defined {
				continue
			}
			fieldValue = reflect.ValueOf(inner)
		}

		valWriter, err := docWriter.WriteDocumentElement(bsonFieldName(field))
		if err != nil {
			return err
		}
		enc, err := ctx.LookupEncoder(fieldValue.Type())
		if err != nil {
			return err
		}
		if err := enc.EncodeValue(ctx, valWriter, fieldValue); err != nil {
			return err
		}
	}

	return docWriter.WriteDocumentEnd()
}

// DefinableEncoder unwraps a Definable and encodes its value directly.
type DefinableEncoder struct{}

func (e *DefinableEncoder) EncodeValue(ctx bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	def, ok := val.Interface().(definableValue)
	if !ok {
		return errors.New("value is not Definable")
	}
	inner, _ := def.getInternal()

	enc, err := ctx.LookupEncoder(reflect.TypeOf(inner))
	if err != nil {
		return err
	}
	return enc.EncodeValue(ctx, vw, reflect.ValueOf(inner))
}

// RegisterEncoders registers the prototype codecs on a bson registry. The
// mongodb package installs them on every client it creates.
func RegisterEncoders(r *bsoncodec.Registry) {
	var d definableValue
	r.RegisterInterfaceEncoder(reflect.TypeOf(&d).Elem(), &DefinableEncoder{})

	var p Prototype
	r.RegisterInterfaceEncoder(reflect.TypeOf(&p).Elem(), &PrototypeEncoder{})
}
