package entities

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/iancoleman/strcase"
	"go.mongodb.org/mongo-driver/bson"
)

// Prototype marks a partial document: a struct whose fields are Definable
// values. Embed it in an entity prototype struct and initialize it with
// MakePrototype. A prototype marshals to JSON and BSON with only its
// defined fields present, which makes it usable both as a PATCH body and
// as a database filter or update document. Fields tagged `json:"-"`
// are invisible to the JSON side and can only be defined from code.
type Prototype interface {
	json.Marshaler
	json.Unmarshaler
	isPrototype()
}

type prototypeImpl struct {
	target reflect.Value
}

func (p *prototypeImpl) isPrototype() {}

// MakePrototype initializes the embedded Prototype of proto. It must be
// called with a pointer value.
func MakePrototype[T Prototype](proto T) T {
	v := reflect.ValueOf(proto)
	if v.Kind() != reflect.Pointer {
		panic(errors.New("MakePrototype must be called with pointer value"))
	}
	elem := v.Elem()
	elem.FieldByName("Prototype").Set(reflect.ValueOf(&prototypeImpl{target: elem}))
	return proto
}

func (p *prototypeImpl) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)

	t := p.target.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Anonymous {
			continue
		}

		name := jsonFieldName(field)
		if name == "" {
			continue
		}

		value := p.target.Field(i).Interface()
		if def, ok := value.(definableValue); ok {
			if v, defined := def.getInternal(); defined {
				m[name] = v
			}
		} else {
			m[name] = value
		}
	}

	return json.Marshal(m)
}

func (p *prototypeImpl) UnmarshalJSON(data []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t := p.target.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Anonymous {
			continue
		}

		name := jsonFieldName(field)
		if name == "" {
			continue
		}
		msg, ok := raw[name]
		if !ok {
			continue
		}

		fieldValue := p.target.Field(i)
		if def, ok := fieldValue.Interface().(definableValue); ok {
			decoded := reflect.New(def.getType())
			if err := json.Unmarshal(msg, decoded.Interface()); err != nil {
				return err
			}
			fieldValue.Addr().Interface().(definableWriter).setInternal(decoded.Elem().Interface(), true)
		} else {
			if err := json.Unmarshal(msg, fieldValue.Addr().Interface()); err != nil {
				return err
			}
		}
	}

	return nil
}

// ToBson converts a prototype to a bson document containing only the
// defined fields. Useful where a filter document is built up dynamically.
func ToBson(p Prototype) bson.M {
	t := reflect.TypeOf(p)
	v := reflect.ValueOf(p)

	if t.Kind() == reflect.Pointer {
		t = t.Elem()
		v = v.Elem()
	}

	ret := bson.M{}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Anonymous {
			continue
		}

		fieldValue := v.Field(i)
		if safeIsNil(fieldValue) {
			continue
		}

		if def, ok := fieldValue.Interface().(definableValue); ok {
			if val, defined := def.getInternal(); defined {
				ret[bsonFieldName(field)] = val
			}
		} else {
			ret[bsonFieldName(field)] = fieldValue.Interface()
		}
	}

	return ret
}

// jsonFieldName returns the JSON key for a prototype field, or "" when
// the field is tagged `json:"-"` and must not take part in JSON at all.
// Fields excluded this way can only be defined from code, which keeps
// record-keeping fields like owner or id out of reach of PATCH bodies.
func jsonFieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	if tag != "" {
		return tag
	}
	return strcase.ToLowerCamel(field.Name)
}

func bsonFieldName(field reflect.StructField) string {
	if tag := field.Tag.Get("bson"); tag != "" {
		return tag
	}
	return strcase.ToLowerCamel(field.Name)
}

func safeIsNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Map, reflect.Pointer, reflect.UnsafePointer, reflect.Interface, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
