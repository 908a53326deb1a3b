package handlers

import (
	"encoding/json"
	"net/http"
	"reflect"
	"time"
)

// JSONResponse sends a JSON response and ensures slices are never null.
// Nil slices encode as "null", which breaks frontends expecting arrays,
// so they are normalized to empty slices first.
func JSONResponse(w http.ResponseWriter, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(normalizeSlices(data))
}

// normalizeSlices recursively ensures all nil slices become empty slices
func normalizeSlices(data interface{}) interface{} {
	if data == nil {
		return data
	}

	v := reflect.ValueOf(data)

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() || v.Elem().Type() == reflect.TypeOf(time.Time{}) {
			return data
		}
		result := reflect.New(v.Elem().Type())
		result.Elem().Set(reflect.ValueOf(normalizeSlices(v.Elem().Interface())))
		return result.Interface()

	case reflect.Slice:
		if v.IsNil() {
			return reflect.MakeSlice(v.Type(), 0, 0).Interface()
		}
		result := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		for i := 0; i < v.Len(); i++ {
			result.Index(i).Set(reflect.ValueOf(normalizeSlices(v.Index(i).Interface())))
		}
		return result.Interface()

	case reflect.Struct:
		if v.Type() == reflect.TypeOf(time.Time{}) {
			return data
		}
		result := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			field := v.Field(i)
			if !field.CanInterface() || !result.Field(i).CanSet() {
				continue
			}
			switch field.Kind() {
			case reflect.Slice, reflect.Ptr, reflect.Struct:
				result.Field(i).Set(reflect.ValueOf(normalizeSlices(field.Interface())))
			default:
				result.Field(i).Set(field)
			}
		}
		return result.Interface()
	}

	return data
}
