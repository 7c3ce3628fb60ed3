package utils

import (
	"errors"

	"github.com/tidwall/gjson"
)

var (
	ErrGjsonNotFound  = errors.New("specified path does not exist")
	ErrGjsonWrongType = errors.New("wrong type")
)

// GjsonParseArray validates json and returns its elements, failing unless it is an array.
func GjsonParseArray(json []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(json) {
		return nil, ErrGjsonWrongType
	}
	result := gjson.ParseBytes(json)
	if !result.IsArray() {
		return nil, ErrGjsonWrongType
	}
	return result.Array(), nil
}

// GjsonString reads a string field, failing when it is missing or not a string.
func GjsonString(r gjson.Result, path string) (string, error) {
	v := r.Get(path)
	if !v.Exists() {
		return "", ErrGjsonNotFound
	}
	if v.Type != gjson.String {
		return "", ErrGjsonWrongType
	}
	return v.String(), nil
}
