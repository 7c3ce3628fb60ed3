package backend

import (
	"errors"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/utils"
)

var errMissingPayload = errors.New("payload missing")

// records parses the payload of a resource as a JSON array.
func records(payloads map[string][]byte, resource string) ([]gjson.Result, error) {
	payload, ok := payloads[resource]
	if !ok {
		return nil, &DecodeError{Resource: resource, Err: errMissingPayload}
	}
	items, err := utils.GjsonParseArray(payload)
	if err != nil {
		return nil, &DecodeError{Resource: resource, Err: err}
	}
	return items, nil
}

// ordinalStatus maps a numeric status, or a string holding one, through the
// status table. Anything else is unknown.
func ordinalStatus(v gjson.Result) model.EventStatus {
	switch v.Type {
	case gjson.Number:
		if v.Num != float64(int64(v.Num)) {
			return model.EventStatusUnknown
		}
		return model.StatusFromOrdinal(v.Int())
	case gjson.String:
		code, err := strconv.ParseInt(v.Str, 10, 64)
		if err != nil {
			return model.EventStatusUnknown
		}
		return model.StatusFromOrdinal(code)
	}
	return model.EventStatusUnknown
}

func unixTime(v gjson.Result) *time.Time {
	if v.Type != gjson.Number || v.Int() <= 0 {
		return nil
	}
	t := time.Unix(v.Int(), 0).UTC()
	return &t
}

func rfc3339Time(v gjson.Result) *time.Time {
	if v.Type != gjson.String {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.Str)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
