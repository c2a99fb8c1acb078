package riskstateservice

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"tradecoach/pkg/errors"
)

// FieldError reports a stored field that could not be decoded and fell back to its default
type FieldError struct {
	Key   string
	Field string
	Err   error
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return "field " + e.Key + ": " + e.Err.Error()
	}
	return "field " + e.Key + "." + e.Field + ": " + e.Err.Error()
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// isNull reports an absent JSON value: empty input or a literal null
func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// decodeNumber accepts a JSON number or a string holding one
func decodeNumber(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, nil
		}
	}

	return 0, errors.Wrapf(errors.ErrMalformedValue, "not a number: %s", truncate(raw))
}

// decodeInt accepts any number and truncates toward zero
func decodeInt(raw json.RawMessage) (int, error) {
	f, err := decodeNumber(raw)
	if err != nil {
		return 0, err
	}
	if f > math.MaxInt32 {
		return math.MaxInt32, nil
	}
	if f < math.MinInt32 {
		return math.MinInt32, nil
	}
	return int(f), nil
}

// decodeBool accepts a JSON bool or a string such as "true"
func decodeBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, nil
		}
	}

	return false, errors.Wrapf(errors.ErrMalformedValue, "not a bool: %s", truncate(raw))
}

func decodeString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", errors.Wrapf(errors.ErrMalformedValue, "not a string: %s", truncate(raw))
	}
	return s, nil
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, errors.Wrapf(errors.ErrMalformedValue, "not an object: %s", truncate(raw))
	}
	return obj, nil
}

func decodeArray(raw json.RawMessage) ([]json.RawMessage, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedValue, "not an array: %s", truncate(raw))
	}
	return arr, nil
}

func truncate(raw json.RawMessage) string {
	const limit = 64
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}

// fields collects per-field fallbacks while decoding one load
type fields struct {
	errs []FieldError
}

func (f *fields) fail(key, field string, err error) {
	f.errs = append(f.errs, FieldError{Key: key, Field: field, Err: err})
}

func (f *fields) number(key, field string, raw json.RawMessage, def float64) float64 {
	if isNull(raw) {
		return def
	}
	v, err := decodeNumber(raw)
	if err != nil {
		f.fail(key, field, err)
		return def
	}
	return v
}

// positive is number for values where zero or below is meaningless
func (f *fields) positive(key, field string, raw json.RawMessage, def float64) float64 {
	v := f.number(key, field, raw, def)
	if v <= 0 {
		f.fail(key, field, errors.Wrapf(errors.ErrMalformedValue, "must be positive: %s", truncate(raw)))
		return def
	}
	return v
}

func (f *fields) integer(key, field string, raw json.RawMessage, def int) int {
	if isNull(raw) {
		return def
	}
	v, err := decodeInt(raw)
	if err != nil {
		f.fail(key, field, err)
		return def
	}
	return v
}

func (f *fields) boolean(key, field string, raw json.RawMessage, def bool) bool {
	if isNull(raw) {
		return def
	}
	v, err := decodeBool(raw)
	if err != nil {
		f.fail(key, field, err)
		return def
	}
	return v
}

func (f *fields) object(key string, raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if isNull(raw) {
		return nil, false
	}
	obj, err := decodeObject(raw)
	if err != nil {
		f.fail(key, "", err)
		return nil, false
	}
	return obj, true
}
