package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dvloznov/budget-tracker/internal/importer"
)

// Fields is a loosely typed request body, decoded from JSON.
type Fields map[string]interface{}

// DecodeFields reads a JSON object, keeping numbers as json.Number.
func DecodeFields(data []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var f Fields
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("DecodeFields: %w", err)
	}
	if f == nil {
		f = Fields{}
	}
	return f, nil
}

// Has reports whether key is present with a non-null value.
func (f Fields) Has(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

// String returns the value of key as text. Numbers and bools are formatted.
func (f Fields) String(key string) (string, bool) {
	v, ok := f[key]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return fmt.Sprint(val), true
	}
}

// Number returns the value of key as a float64. Numeric strings are accepted,
// including ones with currency symbols or thousands separators. ok is false
// when the key is absent or the value is not numeric.
func (f Fields) Number(key string) (float64, bool) {
	v, ok := f[key]
	if !ok || v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case json.Number:
		n, err := val.Float64()
		return n, err == nil
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		return importer.ParseAmount(val)
	default:
		return 0, false
	}
}

// Bool returns the value of key as a bool. Strings go through the CSV bool
// rules and numbers are true when non-zero.
func (f Fields) Bool(key string) bool {
	v, ok := f[key]
	if !ok || v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return importer.ParseBool(val)
	case json.Number:
		n, err := val.Float64()
		return err == nil && n != 0
	case float64:
		return val != 0
	default:
		return false
	}
}

// OptionalString returns nil when key is absent, null or blank.
func (f Fields) OptionalString(key string) *string {
	s, ok := f.String(key)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	s = strings.TrimSpace(s)
	return &s
}
