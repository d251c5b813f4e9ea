package mongo

import (
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Documents written by earlier versions of the service hold whatever pandas
// produced for a CSV cell: NaN doubles for blanks, ints, strings or nulls.
// The types below decode any of those without failing the whole cursor.

// isoLayout is the naive UTC timestamp layout the service stores.
const isoLayout = "2006-01-02T15:04:05.000000"

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// text decodes any scalar into a string. Null and NaN become "".
type text string

func (s text) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(string(s))
}

func (s *text) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	v := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeString:
		*s = text(v.StringValue())
	case bson.TypeDouble:
		f := v.Double()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			*s = ""
		} else {
			*s = text(strconv.FormatFloat(f, 'f', -1, 64))
		}
	case bson.TypeInt32:
		*s = text(strconv.FormatInt(int64(v.Int32()), 10))
	case bson.TypeInt64:
		*s = text(strconv.FormatInt(v.Int64(), 10))
	case bson.TypeBoolean:
		*s = text(strconv.FormatBool(v.Boolean()))
	case bson.TypeDateTime:
		*s = text(v.Time().UTC().Format(time.RFC3339))
	default:
		*s = ""
	}
	return nil
}

// number decodes numeric or numeric-looking values. Anything else is 0.
type number float64

func (n number) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(float64(n))
}

func (n *number) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	v := bson.RawValue{Type: t, Value: data}
	var f float64
	switch t {
	case bson.TypeDouble:
		f = v.Double()
	case bson.TypeInt32:
		f = float64(v.Int32())
	case bson.TypeInt64:
		f = float64(v.Int64())
	case bson.TypeDecimal128:
		f, _ = strconv.ParseFloat(v.Decimal128().String(), 64)
	case bson.TypeString:
		f, _ = strconv.ParseFloat(strings.TrimSpace(v.StringValue()), 64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		f = 0
	}
	*n = number(f)
	return nil
}

// flag decodes booleans, 0/1 numbers and yes/no style strings.
type flag bool

func (b flag) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(bool(b))
}

func (b *flag) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	v := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeBoolean:
		*b = flag(v.Boolean())
	case bson.TypeInt32:
		*b = flag(v.Int32() != 0)
	case bson.TypeInt64:
		*b = flag(v.Int64() != 0)
	case bson.TypeDouble:
		f := v.Double()
		*b = flag(!math.IsNaN(f) && f != 0)
	case bson.TypeString:
		switch strings.ToLower(strings.TrimSpace(v.StringValue())) {
		case "true", "yes", "y", "1":
			*b = true
		default:
			*b = false
		}
	default:
		*b = false
	}
	return nil
}

// isoTime is stored as a naive UTC ISO-8601 string. It also reads BSON
// dates and zoned strings. Unparsable values decode as the zero time.
type isoTime time.Time

func (ts isoTime) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(time.Time(ts).UTC().Format(isoLayout))
}

func (ts *isoTime) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	v := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeDateTime:
		*ts = isoTime(v.Time().UTC())
	case bson.TypeString:
		*ts = isoTime(parseISO(v.StringValue()))
	default:
		*ts = isoTime(time.Time{})
	}
	return nil
}

// parseISO reads the layouts in isoLayouts. Zone-less values are UTC.
func parseISO(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
