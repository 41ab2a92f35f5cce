package query

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Position is where the previous page of a cursor paginated query ended.
type Position struct {
	// ID is the canonical identifier of the last record.
	ID string
	// Sorted is set when the query orders by a field. Value then holds the
	// last record's value of that field, nil when the record had none.
	Sorted bool
	Value  any
}

// After returns the position the page starts after, if an offset was given.
func (q *Query) After() (Position, bool) {
	if q.after == nil {
		return Position{}, false
	}
	return *q.after, true
}

// NextOffset returns the offset of the page that follows the record with
// identifier id and sort value value. Unsorted queries page by identifier
// alone, so the offset is id itself; sorted ones get an opaque token that
// also carries the sort field, direction and value.
func (q *Query) NextOffset(id string, value any) (string, error) {
	if q.sort == nil {
		return id, nil
	}
	v, err := cursorValue(value)
	if err != nil {
		return "", fmt.Errorf("sort field %q: %w", q.sort.Field, err)
	}
	raw, err := bson.Marshal(cursorToken{
		Field:     q.sort.Field,
		Direction: int32(q.sort.Direction),
		Value:     v,
		ID:        id,
	})
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

type cursorToken struct {
	Field     string `bson:"f"`
	Direction int32  `bson:"d"`
	Value     any    `bson:"v"`
	ID        string `bson:"id"`
}

// cursorValue keeps the scalar types MongoDB orders within one bracket.
// Anything else could not be compared against safely on the next page.
func cursorValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, int32, int64, float64, primitive.Decimal128, primitive.DateTime:
		return x, nil
	case int:
		return int64(x), nil
	case time.Time:
		return primitive.NewDateTimeFromTime(x), nil
	}
	return nil, fmt.Errorf("%T values cannot be used as a cursor", v)
}

var errForeignCursor = errors.New("offset was not issued for this sort")

// decodeCursor reads an offset produced by NextOffset for srt.
func decodeCursor(kind IDKind, srt Sort, offset string) (Position, error) {
	data, err := base64.RawURLEncoding.DecodeString(offset)
	if err != nil {
		return Position{}, errors.New("offset is not a valid cursor")
	}
	if err := bson.Raw(data).Validate(); err != nil {
		return Position{}, errors.New("offset is not a valid cursor")
	}
	var tok struct {
		Field     string        `bson:"f"`
		Direction int32         `bson:"d"`
		Value     bson.RawValue `bson:"v"`
		ID        string        `bson:"id"`
	}
	if err := bson.Unmarshal(data, &tok); err != nil {
		return Position{}, errors.New("offset is not a valid cursor")
	}
	if tok.Field != srt.Field || Direction(tok.Direction) != srt.Direction {
		return Position{}, errForeignCursor
	}
	id, err := kind.Canonical(tok.ID)
	if err != nil {
		return Position{}, err
	}
	value, err := rawCursorValue(tok.Value)
	if err != nil {
		return Position{}, err
	}
	return Position{ID: id, Sorted: true, Value: value}, nil
}

func rawCursorValue(rv bson.RawValue) (any, error) {
	switch rv.Type {
	case bsontype.Null, bsontype.Type(0):
		return nil, nil
	case bsontype.String:
		return rv.StringValue(), nil
	case bsontype.Int32:
		return rv.Int32(), nil
	case bsontype.Int64:
		return rv.Int64(), nil
	case bsontype.Double:
		return rv.Double(), nil
	case bsontype.Decimal128:
		return rv.Decimal128(), nil
	case bsontype.DateTime:
		return primitive.DateTime(rv.DateTime()), nil
	}
	return nil, fmt.Errorf("cursor holds an unsupported %s value", rv.Type)
}
