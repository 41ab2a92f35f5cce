package mongodb

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// IDKey is the identity key of records as clients see them.
	IDKey = "id"
	// StoreIDKey is the identity key of stored documents.
	StoreIDKey = "_id"
)

// StoreValuer is implemented by values with a dedicated stored form, such
// as enums stored by their underlying value.
type StoreValuer interface {
	StoreValue() any
}

// ToStore converts a record into a document ready to be written. The
// identity key is dropped: identifiers are assigned by the store, and
// updates must not rewrite them. StoreValuer values are replaced by their
// stored form and durations by their length in seconds, at any depth.
func ToStore(record map[string]any) bson.M {
	out := make(bson.M, len(record))
	for k, v := range record {
		if k == IDKey {
			continue
		}
		out[k] = storeValue(v)
	}
	return out
}

func storeValue(v any) any {
	switch x := v.(type) {
	case StoreValuer:
		return storeValue(x.StoreValue())
	case time.Duration:
		return x.Seconds()
	case map[string]any:
		return nestedStore(x)
	case bson.M:
		return nestedStore(x)
	case []any:
		out := make(bson.A, len(x))
		for i := range x {
			out[i] = storeValue(x[i])
		}
		return out
	case bson.A:
		out := make(bson.A, len(x))
		for i := range x {
			out[i] = storeValue(x[i])
		}
		return out
	}
	return v
}

func nestedStore(m map[string]any) bson.M {
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = storeValue(v)
	}
	return out
}

// FromStore converts a stored document into a record. _id becomes id, with
// ObjectIDs rendered as hex. Nested documents become maps, arrays become
// slices and BSON datetimes become UTC times.
func FromStore(doc bson.M) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == StoreIDKey {
			out[IDKey] = FormatID(v)
			continue
		}
		out[k] = recordValue(v)
	}
	return out
}

// FormatID renders a stored identifier as a string.
func FormatID(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func recordValue(v any) any {
	switch x := v.(type) {
	case bson.M:
		out := make(map[string]any, len(x))
		for k, v := range x {
			out[k] = recordValue(v)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = recordValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(x))
		for i := range x {
			out[i] = recordValue(x[i])
		}
		return out
	case primitive.DateTime:
		return x.Time().UTC()
	}
	return v
}

// EncodeRecord converts a typed record to its stored form. Structs are
// marshaled through their bson tags first.
func EncodeRecord(record any) (bson.M, error) {
	switch m := record.(type) {
	case map[string]any:
		return ToStore(m), nil
	case bson.M:
		return ToStore(m), nil
	}
	raw, err := bson.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	delete(m, StoreIDKey)
	return ToStore(m), nil
}

// DecodeRecord decodes a stored document into T through FromStore, so T
// reads the identifier from a field tagged `bson:"id"`.
func DecodeRecord[T any](doc bson.M) (T, error) {
	var out T
	raw, err := bson.Marshal(FromStore(doc))
	if err != nil {
		return out, fmt.Errorf("decode record: %w", err)
	}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}
