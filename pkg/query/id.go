package query

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDKind is the representation of a schema's record identifiers.
type IDKind string

const (
	// IDObjectID identifiers are 24 character hex MongoDB ObjectIDs.
	IDObjectID IDKind = "objectid"
	// IDString identifiers are opaque non-empty strings.
	IDString IDKind = "string"
	// IDUUID identifiers are RFC 4122 UUIDs stored in canonical string form.
	IDUUID IDKind = "uuid"
)

// ParseIDKind reads an IDKind from its name.
func ParseIDKind(s string) (IDKind, error) {
	switch k := IDKind(strings.ToLower(strings.TrimSpace(s))); k {
	case IDObjectID, IDString, IDUUID:
		return k, nil
	case "":
		return IDObjectID, nil
	}
	return "", fmt.Errorf("unknown id kind %q", s)
}

// Canonical validates id and returns its canonical string form.
func (k IDKind) Canonical(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("identifier is empty")
	}
	switch k {
	case IDObjectID, "":
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return "", fmt.Errorf("%q is not a valid ObjectId", id)
		}
		return oid.Hex(), nil
	case IDUUID:
		u, err := uuid.Parse(id)
		if err != nil {
			return "", fmt.Errorf("%q is not a valid UUID", id)
		}
		return u.String(), nil
	case IDString:
		return id, nil
	}
	return "", fmt.Errorf("unknown id kind %q", string(k))
}

// StoreValue converts a canonical identifier to the value stored in _id.
func (k IDKind) StoreValue(id string) (any, error) {
	if k == IDObjectID || k == "" {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("%q is not a valid ObjectId", id)
		}
		return oid, nil
	}
	return k.Canonical(id)
}

// FormatStored renders a stored _id value as the identifier string clients see.
func (k IDKind) FormatStored(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case uuid.UUID:
		return id.String()
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
