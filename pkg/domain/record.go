package domain

import (
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Fields holds the free-form content of a record. A nil field is stored as null.
type Fields struct {
	Name  *string `json:"u_name"`
	Age   *string `json:"u_age"`
	City  *string `json:"u_city"`
	Hobby *string `json:"u_hobby"`
}

// Record is the single persisted entity.
type Record struct {
	ID string `json:"_id"`
	Fields
}

// Equal reports whether both field sets hold the same values.
func (f Fields) Equal(other Fields) bool {
	return sameValue(f.Name, other.Name) &&
		sameValue(f.Age, other.Age) &&
		sameValue(f.City, other.City) &&
		sameValue(f.Hobby, other.Hobby)
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Text returns a pointer to s, for building Fields literals.
func Text(s string) *string {
	return &s
}

// FieldText converts a loosely typed scalar into a field value.
// Strings pass through, numbers and booleans use their textual form, nil stays nil.
func FieldText(v any) (*string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &val, nil
	case bool:
		s := strconv.FormatBool(val)
		return &s, nil
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		return &s, nil
	case float32:
		s := strconv.FormatFloat(float64(val), 'f', -1, 32)
		return &s, nil
	case int:
		s := strconv.Itoa(val)
		return &s, nil
	case int32:
		s := strconv.FormatInt(int64(val), 10)
		return &s, nil
	case int64:
		s := strconv.FormatInt(val, 10)
		return &s, nil
	case fmt.Stringer:
		s := val.String()
		return &s, nil
	default:
		return nil, fmt.Errorf("unsupported field value of type %T", v)
	}
}

// ValidRecordID reports whether id is a 24 character hex object id.
func ValidRecordID(id string) bool {
	_, ok := CanonicalRecordID(id)
	return ok
}

// CanonicalRecordID returns the lowercase hex form of a valid object id.
// Hex digits of either case decode to the same id.
func CanonicalRecordID(id string) (string, bool) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return "", false
	}
	return oid.Hex(), true
}

// NewRecordID mints an identifier in the same format the document store assigns.
func NewRecordID() string {
	return bson.NewObjectID().Hex()
}
