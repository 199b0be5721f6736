package api

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ThreadID identifies a per-user thread database.
type ThreadID string

// NewThreadID returns a fresh random thread id.
func NewThreadID() ThreadID {
	return ThreadID(uuid.NewString())
}

// ParseThreadID validates the string form of a thread id.
func ParseThreadID(s string) (ThreadID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid thread id %q: %w", s, err)
	}
	return ThreadID(u.String()), nil
}

func (id ThreadID) String() string {
	return string(id)
}

// Query is an equality filter on a single field.
type Query struct {
	Field string
	Value any
}

// Criterion is the first half of a query built with Where.
type Criterion struct {
	field string
}

// Where starts a query on field:
//
//	q := api.Where("firstName").Eq("Buzz")
func Where(field string) Criterion {
	return Criterion{field: field}
}

// Eq completes the query with an equality test.
func (c Criterion) Eq(v any) Query {
	return Query{Field: c.field, Value: v}
}

// Instance is a record returned by ThreadDB.Find.
type Instance struct {
	ID   string
	Body json.RawMessage
}

// Decode unmarshals the record body into v.
func (i Instance) Decode(v any) error {
	return json.Unmarshal(i.Body, v)
}
