package records

import (
	"context"
	"fmt"

	"github.com/petrijr/hubcheck/pkg/api"
)

// Operations performs record round trips against a collection.
type Operations struct {
	DB api.ThreadDB
}

// Create inserts record and returns the id the database assigned to it.
func (o Operations) Create(ctx context.Context, sc api.SessionContext, tid api.ThreadID, collection string, record any) (string, error) {
	ids, err := o.DB.Create(ctx, sc, tid, collection, []any{record})
	if err != nil {
		return "", fmt.Errorf("create in %s: %w", collection, err)
	}
	if len(ids) != 1 {
		return "", fmt.Errorf("create in %s: expected 1 id, got %d", collection, len(ids))
	}
	return ids[0], nil
}

// Query returns the ids of all records matching q.
func (o Operations) Query(ctx context.Context, sc api.SessionContext, tid api.ThreadID, collection string, q api.Query) ([]string, error) {
	found, err := o.DB.Find(ctx, sc, tid, collection, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	ids := make([]string, 0, len(found))
	for _, inst := range found {
		ids = append(ids, inst.ID)
	}
	return ids, nil
}

// Delete removes ids from the collection. An empty list makes no remote
// call.
func (o Operations) Delete(ctx context.Context, sc api.SessionContext, tid api.ThreadID, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := o.DB.Delete(ctx, sc, tid, collection, ids); err != nil {
		return fmt.Errorf("delete from %s: %w", collection, err)
	}
	return nil
}
