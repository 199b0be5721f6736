package records

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/hubcheck/pkg/api"
)

// memDB is a minimal ThreadDB keeping records of one collection in memory.
type memDB struct {
	next        int
	docs        map[string]map[string]any
	deleteCalls int
	createIDs   int
}

func newMemDB() *memDB {
	return &memDB{docs: map[string]map[string]any{}, createIDs: 1}
}

func (m *memDB) NewDB(ctx context.Context, sc api.SessionContext, id api.ThreadID) error {
	return nil
}

func (m *memDB) NewCollection(ctx context.Context, sc api.SessionContext, id api.ThreadID, name string, schema []byte) error {
	return nil
}

func (m *memDB) Create(ctx context.Context, sc api.SessionContext, id api.ThreadID, collection string, records []any) ([]string, error) {
	var ids []string
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		for i := 0; i < m.createIDs; i++ {
			m.next++
			key := "id-" + strconv.Itoa(m.next)
			doc["_id"] = key
			m.docs[key] = doc
			ids = append(ids, key)
		}
	}
	return ids, nil
}

func (m *memDB) Find(ctx context.Context, sc api.SessionContext, id api.ThreadID, collection string, q api.Query) ([]api.Instance, error) {
	var out []api.Instance
	for key, doc := range m.docs {
		if doc[q.Field] == q.Value {
			body, _ := json.Marshal(doc)
			out = append(out, api.Instance{ID: key, Body: body})
		}
	}
	return out, nil
}

func (m *memDB) Delete(ctx context.Context, sc api.SessionContext, id api.ThreadID, collection string, ids []string) error {
	m.deleteCalls++
	for _, key := range ids {
		delete(m.docs, key)
	}
	return nil
}

func TestOperations_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	ops := Operations{DB: db}
	sc := api.NewSessionContext("h")
	tid := api.NewThreadID()

	id, err := ops.Create(ctx, sc, tid, AstronautCollection, NewAstronaut())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ids, err := ops.Query(ctx, sc, tid, AstronautCollection, AstronautQuery())
	require.NoError(t, err)
	assert.Contains(t, ids, id)

	require.NoError(t, ops.Delete(ctx, sc, tid, AstronautCollection, ids))

	ids, err = ops.Query(ctx, sc, tid, AstronautCollection, AstronautQuery())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestOperations_DeleteEmptyIsNoop(t *testing.T) {
	db := newMemDB()
	ops := Operations{DB: db}

	require.NoError(t, ops.Delete(context.Background(), api.NewSessionContext("h"), api.NewThreadID(), AstronautCollection, nil))
	assert.Equal(t, 0, db.deleteCalls)
}

func TestOperations_CreateRequiresExactlyOneID(t *testing.T) {
	db := newMemDB()
	db.createIDs = 2
	ops := Operations{DB: db}

	_, err := ops.Create(context.Background(), api.NewSessionContext("h"), api.NewThreadID(), AstronautCollection, NewAstronaut())
	assert.Error(t, err)
}

type failingDB struct{ memDB }

func (failingDB) Find(ctx context.Context, sc api.SessionContext, id api.ThreadID, collection string, q api.Query) ([]api.Instance, error) {
	return nil, errors.New("timeout")
}

func TestOperations_QueryWrapsErrors(t *testing.T) {
	ops := Operations{DB: &failingDB{}}
	_, err := ops.Query(context.Background(), api.NewSessionContext("h"), api.NewThreadID(), AstronautCollection, AstronautQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query Astronaut")
}

func TestAstronautSchemaIsJSON(t *testing.T) {
	var schema map[string]any
	require.NoError(t, json.Unmarshal(AstronautSchema, &schema))
	assert.Equal(t, "Astronaut", schema["title"])
}
