package hub

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/petrijr/hubcheck/pkg/api"
)

// threadOwner authenticates sc for thread id and checks the thread scope.
func (h *Hub) threadOwner(ctx context.Context, sc api.SessionContext, id api.ThreadID) (string, error) {
	if sc.Thread != "" && sc.Thread != id {
		return "", fmt.Errorf("%w: context %s, requested %s", api.ErrThreadScope, sc.Thread, id)
	}
	return h.owner(ctx, sc)
}

// ownThread checks that id exists and belongs to owner.
func (h *Hub) ownThread(ctx context.Context, owner string, id api.ThreadID) error {
	var got string
	err := h.db.QueryRowContext(ctx, `SELECT owner FROM threads WHERE id = ?`, id.String()).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: thread %s", api.ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	if got != owner {
		return fmt.Errorf("%w: thread %s belongs to another identity", api.ErrUnauthorized, id)
	}
	return nil
}

func (h *Hub) NewDB(ctx context.Context, sc api.SessionContext, id api.ThreadID) error {
	owner, err := h.threadOwner(ctx, sc, id)
	if err != nil {
		return err
	}
	if _, err := api.ParseThreadID(id.String()); err != nil {
		return err
	}
	err = h.ownThread(ctx, owner, id)
	switch {
	case err == nil:
		return fmt.Errorf("%w: thread %s", api.ErrAlreadyExists, id)
	case !errors.Is(err, api.ErrNotFound):
		return err
	}
	_, err = h.db.ExecContext(ctx, `INSERT INTO threads (id, owner) VALUES (?, ?)`, id.String(), owner)
	return err
}

func (h *Hub) NewCollection(ctx context.Context, sc api.SessionContext, id api.ThreadID, name string, schema []byte) error {
	owner, err := h.threadOwner(ctx, sc, id)
	if err != nil {
		return err
	}
	if err := h.ownThread(ctx, owner, id); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty collection name", api.ErrInvalidRecord)
	}
	if _, err := compileSchema(collectionURL(id, name), schema); err != nil {
		return fmt.Errorf("%w: collection %s schema: %v", api.ErrInvalidRecord, name, err)
	}

	res, err := h.db.ExecContext(ctx,
		`INSERT INTO collections (thread_id, name, schema) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
		id.String(), name, string(schema),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: collection %s", api.ErrAlreadyExists, name)
	}
	return nil
}

func (h *Hub) Create(ctx context.Context, sc api.SessionContext, id api.ThreadID, collection string, records []any) ([]string, error) {
	schema, err := h.collection(ctx, sc, id, collection)
	if err != nil {
		return nil, err
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]string, 0, len(records))
	for _, r := range records {
		doc, err := toDocument(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", api.ErrInvalidRecord, err)
		}
		if s, _ := doc["_id"].(string); s == "" {
			doc["_id"] = uuid.NewString()
		}
		body, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		if err := validate(schema, body); err != nil {
			return nil, fmt.Errorf("%w: %v", api.ErrInvalidRecord, err)
		}
		recID := doc["_id"].(string)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO instances (thread_id, collection, id, body) VALUES (?, ?, ?, ?)`,
			id.String(), collection, recID, string(body),
		)
		if err != nil {
			return nil, err
		}
		ids = append(ids, recID)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (h *Hub) Find(ctx context.Context, sc api.SessionContext, id api.ThreadID, collection string, q api.Query) ([]api.Instance, error) {
	if _, err := h.collection(ctx, sc, id, collection); err != nil {
		return nil, err
	}
	want, err := json.Marshal(q.Value)
	if err != nil {
		return nil, fmt.Errorf("encode query value: %w", err)
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT id, body FROM instances WHERE thread_id = ? AND collection = ? ORDER BY id`,
		id.String(), collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.Instance
	for rows.Next() {
		var recID, body string
		if err := rows.Scan(&recID, &body); err != nil {
			return nil, err
		}
		var doc map[string]json.RawMessage
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, err
		}
		if field, ok := doc[q.Field]; ok && jsonEqual(field, want) {
			out = append(out, api.Instance{ID: recID, Body: json.RawMessage(body)})
		}
	}
	return out, rows.Err()
}

func (h *Hub) Delete(ctx context.Context, sc api.SessionContext, id api.ThreadID, collection string, ids []string) error {
	if _, err := h.collection(ctx, sc, id, collection); err != nil {
		return err
	}
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, recID := range ids {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM instances WHERE thread_id = ? AND collection = ? AND id = ?`,
			id.String(), collection, recID,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// collection authorizes sc and returns the compiled schema of collection.
func (h *Hub) collection(ctx context.Context, sc api.SessionContext, id api.ThreadID, name string) (*jsonschema.Schema, error) {
	owner, err := h.threadOwner(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	if err := h.ownThread(ctx, owner, id); err != nil {
		return nil, err
	}

	url := collectionURL(id, name)
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.schemas[url]; ok {
		return s, nil
	}

	var raw string
	err = h.db.QueryRowContext(ctx,
		`SELECT schema FROM collections WHERE thread_id = ? AND name = ?`, id.String(), name,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: collection %s", api.ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	s, err := compileSchema(url, []byte(raw))
	if err != nil {
		return nil, err
	}
	h.schemas[url] = s
	return s, nil
}

func collectionURL(id api.ThreadID, name string) string {
	return "hub://threads/" + id.String() + "/collections/" + name + ".json"
}

func compileSchema(url string, schema []byte) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

func validate(s *jsonschema.Schema, body []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return err
	}
	return s.Validate(inst)
}

func toDocument(r any) (map[string]any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("record is not an object: %v", err)
	}
	return doc, nil
}

// jsonEqual compares two JSON values after normalizing formatting.
func jsonEqual(a, b []byte) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	na, _ := json.Marshal(va)
	nb, _ := json.Marshal(vb)
	return bytes.Equal(na, nb)
}
