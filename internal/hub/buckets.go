package hub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/petrijr/hubcheck/pkg/api"
)

func (h *Hub) List(ctx context.Context, sc api.SessionContext) ([]api.Root, error) {
	owner, err := h.owner(ctx, sc)
	if err != nil {
		return nil, err
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT key, name, created_at FROM buckets WHERE owner = ? ORDER BY created_at, key`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roots []api.Root
	for rows.Next() {
		var r api.Root
		var created int64
		if err := rows.Scan(&r.Key, &r.Name, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(created, 0).UTC()
		roots = append(roots, r)
	}
	return roots, rows.Err()
}

func (h *Hub) Init(ctx context.Context, sc api.SessionContext, name string) (api.Root, error) {
	owner, err := h.owner(ctx, sc)
	if err != nil {
		return api.Root{}, err
	}
	if strings.TrimSpace(name) == "" {
		return api.Root{}, fmt.Errorf("%w: empty bucket name", api.ErrInvalidRecord)
	}
	key, err := h.randomKey(20)
	if err != nil {
		return api.Root{}, fmt.Errorf("bucket key: %w", err)
	}
	now := h.now().UTC().Truncate(time.Second)
	_, err = h.db.ExecContext(ctx,
		`INSERT INTO buckets (key, owner, name, created_at) VALUES (?, ?, ?, ?)`,
		key, owner, name, now.Unix(),
	)
	if err != nil {
		return api.Root{}, err
	}
	return api.Root{Key: key, Name: name, CreatedAt: now}, nil
}

func (h *Hub) PushPath(ctx context.Context, sc api.SessionContext, key, path string, content io.Reader) (api.PushResult, error) {
	owner, err := h.owner(ctx, sc)
	if err != nil {
		return api.PushResult{}, err
	}
	if err := h.ownBucket(ctx, owner, key); err != nil {
		return api.PushResult{}, err
	}
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return api.PushResult{}, fmt.Errorf("%w: empty path", api.ErrInvalidRecord)
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return api.PushResult{}, fmt.Errorf("read content: %w", err)
	}
	_, err = h.db.ExecContext(ctx, `
		INSERT INTO bucket_files (bucket_key, path, content) VALUES (?, ?, ?)
		ON CONFLICT(bucket_key, path) DO UPDATE SET content = excluded.content`,
		key, path, data,
	)
	if err != nil {
		return api.PushResult{}, err
	}
	return api.PushResult{Path: path, Size: int64(len(data))}, nil
}

// Cat returns the content stored at path in bucket key. It is not part of
// the bucket capability and does not authenticate.
func (h *Hub) Cat(ctx context.Context, key, path string) ([]byte, error) {
	var data []byte
	err := h.db.QueryRowContext(ctx,
		`SELECT content FROM bucket_files WHERE bucket_key = ? AND path = ?`,
		key, strings.TrimPrefix(path, "/"),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", api.ErrNotFound, key, path)
	}
	return data, err
}

func (h *Hub) ownBucket(ctx context.Context, owner, key string) error {
	var got string
	err := h.db.QueryRowContext(ctx, `SELECT owner FROM buckets WHERE key = ?`, key).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: bucket %s", api.ErrNotFound, key)
	}
	if err != nil {
		return err
	}
	if got != owner {
		return fmt.Errorf("%w: bucket %s belongs to another identity", api.ErrUnauthorized, key)
	}
	return nil
}
