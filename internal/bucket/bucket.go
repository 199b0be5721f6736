package bucket

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/petrijr/hubcheck/pkg/api"
)

// DefaultGatewaySuffix is the IPNS gateway host under which bucket keys are
// published.
const DefaultGatewaySuffix = "ipns.hub.staging.textile.io"

// Provisioner finds or creates a named bucket and publishes files to it.
type Provisioner struct {
	Buckets api.Buckets
	// GatewaySuffix defaults to DefaultGatewaySuffix.
	GatewaySuffix string
	Logger        *slog.Logger
}

// ObtainBucket returns the key of the bucket called name, creating it when
// no bucket of that name is visible to sc.
func (p *Provisioner) ObtainBucket(ctx context.Context, sc api.SessionContext, name string) (key string, created bool, err error) {
	roots, err := p.Buckets.List(ctx, sc)
	if err != nil {
		return "", false, fmt.Errorf("list buckets: %w", err)
	}
	for _, r := range roots {
		if r.Name == name {
			return r.Key, false, nil
		}
	}

	root, err := p.Buckets.Init(ctx, sc, name)
	if err != nil {
		return "", false, fmt.Errorf("init bucket %s: %w", name, err)
	}
	if p.Logger != nil {
		p.Logger.InfoContext(ctx, "bucket_created", slog.String("name", name), slog.String("key", root.Key))
	}
	return root.Key, true, nil
}

// PushFile writes content at path in the bucket, replacing any earlier
// version.
func (p *Provisioner) PushFile(ctx context.Context, sc api.SessionContext, key, path string, content io.Reader) (api.PushResult, error) {
	res, err := p.Buckets.PushPath(ctx, sc, key, path, content)
	if err != nil {
		return api.PushResult{}, fmt.Errorf("push %s: %w", path, err)
	}
	return res, nil
}

// DeriveURL returns the public gateway URL of a bucket.
func (p *Provisioner) DeriveURL(key string) string {
	suffix := strings.Trim(p.GatewaySuffix, ".")
	if suffix == "" {
		suffix = DefaultGatewaySuffix
	}
	return "https://" + key + "." + suffix
}
