package bucket

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/hubcheck/pkg/api"
)

type fakeBuckets struct {
	roots     []api.Root
	files     map[string]string
	initCalls int
	listErr   error
}

func (f *fakeBuckets) List(ctx context.Context, sc api.SessionContext) ([]api.Root, error) {
	return f.roots, f.listErr
}

func (f *fakeBuckets) Init(ctx context.Context, sc api.SessionContext, name string) (api.Root, error) {
	f.initCalls++
	r := api.Root{Key: "bkey" + strings.Repeat("x", f.initCalls), Name: name}
	f.roots = append(f.roots, r)
	return r, nil
}

func (f *fakeBuckets) PushPath(ctx context.Context, sc api.SessionContext, key, path string, content io.Reader) (api.PushResult, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return api.PushResult{}, err
	}
	if f.files == nil {
		f.files = map[string]string{}
	}
	f.files[key+"/"+path] = string(data)
	return api.PushResult{Path: path, Size: int64(len(data))}, nil
}

func TestObtainBucket_CreatesThenReuses(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBuckets{roots: []api.Root{{Key: "other", Name: "photos"}}}
	p := &Provisioner{Buckets: fb}
	sc := api.NewSessionContext("h")

	key, created, err := p.ObtainBucket(ctx, sc, "files")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := p.ObtainBucket(ctx, sc, "files")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, key, again)
	assert.Equal(t, 1, fb.initCalls)
}

func TestObtainBucket_ListError(t *testing.T) {
	fb := &fakeBuckets{listErr: errors.New("unavailable")}
	p := &Provisioner{Buckets: fb}

	_, _, err := p.ObtainBucket(context.Background(), api.NewSessionContext("h"), "files")
	require.Error(t, err)
	assert.Equal(t, 0, fb.initCalls)
}

func TestPushFile_Overwrites(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBuckets{}
	p := &Provisioner{Buckets: fb}
	sc := api.NewSessionContext("h")

	_, err := p.PushFile(ctx, sc, "k", "index.html", strings.NewReader("v1"))
	require.NoError(t, err)
	res, err := p.PushFile(ctx, sc, "k", "index.html", strings.NewReader("hello world"))
	require.NoError(t, err)

	assert.Equal(t, int64(11), res.Size)
	assert.Equal(t, "hello world", fb.files["k/index.html"])
}

func TestDeriveURL(t *testing.T) {
	assert.Equal(t, "https://bafzkey.ipns.hub.staging.textile.io", (&Provisioner{}).DeriveURL("bafzkey"))
	assert.Equal(t, "https://bafzkey.gw.example", (&Provisioner{GatewaySuffix: ".gw.example"}).DeriveURL("bafzkey"))
}
