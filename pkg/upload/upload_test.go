package upload

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/deployrc/pkg/cancel"
	"github.com/walteh/deployrc/pkg/target"
	"github.com/walteh/deployrc/pkg/transform"
	"gitlab.com/tozd/go/errors"
)

func setupTestContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

func writeFile(t *testing.T, dir, name, content string) string {
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestUnitRead(t *testing.T) {
	ctx := setupTestContext(t)
	dir := t.TempDir()
	file := writeFile(t, dir, "a.txt", "hello")

	var gotCtx transform.Context
	u := &Unit{
		File:        file,
		Destination: target.NameAndPath{Name: "a.txt", Path: "/www"},
		Transformer: func(_ context.Context, data []byte, tc transform.Context) ([]byte, error) {
			gotCtx = tc
			return bytes.ToUpper(data), nil
		},
		TransformContext: transform.Context{Operation: transform.OperationDeploy, File: file, RemoteFile: "/www/a.txt"},
		StateKey:         func() string { return "42" },
	}

	data, err := u.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", string(data))
	assert.Equal(t, "42", gotCtx.StateKey)
	assert.Equal(t, "/www/a.txt", gotCtx.RemoteFile)
	assert.Equal(t, "/www/a.txt", u.RemotePath())

	u.Transformer = func(context.Context, []byte, transform.Context) ([]byte, error) {
		return nil, errors.New("bad content")
	}
	_, err = u.Read(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad content")

	u.File = filepath.Join(dir, "missing.txt")
	_, err = u.Read(ctx)
	require.Error(t, err)
}

func TestUnitHooksAreOptional(t *testing.T) {
	ctx := setupTestContext(t)
	u := &Unit{}
	u.BeforeUpload(ctx, "")
	u.UploadCompleted(ctx, nil)
}

func TestContextIsCancellingIsLive(t *testing.T) {
	src := cancel.NewSource()
	uc := &Context{Token: src.Token()}

	assert.False(t, uc.IsCancelling())
	src.Cancel()
	assert.True(t, uc.IsCancelling())

	assert.False(t, (&Context{}).IsCancelling(), "nil token never cancels")
}

type namedPlugin string

func (p namedPlugin) Name() string { return string(p) }

func (p namedPlugin) UploadFiles(ctx context.Context, uc *Context) error { return nil }

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register("SFTP", namedPlugin("first"))
	reg.Register("sftp ", namedPlugin("second"))
	reg.Register("local", namedPlugin("local"))

	plugins := reg.PluginsFor(&target.Target{ID: "1", Type: " Sftp"})
	require.Len(t, plugins, 2)
	assert.Equal(t, "first", plugins[0].Name())
	assert.Equal(t, "second", plugins[1].Name())

	assert.Empty(t, reg.PluginsFor(&target.Target{ID: "1", Type: "ftp"}))
	assert.Empty(t, reg.PluginsFor(nil))
	assert.Equal(t, []string{"local", "sftp"}, reg.Types())

	// the returned slice is a copy
	plugins[0] = namedPlugin("changed")
	assert.Equal(t, "first", reg.PluginsFor(&target.Target{ID: "1", Type: "sftp"})[0].Name())
}

func TestUploadEach(t *testing.T) {
	ctx := setupTestContext(t)
	dir := t.TempDir()

	var events []string
	mkUnit := func(name string) *Unit {
		file := writeFile(t, dir, name, "content of "+name)
		return &Unit{
			File:        file,
			Destination: target.NameAndPath{Name: name, Path: "/"},
			OnBeforeUpload: func(ctx context.Context, destination string) {
				events = append(events, "before:"+name)
			},
			OnUploadCompleted: func(ctx context.Context, err error) {
				if err != nil {
					events = append(events, "error:"+name)
					return
				}
				events = append(events, "ok:"+name)
			},
		}
	}

	uc := &Context{
		Target: &target.Target{ID: "1"},
		Units:  []*Unit{mkUnit("a.txt"), mkUnit("b.txt"), mkUnit("c.txt")},
	}

	stored := map[string]string{}
	failed := UploadEach(ctx, uc, func(ctx context.Context, u *Unit, data []byte) error {
		if u.Destination.Name == "b.txt" {
			return errors.New("denied")
		}
		stored[u.RemotePath()] = string(data)
		return nil
	})

	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{
		"before:a.txt", "ok:a.txt",
		"before:b.txt", "error:b.txt",
		"before:c.txt", "ok:c.txt",
	}, events)
	assert.Equal(t, map[string]string{"/a.txt": "content of a.txt", "/c.txt": "content of c.txt"}, stored)
	assert.Equal(t, []string{"/a.txt", "/b.txt", "/c.txt"}, uc.RemotePaths())
}

func TestUploadEachStopsWhenContextDone(t *testing.T) {
	ctx, cancelCtx := context.WithCancel(setupTestContext(t))
	dir := t.TempDir()

	uc := &Context{Units: []*Unit{
		{File: writeFile(t, dir, "a.txt", "a"), Destination: target.NameAndPath{Name: "a.txt"}},
		{File: writeFile(t, dir, "b.txt", "b"), Destination: target.NameAndPath{Name: "b.txt"}},
	}}

	var puts int
	UploadEach(ctx, uc, func(ctx context.Context, u *Unit, data []byte) error {
		puts++
		cancelCtx()
		return nil
	})

	assert.Equal(t, 1, puts)
}

func TestUploadEachIgnoresAdvisoryCancellation(t *testing.T) {
	ctx := setupTestContext(t)
	dir := t.TempDir()

	src := cancel.NewSource()
	src.Cancel()

	uc := &Context{Token: src.Token(), Units: []*Unit{
		{File: writeFile(t, dir, "a.txt", "a"), Destination: target.NameAndPath{Name: "a.txt"}},
		{File: writeFile(t, dir, "b.txt", "b"), Destination: target.NameAndPath{Name: "b.txt"}},
	}}

	var puts int
	UploadEach(ctx, uc, func(ctx context.Context, u *Unit, data []byte) error {
		puts++
		return nil
	})

	assert.Equal(t, 2, puts, "a requested cancellation only annotates in-flight uploads")
}
