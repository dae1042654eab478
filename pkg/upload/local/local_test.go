package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/deployrc/pkg/target"
	"github.com/walteh/deployrc/pkg/upload"
)

func TestUploadFiles(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	src := t.TempDir()
	dst := t.TempDir()

	file := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0644))

	var results []error
	uc := &upload.Context{
		Target: &target.Target{ID: "1", Type: "local", Options: map[string]string{"dir": dst}},
		Units: []*upload.Unit{
			{
				File:              file,
				Destination:       target.NameAndPath{Name: "a.txt", Path: "/www/sub"},
				OnUploadCompleted: func(ctx context.Context, err error) { results = append(results, err) },
			},
			{
				File:              filepath.Join(src, "missing.txt"),
				Destination:       target.NameAndPath{Name: "missing.txt", Path: "/"},
				OnUploadCompleted: func(ctx context.Context, err error) { results = append(results, err) },
			},
		},
	}

	require.NoError(t, New().UploadFiles(ctx, uc))

	got, err := os.ReadFile(filepath.Join(dst, "www", "sub", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	require.Len(t, results, 2)
	assert.NoError(t, results[0])
	assert.Error(t, results[1])

	_, err = os.Stat(filepath.Join(dst, "www", "sub", "a.txt.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestUploadFilesRequiresDir(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	err := New().UploadFiles(ctx, &upload.Context{Target: &target.Target{ID: "1", Type: "local"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "option dir is required")
}

func TestRegistered(t *testing.T) {
	plugins := upload.DefaultRegistry().PluginsFor(&target.Target{ID: "1", Type: "local"})
	require.NotEmpty(t, plugins)
	assert.Equal(t, "local", plugins[0].Name())
}
