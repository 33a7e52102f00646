package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocal(t *testing.T) (string, *LocalStorage) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xml"), []byte("<TEI/>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.xml"), []byte("<TEI/>"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.xml"), []byte("<TEI/>"), 0644))

	store, err := NewLocalStorage(LocalConfig{Paths: []string{dir}})
	require.NoError(t, err, "创建本地存储失败")
	return dir, store
}

func TestLocalStorageList(t *testing.T) {
	dir, store := setupLocal(t)

	files, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 2, "只扫描目录第一层")

	names := []string{files[0].Name, files[1].Name}
	assert.Contains(t, names, filepath.Join(dir, "a.xml"))
	assert.Contains(t, names, filepath.Join(dir, "b.xml"))
	assert.Greater(t, files[0].Size, int64(0))
}

func TestLocalStorageMissingRoot(t *testing.T) {
	store, err := NewLocalStorage(LocalConfig{
		Paths: []string{filepath.Join(t.TempDir(), "absent")},
	})
	require.NoError(t, err)

	files, err := store.List(context.Background())
	assert.NoError(t, err, "不存在的根目录应该被静默跳过")
	assert.Empty(t, files)
}

func TestLocalStorageNoPaths(t *testing.T) {
	_, err := NewLocalStorage(LocalConfig{})
	assert.Error(t, err, "没有语料目录应该报错")
}

func TestLocalStorageGet(t *testing.T) {
	dir, store := setupLocal(t)

	reader, err := store.Get(context.Background(), filepath.Join(dir, "a.xml"))
	require.NoError(t, err)
	defer reader.Close()

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "<TEI/>", string(content))
}

func TestLocalStorageGetOutsideRoots(t *testing.T) {
	_, store := setupLocal(t)

	_, err := store.Get(context.Background(), "/etc/passwd")
	assert.Error(t, err, "语料目录之外的路径应该被拒绝")
}

func TestLocalStorageExists(t *testing.T) {
	dir, store := setupLocal(t)
	ctx := context.Background()

	exists, err := store.Exists(ctx, filepath.Join(dir, "a.xml"))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(ctx, filepath.Join(dir, "absent.xml"))
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = store.Exists(ctx, "/etc/passwd")
	require.NoError(t, err)
	assert.False(t, exists, "目录外的路径一律视为不存在")
}
