package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceReader_ReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "utils.ts")
	content := "export const foo = 1;\n// ðŸ‘‹ unicode stays intact\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r := NewSourceReader(DiscardLogger())
	data, err := r.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
	assert.Equal(t, int64(1), r.Stats().Reads)
}

func TestSourceReader_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.ts")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	data, err := NewSourceReader(DiscardLogger()).ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestSourceReader_MissingFile(t *testing.T) {
	_, err := NewSourceReader(DiscardLogger()).ReadFile(filepath.Join(t.TempDir(), "nope.ts"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.ts")
}

func TestSourceReader_Directory(t *testing.T) {
	_, err := NewSourceReader(DiscardLogger()).ReadFile(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}

func TestSourceReader_ReturnedBytesOutliveRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "consumer.ts")
	require.NoError(t, os.WriteFile(path, []byte("import { foo } from './index';\n"), 0600))

	r := NewSourceReader(DiscardLogger())
	data, err := r.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, r.WriteFile(path, []byte(strings.Replace(string(data), "index", "utils", 1))))
	assert.Equal(t, "import { foo } from './index';\n", string(data))

	stat, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), stat.Mode().Perm())
}

func TestSourceReader_Remove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.ts")
	require.NoError(t, os.WriteFile(path, []byte("export * from './a';"), 0644))

	r := NewSourceReader(DiscardLogger())
	require.NoError(t, r.Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	err = r.Remove(path)
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", ParseLevel("debug").String())
	assert.Equal(t, "WARN", ParseLevel("WARN").String())
	assert.Equal(t, "INFO", ParseLevel("bogus").String())
}

func TestParserPoolSize(t *testing.T) {
	assert.Equal(t, 3, ParserPoolSize(3))
	size := ParserPoolSize(0)
	assert.GreaterOrEqual(t, size, 2)
	assert.LessOrEqual(t, size, 8)
}
