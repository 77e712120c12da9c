package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r := New("/root", true)
	_, err := uuid.Parse(r.RunID)
	require.NoError(t, err)
	assert.NotEqual(t, r.RunID, New("/root", true).RunID)
	assert.False(t, r.Changed())
	assert.False(t, r.Failed())
}

func TestFailed(t *testing.T) {
	r := New("/root", true)
	r.Preserved = append(r.Preserved, Preserved{Path: "/root/a.ts", Reason: "skip"})
	assert.False(t, r.Failed())

	r.Deleted = append(r.Deleted, "/root/index.ts")
	assert.True(t, r.Failed())
}

func TestDiff(t *testing.T) {
	diff, changed, err := Diff("a.ts", "import { a } from './barrel';\nuse(a);\n", "import { a } from './a';\nuse(a);\n")
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Contains(t, diff, "--- a/a.ts")
	assert.Contains(t, diff, "+++ b/a.ts")
	assert.Contains(t, diff, "-import { a } from './barrel';")
	assert.Contains(t, diff, "+import { a } from './a';")

	_, changed, err = Diff("a.ts", "same\n", "same\n")
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestConsiderExample_KeepsLargest(t *testing.T) {
	r := New("/root", true)

	require.NoError(t, r.ConsiderExample("/root/small.ts", "a\n", "b\n"))
	require.NotNil(t, r.Example)
	assert.Equal(t, "/root/small.ts", r.Example.Path)

	require.NoError(t, r.ConsiderExample("/root/large.ts", "a\nb\nc\n", "x\ny\nc\n"))
	assert.Equal(t, "/root/large.ts", r.Example.Path)
	assert.Contains(t, r.Example.Diff, "a/large.ts")

	require.NoError(t, r.ConsiderExample("/root/tie.ts", "a\nb\n", "c\nd\n"))
	assert.Equal(t, "/root/large.ts", r.Example.Path)

	require.NoError(t, r.ConsiderExample("/root/unchanged.ts", "a\n", "a\n"))
	assert.Equal(t, "/root/large.ts", r.Example.Path)
}

func TestSort(t *testing.T) {
	r := New("/root", false)
	r.Modified = []string{"/root/b.ts", "/root/a.ts"}
	r.Preserved = []Preserved{{Path: "/root/z.ts"}, {Path: "/root/y.ts"}}
	r.Untraceable = []Untraceable{
		{Consumer: "/root/b.ts", Barrel: "/root/i.ts", Name: "x"},
		{Consumer: "/root/a.ts", Barrel: "/root/i.ts", Name: "z"},
		{Consumer: "/root/a.ts", Barrel: "/root/i.ts", Name: "y"},
	}
	r.Sort()

	assert.Equal(t, []string{"/root/a.ts", "/root/b.ts"}, r.Modified)
	assert.Equal(t, "/root/y.ts", r.Preserved[0].Path)
	assert.Equal(t, "y", r.Untraceable[0].Name)
	assert.Equal(t, "z", r.Untraceable[1].Name)
	assert.Equal(t, "/root/b.ts", r.Untraceable[2].Consumer)
}

func TestWriteJSON(t *testing.T) {
	r := New("/root", true)
	r.Modified = append(r.Modified, "/root/a.ts")
	r.AddError("/root/bad.ts", "read", errors.New("permission denied"))
	r.Timing("analyze", 12)

	var buf bytes.Buffer
	require.NoError(t, r.WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, r.RunID, decoded["runId"])
	assert.Equal(t, true, decoded["dryRun"])
	assert.Equal(t, []any{"/root/a.ts"}, decoded["modified"])
	assert.Equal(t, []any{}, decoded["deleted"])
	assert.NotContains(t, decoded, "example")

	errs := decoded["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "permission denied", errs[0].(map[string]any)["message"])
	assert.Equal(t, float64(12), decoded["stats"].(map[string]any)["timingsMs"].(map[string]any)["analyze"])
}

func TestWriteHuman(t *testing.T) {
	r := New("/root", true)
	r.Modified = []string{"/root/src/a.ts"}
	r.Deleted = []string{"/root/src/index.ts", "/root/src/utils/index.ts"}
	r.Preserved = []Preserved{{Path: "/root/src/ns/index.ts", Reason: "namespace-import", Consumers: []string{"/root/src/b.ts"}}}
	r.Untraceable = []Untraceable{{Barrel: "/root/src/ns/index.ts", Consumer: "/root/src/c.ts", Name: "gone"}}
	r.AddError("/elsewhere/x.ts", "write", errors.New("read-only"))

	var buf bytes.Buffer
	require.NoError(t, r.WriteHuman(&buf))
	out := buf.String()

	assert.Contains(t, out, "Would modify 1 file\n  src/a.ts\n")
	assert.Contains(t, out, "Would delete 2 barrels\n  src/index.ts\n  src/utils/index.ts\n")
	assert.Contains(t, out, "Preserved 1 barrel\n  src/ns/index.ts (namespace-import): src/b.ts\n")
	assert.Contains(t, out, "Untraceable 1 binding\n  src/c.ts: gone from src/ns/index.ts\n")
	assert.Contains(t, out, "1 error\n  /elsewhere/x.ts: write: read-only\n")

	r.DryRun = false
	buf.Reset()
	require.NoError(t, r.WriteHuman(&buf))
	assert.Contains(t, buf.String(), "Modified 1 file\n")
	assert.Contains(t, buf.String(), "Deleted 2 barrels\n")
}
