package tracker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	tr := New()
	assert.True(t, tr.Register("/p/index.ts"))
	assert.False(t, tr.Register("/p/index.ts"))
	assert.True(t, tr.IsBarrel("/p/index.ts"))
	assert.False(t, tr.IsBarrel("/p/other.ts"))
	assert.Equal(t, []string{"/p/index.ts"}, tr.Barrels())
}

func TestBookkeepingIsIdempotent(t *testing.T) {
	tr := New()
	tr.Register("/b.ts")
	tr.AddConsumer("/b.ts", "/c.ts", true)
	tr.AddConsumer("/b.ts", "/c.ts", true)
	tr.MarkRewritten("/b.ts", "/c.ts")
	tr.MarkRewritten("/b.ts", "/c.ts")
	tr.AddDynamicConsumer("/b.ts", "/d.ts")
	tr.AddDynamicConsumer("/b.ts", "/d.ts")

	assert.Equal(t, []string{"/c.ts"}, tr.Consumers("/b.ts"))
	assert.True(t, tr.IsRewritten("/b.ts", "/c.ts"))
	assert.False(t, tr.IsRewritten("/b.ts", "/x.ts"))
	assert.Nil(t, tr.Consumers("/unknown.ts"))

	c := tr.Classify(ClassifyOptions{})
	require.Len(t, c.Preserved, 1)
	assert.Equal(t, []string{"/d.ts"}, c.Preserved[0].Consumers)
}

func TestClassify_AllRewritten(t *testing.T) {
	tr := New()
	tr.Register("/index.ts")
	tr.AddConsumer("/index.ts", "/a.ts", true)
	tr.AddConsumer("/index.ts", "/b.ts", true)
	tr.MarkRewritten("/index.ts", "/a.ts")
	tr.MarkRewritten("/index.ts", "/b.ts")

	c := tr.Classify(ClassifyOptions{})
	assert.Equal(t, []string{"/index.ts"}, c.Deleted)
	assert.Empty(t, c.Preserved)
}

func TestClassify_NoConsumersIsDeleted(t *testing.T) {
	tr := New()
	tr.Register("/orphan.ts")
	assert.Equal(t, []string{"/orphan.ts"}, tr.Classify(ClassifyOptions{}).Deleted)
}

func TestClassify_Chain(t *testing.T) {
	// consumer → A → B → definer
	tr := New()
	tr.Register("/A.ts")
	tr.Register("/B.ts")
	tr.AddConsumer("/A.ts", "/consumer.ts", true)
	tr.MarkRewritten("/A.ts", "/consumer.ts")
	tr.AddConsumer("/B.ts", "/A.ts", true)

	c := tr.Classify(ClassifyOptions{})
	assert.Equal(t, []string{"/A.ts", "/B.ts"}, c.Deleted)
	assert.Empty(t, c.Preserved)
}

func TestClassify_ChainOrderIndependent(t *testing.T) {
	// B sorts before A but only resolves once A is a candidate
	tr := New()
	tr.Register("/z-outer.ts")
	tr.Register("/a-inner.ts")
	tr.AddConsumer("/z-outer.ts", "/consumer.ts", true)
	tr.MarkRewritten("/z-outer.ts", "/consumer.ts")
	tr.AddConsumer("/a-inner.ts", "/z-outer.ts", true)

	assert.Equal(t, []string{"/a-inner.ts", "/z-outer.ts"}, tr.Classify(ClassifyOptions{}).Deleted)
}

func TestClassify_ChainBlockedByPreservedOuter(t *testing.T) {
	tr := New()
	tr.Register("/A.ts")
	tr.Register("/B.ts")
	tr.AddConsumer("/A.ts", "/consumer.ts", true) // not rewritten
	tr.AddConsumer("/B.ts", "/A.ts", true)

	c := tr.Classify(ClassifyOptions{})
	assert.Empty(t, c.Deleted)
	require.Len(t, c.Preserved, 2)
	assert.Equal(t, Preserved{Path: "/A.ts", Reason: ReasonNamespaceImport, Consumers: []string{"/consumer.ts"}}, c.Preserved[0])
	assert.Equal(t, Preserved{Path: "/B.ts", Reason: ReasonNamespaceImport, Consumers: []string{"/A.ts"}}, c.Preserved[1])
}

func TestClassify_DynamicIsExclusive(t *testing.T) {
	tr := New()
	tr.Register("/index.ts")
	tr.AddConsumer("/index.ts", "/static.ts", true)
	tr.MarkRewritten("/index.ts", "/static.ts")
	tr.AddConsumer("/index.ts", "/App.vue", false)
	tr.AddDynamicConsumer("/index.ts", "/lazy.ts")

	c := tr.Classify(ClassifyOptions{Skip: func(string) bool { return true }})
	assert.Empty(t, c.Deleted)
	require.Len(t, c.Preserved, 1)
	assert.Equal(t, ReasonDynamicImport, c.Preserved[0].Reason)
	assert.Equal(t, []string{"/lazy.ts"}, c.Preserved[0].Consumers)
}

func TestClassify_SkipAndEntryPoint(t *testing.T) {
	tr := New()
	tr.Register("/skipped.ts")
	tr.Register("/entry.ts")
	tr.AddConsumer("/skipped.ts", "/c.ts", true)
	tr.MarkRewritten("/skipped.ts", "/c.ts")

	c := tr.Classify(ClassifyOptions{
		Skip:       func(p string) bool { return p == "/skipped.ts" },
		EntryPoint: func(p string) bool { return p == "/entry.ts" },
	})
	assert.Empty(t, c.Deleted)
	require.Len(t, c.Preserved, 2)
	assert.Equal(t, Preserved{Path: "/entry.ts", Reason: ReasonSkip, Consumers: []string{}}, c.Preserved[0])
	assert.Equal(t, Preserved{Path: "/skipped.ts", Reason: ReasonSkip, Consumers: []string{"/c.ts"}}, c.Preserved[1])
}

func TestClassify_BothReasons(t *testing.T) {
	tr := New()
	tr.Register("/index.ts")
	tr.AddConsumer("/index.ts", "/Page.svelte", false)
	tr.AddConsumer("/index.ts", "/ns.ts", true)
	tr.AddConsumer("/index.ts", "/ok.ts", true)
	tr.MarkRewritten("/index.ts", "/ok.ts")

	c := tr.Classify(ClassifyOptions{})
	assert.Empty(t, c.Deleted)
	require.Len(t, c.Preserved, 2)
	assert.Equal(t, ReasonNonTSImport, c.Preserved[0].Reason)
	assert.Equal(t, []string{"/Page.svelte"}, c.Preserved[0].Consumers)
	assert.Equal(t, ReasonNamespaceImport, c.Preserved[1].Reason)
	assert.Equal(t, []string{"/ns.ts"}, c.Preserved[1].Consumers)
}

func TestClassify_NonScriptStaysNonScript(t *testing.T) {
	tr := New()
	tr.Register("/index.ts")
	tr.AddConsumer("/index.ts", "/x.mdx", false)
	tr.AddConsumer("/index.ts", "/x.mdx", true)

	c := tr.Classify(ClassifyOptions{})
	require.Len(t, c.Preserved, 1)
	assert.Equal(t, ReasonNonTSImport, c.Preserved[0].Reason)
}

func TestClassify_OutOfScope(t *testing.T) {
	tr := New()
	tr.Register("/project/index.ts")
	tr.Register("/outside/index.ts")
	tr.AddConsumer("/outside/index.ts", "/project/index.ts", true)

	c := tr.Classify(ClassifyOptions{InScope: func(p string) bool { return strings.HasPrefix(p, "/project/") }})
	assert.Equal(t, []string{"/project/index.ts"}, c.Deleted)
	assert.Empty(t, c.Preserved, "out-of-scope barrels are never reported")
}

func TestClassify_Deterministic(t *testing.T) {
	build := func() Classification {
		tr := New()
		for _, b := range []string{"/c.ts", "/a.ts", "/b.ts"} {
			tr.Register(b)
			tr.AddConsumer(b, "/z.ts", true)
			tr.AddConsumer(b, "/y.ts", true)
		}
		tr.MarkRewritten("/b.ts", "/z.ts")
		tr.MarkRewritten("/b.ts", "/y.ts")
		return tr.Classify(ClassifyOptions{})
	}

	first := build()
	assert.Equal(t, []string{"/b.ts"}, first.Deleted)
	assert.Equal(t, []string{"/y.ts", "/z.ts"}, first.Preserved[0].Consumers)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, build())
	}
}
