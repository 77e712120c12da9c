package rewriter

import (
	"bytes"
	"strings"

	"github.com/webpro/unbarrelify/pkg/analyzer"
	"github.com/webpro/unbarrelify/pkg/resolver"
)

// SpecifierFunc returns the specifier text item imports from.
type SpecifierFunc func(item *RewriteItem) string

// Edit is one replaced statement.
type Edit struct {
	Span   analyzer.Span `json:"span"`
	Before string        `json:"before"`
	After  string        `json:"after"`
}

// Apply replaces every span of plan in src, last span first so earlier
// offsets stay valid. Declarations replacing one statement are joined with
// the file's line ending; a span without declarations is removed with its
// line break.
func Apply(src []byte, plan *Plan, specifier SpecifierFunc, quote byte) ([]byte, []Edit) {
	spans := plan.Spans()
	edits := make([]Edit, 0, len(spans))
	out := append([]byte(nil), src...)
	eol := lineEnding(src)

	for i := len(spans) - 1; i >= 0; i-- {
		span := spans[i]
		if int(span.End) > len(src) || span.Start > span.End {
			continue
		}

		items := plan.Items(span)
		decls := make([]string, 0, len(items))
		for _, item := range items {
			decls = append(decls, Synthesize(item, specifier(item), SynthOptions{Quote: quote, Semicolon: item.Semicolon}))
		}
		after := strings.Join(decls, eol)

		end := span.End
		if len(items) == 0 {
			end = skipLineBreak(src, end)
		}
		out = splice(out, span.Start, end, after)
		edits = append(edits, Edit{Span: span, Before: string(src[span.Start:span.End]), After: after})
	}

	// collected last to first
	for l, r := 0, len(edits)-1; l < r; l, r = l+1, r-1 {
		edits[l], edits[r] = edits[r], edits[l]
	}
	return out, edits
}

func splice(buf []byte, start, end uint, text string) []byte {
	out := make([]byte, 0, len(buf)-int(end-start)+len(text))
	out = append(out, buf[:start]...)
	out = append(out, text...)
	return append(out, buf[end:]...)
}

// lineEnding returns "\r\n" when the first line break in src is CRLF.
func lineEnding(src []byte) string {
	if i := bytes.IndexByte(src, '\n'); i > 0 && src[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}

func skipLineBreak(src []byte, at uint) uint {
	if int(at) < len(src) && src[at] == '\r' {
		at++
	}
	if int(at) < len(src) && src[at] == '\n' {
		at++
	}
	return at
}

// Specifiers returns a SpecifierFunc building specifiers relative to
// consumer. The replaced specifier's loader prefix and query suffix are
// carried over to every new specifier.
func Specifiers(res *resolver.Resolver, consumer string, ext resolver.ExtMode) SpecifierFunc {
	return func(item *RewriteItem) string {
		if item.Form == FormSyntheticNamespace {
			return ""
		}
		orig := resolver.ParseSpecifier(item.Decoration.Original)
		if item.External {
			return orig.WithPath(item.Target)
		}
		path := res.BuildSpecifier(consumer, item.Target, resolver.BuildOptions{
			Ext:            ext,
			Original:       orig.Path,
			OriginalTarget: item.Barrel,
		})
		return orig.WithPath(path)
	}
}
