package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/webpro/unbarrelify/pkg/analyzer"
	"github.com/webpro/unbarrelify/pkg/engine"
	"github.com/webpro/unbarrelify/pkg/report"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

func parseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatHuman, "":
		return FormatHuman, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (want json or human)", s)
	}
}

func writeReport(w io.Writer, rep *report.Report, format OutputFormat) error {
	if format == FormatJSON {
		return rep.WriteJSON(w)
	}
	return rep.WriteHuman(w)
}

func writeInspection(w io.Writer, ins *engine.Inspection, format OutputFormat) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ins)
	}
	printInspectionHuman(w, ins)
	return nil
}

// printInspectionHuman prints a module summary: its kind, then export,
// import and dynamic import sections.
func printInspectionHuman(w io.Writer, ins *engine.Inspection) {
	dir := filepath.Dir(ins.Path)
	rel := func(p string) string {
		if r, err := filepath.Rel(dir, p); err == nil && filepath.IsAbs(p) {
			return filepath.ToSlash(r)
		}
		return p
	}

	kind := "module"
	switch {
	case ins.IsBarrel && ins.Forced:
		kind = "barrel (forced)"
	case ins.IsBarrel:
		kind = "barrel"
	case !ins.Script:
		kind = "component file (imports only)"
	}
	fmt.Fprintf(w, "%s  [%s]\n", ins.Path, kind)

	fmt.Fprintln(w)
	if len(ins.Exports) == 0 {
		fmt.Fprintln(w, "Re-exports  (none)")
	} else {
		fmt.Fprintln(w, "Re-exports")
		for _, e := range ins.Exports {
			target := e.Target
			if !e.External {
				target = rel(target)
			}
			fmt.Fprintf(w, "  %-30s %s\n", target, describeExport(e))
		}
	}

	fmt.Fprintln(w)
	if len(ins.Imports) == 0 {
		fmt.Fprintln(w, "Imports  (none)")
	} else {
		fmt.Fprintln(w, "Imports")
		nameWidth := 0
		for _, item := range ins.Imports {
			if n := len(describeImport(item)); n > nameWidth {
				nameWidth = n
			}
		}
		for _, item := range ins.Imports {
			desc := describeImport(item)
			target := item.Target
			if !item.External {
				target = rel(target)
			}
			fmt.Fprintf(w, "  %s%s  %s\n", desc, strings.Repeat(" ", nameWidth-len(desc)), target)
		}
	}

	if len(ins.DynamicImports) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Dynamic imports")
		for _, p := range ins.DynamicImports {
			fmt.Fprintf(w, "  %s\n", rel(p))
		}
	}

	if ins.ExportedNames != nil {
		fmt.Fprintln(w)
		names := strings.Join(ins.ExportedNames.Names, ", ")
		if ins.ExportedNames.Open {
			names += " (+ unknown names from packages)"
		}
		fmt.Fprintf(w, "Exported names  %s\n", names)
	}
}

func describeExport(e *analyzer.ExportEntry) string {
	var parts []string
	for _, ns := range e.Namespaces {
		parts = append(parts, "* as "+ns)
	}
	if e.Star {
		star := "*"
		if e.StarTypeOnly {
			star = "type *"
		}
		parts = append(parts, star)
	}
	names := make([]string, 0, len(e.Names))
	for name := range e.Names {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		desc := name
		if src := e.Names[name]; src != name {
			desc = src + " as " + name
		}
		if e.TypeOnly[name] {
			desc = "type " + desc
		}
		parts = append(parts, desc)
	}
	return strings.Join(parts, ", ")
}

func describeImport(item analyzer.ImportItem) string {
	var s string
	switch item.Kind {
	case analyzer.KindSideEffect:
		s = "(side effect)"
	case analyzer.KindNamespace:
		s = "* as " + item.Alias
	case analyzer.KindReExport:
		s = "export " + item.Name
		if item.Namespace != "" {
			s = "export * as " + item.Namespace
		} else if item.Alias != "" && item.Alias != item.Name {
			s += " as " + item.Alias
		}
	default:
		s = item.Name
		if item.Alias != "" && item.Alias != item.Name {
			s += " as " + item.Alias
		}
	}
	if item.TypeOnly {
		s = "type " + s
	}
	return s
}
