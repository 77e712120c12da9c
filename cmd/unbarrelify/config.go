package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/webpro/unbarrelify/pkg/engine"
	"github.com/webpro/unbarrelify/pkg/resolver"
)

const configFileName = ".unbarrelify.yaml"

// ProjectConfig holds the contents of .unbarrelify.yaml. Keys mirror the
// command line flags.
type ProjectConfig struct {
	Ext             string   `yaml:"ext"`
	UnsafeNamespace *bool    `yaml:"unsafe_namespace"`
	Skip            []string `yaml:"skip"`
	Entry           []string `yaml:"entry"`
	Barrel          []string `yaml:"barrel"`
	Include         []string `yaml:"include"`
	Exclude         []string `yaml:"exclude"`
	TSConfig        string   `yaml:"tsconfig"`
	Organize        *bool    `yaml:"organize"`
	Format          string   `yaml:"format"`
	LogLevel        string   `yaml:"log_level"`
	LogFile         string   `yaml:"log_file"`
	ParserPoolSize  int      `yaml:"parser_pool_size"`
	CacheSize       int      `yaml:"cache_size"`
}

// loadProjectConfig reads path, or .unbarrelify.yaml in root when path is
// empty. A missing default file returns nil (no error); unknown keys are
// rejected.
func loadProjectConfig(root, path string) (*ProjectConfig, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, configFileName)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !explicit {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg ProjectConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	// relative paths in the file are relative to the file
	if cfg.TSConfig != "" && !filepath.IsAbs(cfg.TSConfig) {
		cfg.TSConfig = filepath.Join(filepath.Dir(path), cfg.TSConfig)
	}
	if cfg.LogFile != "" && !filepath.IsAbs(cfg.LogFile) {
		cfg.LogFile = filepath.Join(filepath.Dir(path), cfg.LogFile)
	}
	return &cfg, nil
}

// runFlags are the flags shared by the commands that run the engine.
type runFlags struct {
	dryRun          bool
	ext             string
	unsafeNamespace bool
	skip            []string
	entry           []string
	barrel          []string
	include         []string
	exclude         []string
	tsconfig        string
	organize        bool
	format          string
}

func addRunFlags(cmd *cobra.Command, f *runFlags, withDryRun bool) {
	if withDryRun {
		cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Report changes without writing or deleting files")
	}
	cmd.Flags().StringVar(&f.ext, "ext", "", "Extension of rewritten specifiers: none, js or ts (default: keep each import's style)")
	cmd.Flags().BoolVar(&f.unsafeNamespace, "unsafe-namespace", false, "Rewrite namespace imports of multi-module barrels into a synthesized object")
	cmd.Flags().StringArrayVar(&f.skip, "skip", nil, "Glob of barrels to keep (repeatable)")
	cmd.Flags().StringArrayVar(&f.entry, "entry", nil, "Glob of entry points to keep (repeatable)")
	cmd.Flags().StringArrayVar(&f.barrel, "barrel", nil, "Glob of files to treat as barrels (repeatable)")
	cmd.Flags().StringArrayVar(&f.include, "include", nil, "Glob of files to process (repeatable)")
	cmd.Flags().StringArrayVar(&f.exclude, "exclude", nil, "Glob of files or directories to ignore (repeatable)")
	cmd.Flags().StringVar(&f.tsconfig, "tsconfig", "", "tsconfig/jsconfig file or directory (default: nearest above root)")
	cmd.Flags().BoolVar(&f.organize, "organize", false, "Merge duplicate imports in modified files")
	cmd.Flags().StringVar(&f.format, "format", "human", "Output format (json, human)")
}

// resolveOptions merges flags and config: an explicitly set flag wins over
// the config file, which wins over the default.
func resolveOptions(cmd *cobra.Command, f *runFlags, root string, cfg *ProjectConfig) (engine.Options, OutputFormat, error) {
	if cfg == nil {
		cfg = &ProjectConfig{}
	}
	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}
	str := func(name, flagValue, cfgValue string) string {
		if changed(name) || cfgValue == "" {
			return flagValue
		}
		return cfgValue
	}
	boolean := func(name string, flagValue bool, cfgValue *bool) bool {
		if changed(name) || cfgValue == nil {
			return flagValue
		}
		return *cfgValue
	}
	list := func(name string, flagValue, cfgValue []string) []string {
		if changed(name) || cfgValue == nil {
			return flagValue
		}
		return cfgValue
	}

	ext, err := resolver.ParseExtMode(str("ext", f.ext, cfg.Ext))
	if err != nil {
		return engine.Options{}, "", err
	}
	format, err := parseFormat(str("format", f.format, cfg.Format))
	if err != nil {
		return engine.Options{}, "", err
	}

	opts := engine.Options{
		Root:            root,
		DryRun:          f.dryRun,
		Ext:             ext,
		UnsafeNamespace: boolean("unsafe-namespace", f.unsafeNamespace, cfg.UnsafeNamespace),
		Include:         list("include", f.include, cfg.Include),
		Exclude:         list("exclude", f.exclude, cfg.Exclude),
		Skip:            list("skip", f.skip, cfg.Skip),
		EntryPoints:     list("entry", f.entry, cfg.Entry),
		Barrels:         list("barrel", f.barrel, cfg.Barrel),
		TSConfig:        str("tsconfig", f.tsconfig, cfg.TSConfig),
		Organize:        boolean("organize", f.organize, cfg.Organize),
		ParserPoolSize:  cfg.ParserPoolSize,
		CacheSize:       cfg.CacheSize,
	}
	return opts, format, nil
}
