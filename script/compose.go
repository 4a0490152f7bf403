// Package script renders the shell scripts that run one benchmark
// configuration.
//
// Single-script tools get one benchmark_script.sh. CaVEMan gets one script
// per pipeline stage, benchmark_<stage>.sh, each independently executable,
// and a qsub/ directory for the per-task scheduler logs. Only parameters
// prefixed with "<stage>:" reach a CaVEMan stage.
//
// All scripts of a configuration are rendered in memory and validated before
// the first one is written.
package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/varbench/catalog"
	"github.com/grailbio/varbench/settings"
)

const (
	// Filename is the script of single-script tools.
	Filename = "benchmark_script.sh"
	// LogDirName is the subdirectory holding scheduler logs of multi-stage
	// tools.
	LogDirName = "qsub"
)

// ToggleNotSupportedError is returned when a flag without a value is given
// to a tool whose command line cannot take one.
type ToggleNotSupportedError struct {
	Tool catalog.Tool
	Flag string
}

func (e *ToggleNotSupportedError) Error() string {
	return fmt.Sprintf("%s does not support flags without value: %s", e.Tool, e.Flag)
}

// MissingRequiredFlagError is returned when a flag that catalog.Catalog.Add
// should have injected is absent. It indicates a bug, not a catalog error.
type MissingRequiredFlagError struct {
	Tool catalog.Tool
	Flag string
}

func (e *MissingRequiredFlagError) Error() string {
	return fmt.Sprintf("internal error: %s: required flag %s was not defaulted", e.Tool, e.Flag)
}

// Inputs are the files shared by every configuration of a benchmark.
type Inputs struct {
	// Reference is the reference genome FASTA.
	Reference string
	// Normal is the reference group sample.
	Normal string
	// Tumour is the target group sample.
	Tumour string
}

// Composer renders scripts using fixed paths from its settings.
type Composer struct {
	Settings settings.Settings
}

// New returns a composer for s.
func New(s settings.Settings) *Composer {
	return &Composer{Settings: s}
}

// Render returns the pipeline of cfg together with the rendered script of
// each stage, without touching the file system. cfg.Dir must be bound.
func (c *Composer) Render(cfg *catalog.Configuration, in Inputs) (*Pipeline, map[string]string, error) {
	if cfg.Dir == "" {
		return nil, nil, errors.E(errors.Precondition, fmt.Sprintf("%s: output directory not allocated", cfg.Name()))
	}
	if !cfg.Tool.MultiStage() {
		for _, e := range cfg.Params.Entries() {
			if !e.HasValue {
				return nil, nil, &ToggleNotSupportedError{Tool: cfg.Tool, Flag: e.Key}
			}
		}
	}
	layout, ok := layouts[cfg.Tool]
	if !ok {
		panic(cfg.Tool)
	}
	p := &Pipeline{Config: cfg, Reference: in.Reference, Ignored: ignored(cfg)}
	for _, e := range p.Ignored {
		log.Error.Printf("%s: parameter %s reaches no command line, ignored", cfg.Name(), e)
	}
	if cfg.Tool.MultiStage() {
		p.LogDir = filepath.Join(cfg.Dir, LogDirName)
		p.IndexPath = in.Reference + ".fai"
		if e, ok := cfg.Params.Get(StageSetup + ":-r"); ok && e.HasValue {
			p.IndexPath = e.Value
		}
	}
	rc := &renderContext{
		settings: c.Settings,
		desc:     cfg.Tool.Descriptor(c.Settings),
		cfg:      cfg,
		in:       in,
		dir:      cfg.Dir,
		pipeline: p,
	}
	bodies := map[string]string{}
	for _, l := range layout {
		render, ok := renderers[renderKey{cfg.Tool, l.name}]
		if !ok {
			panic(fmt.Sprintf("no renderer for %s/%s", cfg.Tool, l.name))
		}
		cmd, err := render(rc)
		if err != nil {
			return nil, nil, err
		}
		name := Filename
		if cfg.Tool.MultiStage() {
			name = fmt.Sprintf("benchmark_%s.sh", l.name)
		}
		s := Stage{
			Name:   l.name,
			Kind:   l.kind,
			Script: filepath.Join(cfg.Dir, name),
			Hold:   l.hold,
			Array:  l.array,
		}
		p.Stages = append(p.Stages, s)
		bodies[s.Name] = prolog(cfg.Dir) + cmd
	}
	return p, bodies, nil
}

// Compose renders and writes the scripts of cfg and makes them executable.
// Nothing is written if rendering fails.
func (c *Composer) Compose(ctx context.Context, cfg *catalog.Configuration, in Inputs) (*Pipeline, error) {
	p, bodies, err := c.Render(cfg, in)
	if err != nil {
		return nil, err
	}
	if p.LogDir != "" {
		if err := os.MkdirAll(p.LogDir, 0755); err != nil {
			return nil, errors.E(err, "create log directory", p.LogDir)
		}
	}
	for _, s := range p.Stages {
		log.Printf("%s: create script file: %s", cfg.Name(), s.Script)
		if err := writeScript(ctx, s.Script, bodies[s.Name]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func prolog(dir string) string {
	return fmt.Sprintf("#!/bin/bash\ncd %s\n", dir)
}

func writeScript(ctx context.Context, path, body string) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create script", path)
	}
	if _, err = out.Writer(ctx).Write([]byte(body)); err != nil {
		out.Discard(ctx)
		return errors.E(err, "write script", path)
	}
	if err = out.Close(ctx); err != nil {
		return errors.E(err, "close script", path)
	}
	if err = os.Chmod(path, 0755); err != nil {
		return errors.E(err, "chmod +x", path)
	}
	return nil
}

// flags renders entries as " key value" pairs, omitting the value of
// toggles.
func flags(entries []entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(" ")
		b.WriteString(e.Key)
		if e.HasValue {
			b.WriteString(" ")
			b.WriteString(e.Value)
		}
	}
	return b.String()
}
