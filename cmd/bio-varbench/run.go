package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/varbench/catalog"
	"github.com/grailbio/varbench/pipeline"
	"github.com/grailbio/varbench/preflight"
	"github.com/grailbio/varbench/qsub"
	"github.com/grailbio/varbench/script"
	"github.com/grailbio/varbench/settings"
)

type runOpts struct {
	settingsPath string
	catalogPath  string
	out          string
	inputs       script.Inputs
	submit       bool
	dryRun       bool
	checkInputs  bool

	// client and runner override the Grid Engine client and the local
	// shell runner.
	client qsub.Client
	runner pipeline.Runner
}

func loadCatalog(ctx context.Context, s settings.Settings, path string) (*catalog.Catalog, error) {
	log.Printf("parse catalog file: %s", path)
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open catalog", path)
	}
	c, err := catalog.Parse(in.Reader(ctx), s)
	if e := in.Close(ctx); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return nil, errors.E(err, path)
	}
	return c, nil
}

func run(ctx context.Context, opts runOpts, out io.Writer) error {
	s, err := settings.Load(ctx, opts.settingsPath)
	if err != nil {
		return err
	}
	c, err := loadCatalog(ctx, s, opts.catalogPath)
	if err != nil {
		return err
	}
	if opts.checkInputs {
		if err := preflight.CheckInputs(ctx, opts.inputs.Reference+".fai", opts.inputs.Normal, opts.inputs.Tumour); err != nil {
			return err
		}
	}
	client := opts.client
	if client == nil && opts.submit {
		if opts.dryRun {
			client = &qsub.DryRun{First: 1}
		} else if client, err = qsub.NewGridEngine(s.Scheduler.Qsub); err != nil {
			return err
		}
	}
	runner := opts.runner
	if runner == nil {
		runner = pipeline.ShellRunner{}
	}
	log.Printf("create benchmark output folder: %s", opts.out)
	if err := c.MakeDirs(ctx, opts.out); err != nil {
		return err
	}
	o := pipeline.New(s, client, runner)
	if !opts.submit {
		_, err := o.Compose(ctx, c.All(), opts.inputs)
		return err
	}
	results := o.Run(ctx, c.All(), opts.inputs)
	if err := report(out, results); err != nil {
		return err
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d configurations failed", failed, len(results))
	}
	return nil
}

// report writes one line per configuration: name, final state, job ids and
// error, if any.
func report(out io.Writer, results []pipeline.Result) error {
	w := tsv.NewWriter(out)
	for _, r := range results {
		ids := make([]string, len(r.Handles))
		for i, h := range r.Handles {
			ids[i] = h.ID
		}
		w.WriteString(r.Config.Name())
		w.WriteString(r.State.String())
		w.WriteString(strings.Join(ids, ","))
		if r.Err != nil {
			w.WriteString(r.Err.Error())
		} else {
			w.WriteString("")
		}
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}

func check(ctx context.Context, settingsPath, catalogPath string, out io.Writer) error {
	s, err := settings.Load(ctx, settingsPath)
	if err != nil {
		return err
	}
	c, err := loadCatalog(ctx, s, catalogPath)
	if err != nil {
		return err
	}
	w := tsv.NewWriter(out)
	for _, cfg := range c.All() {
		w.WriteString(cfg.Name())
		w.WriteString(cfg.Params.String())
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}
