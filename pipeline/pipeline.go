// Package pipeline drives benchmark configurations through their stages.
//
// Single-script tools are submitted as one scheduler job. CaVEMan runs as a
// six-stage pipeline:
//
//   setup         run locally; the orchestrator waits for it to exit
//   split         array job, one task per reference index record
//   merge_splits  holds on split
//   mstep         array job, holds on merge_splits
//   merge         holds on mstep
//   estep         array job, holds on merge
//
// Each scheduled stage is gated by a hold predicate on the job id of its
// predecessor, so the scheduler enforces the ordering. The orchestrator never
// waits for a scheduled job and returns once the last submission is
// accepted. Jobs already submitted for a configuration that later fails are
// left queued.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/varbench/catalog"
	"github.com/grailbio/varbench/encoding/faidx"
	"github.com/grailbio/varbench/qsub"
	"github.com/grailbio/varbench/script"
	"github.com/grailbio/varbench/settings"
)

// Result is the outcome of one configuration.
type Result struct {
	Config *catalog.Configuration
	State  State
	// Handles lists the jobs accepted by the scheduler, in submission order.
	Handles []qsub.JobHandle
	// Tasks is the array fan-out, 0 for tools without array stages.
	Tasks int
	Err   error
	// AbortedIn is the last state reached before the configuration was
	// aborted. It is meaningful only when State is Aborted.
	AbortedIn State
}

func (r *Result) advance(to State) {
	if !canAdvance(r.State, to) {
		panic(fmt.Sprintf("%s: illegal transition %s -> %s", r.Config.Name(), r.State, to))
	}
	log.Debug.Printf("%s: %s -> %s", r.Config.Name(), r.State, to)
	r.State = to
}

func (r *Result) abort(err error) {
	log.Error.Printf("%s: aborted in %s: %v", r.Config.Name(), r.State, err)
	r.AbortedIn = r.State
	r.State = Aborted
	r.Err = err
}

// Orchestrator composes and runs configurations one after another.
type Orchestrator struct {
	settings settings.Settings
	composer *script.Composer
	client   qsub.Client
	runner   Runner
}

// New returns an orchestrator that renders scripts with s, submits through
// client and runs blocking stages with runner.
func New(s settings.Settings, client qsub.Client, runner Runner) *Orchestrator {
	return &Orchestrator{
		settings: s,
		composer: script.New(s),
		client:   client,
		runner:   runner,
	}
}

// Compose writes the scripts of every configuration without running them.
// It stops at the first error.
func (o *Orchestrator) Compose(ctx context.Context, cfgs []*catalog.Configuration, in script.Inputs) ([]*script.Pipeline, error) {
	var ps []*script.Pipeline
	for _, cfg := range cfgs {
		p, err := o.composer.Compose(ctx, cfg, in)
		if err != nil {
			return nil, errors.E(err, cfg.Name())
		}
		ps = append(ps, p)
	}
	return ps, nil
}

// Run composes and executes each configuration in turn. A failing
// configuration is aborted and the next one proceeds; the error is recorded
// in its Result.
func (o *Orchestrator) Run(ctx context.Context, cfgs []*catalog.Configuration, in script.Inputs) []Result {
	results := make([]Result, 0, len(cfgs))
	for _, cfg := range cfgs {
		r := Result{Config: cfg, State: SetupPending}
		p, err := o.composer.Compose(ctx, cfg, in)
		if err != nil {
			r.abort(err)
		} else {
			o.Execute(ctx, p, &r)
		}
		results = append(results, r)
	}
	return results
}

// Execute runs the stages of p, recording progress in r.
func (o *Orchestrator) Execute(ctx context.Context, p *script.Pipeline, r *Result) {
	var err error
	if p.Config.Tool.MultiStage() {
		err = o.executeCaVEMan(ctx, p, r)
	} else {
		err = o.executeSingle(ctx, p, r)
	}
	if err != nil {
		r.abort(err)
		return
	}
	r.advance(Complete)
	log.Printf("%s: %d jobs submitted", p.Config.Name(), len(r.Handles))
}

func (o *Orchestrator) executeSingle(ctx context.Context, p *script.Pipeline, r *Result) error {
	run, err := stage(p, script.StageRun)
	if err != nil {
		return err
	}
	h, err := o.SubmitAsync(ctx, p, run, 0, nil)
	if err != nil {
		return err
	}
	r.Handles = append(r.Handles, h)
	return nil
}

func (o *Orchestrator) executeCaVEMan(ctx context.Context, p *script.Pipeline, r *Result) error {
	var stages [6]script.Stage
	for i, name := range []string{
		script.StageSetup, script.StageSplit, script.StageMergeSplits,
		script.StageMstep, script.StageMerge, script.StageEstep,
	} {
		s, err := stage(p, name)
		if err != nil {
			return err
		}
		stages[i] = s
	}
	setup, split, mergeSplits, mstep, merge, estep :=
		stages[0], stages[1], stages[2], stages[3], stages[4], stages[5]

	index, err := o.RunBlocking(ctx, p, setup)
	if err != nil {
		return err
	}
	r.advance(SetupDone)

	n, err := faidx.Count(ctx, index)
	if err != nil {
		return err
	}
	if n < 1 {
		return errors.E(errors.Invalid, fmt.Sprintf("index %s has no records", index))
	}
	r.Tasks = n
	log.Printf("%s: %d records in %s", p.Config.Name(), n, index)

	splitJob, err := o.SubmitAsync(ctx, p, split, n, nil)
	if err != nil {
		return err
	}
	r.advance(SplitSubmitted)
	r.Handles = append(r.Handles, splitJob)
	r.advance(SplitDone)

	mergeSplitsJob, err := o.SubmitAsync(ctx, p, mergeSplits, n, &splitJob)
	if err != nil {
		return err
	}
	r.Handles = append(r.Handles, mergeSplitsJob)
	r.advance(MergeSplitsSubmitted)

	mstepJob, err := o.SubmitAsync(ctx, p, mstep, n, &mergeSplitsJob)
	if err != nil {
		return err
	}
	r.Handles = append(r.Handles, mstepJob)
	r.advance(MstepSubmitted)

	mergeJob, err := o.SubmitAsync(ctx, p, merge, n, &mstepJob)
	if err != nil {
		return err
	}
	r.Handles = append(r.Handles, mergeJob)
	r.advance(MergeSubmitted)

	estepJob, err := o.SubmitAsync(ctx, p, estep, n, &mergeJob)
	if err != nil {
		return err
	}
	r.Handles = append(r.Handles, estepJob)
	r.advance(EstepSubmitted)
	return nil
}

func stage(p *script.Pipeline, name string) (script.Stage, error) {
	s, ok := p.Stage(name)
	if !ok {
		return script.Stage{}, errors.E(errors.Precondition, fmt.Sprintf("%s: internal error: no %s stage", p.Config.Name(), name))
	}
	return s, nil
}

// RunBlocking runs a blocking stage to completion and returns the index
// artifact it leaves behind. A missing index is generated from the reference
// FASTA before the stage runs, or after it if the FASTA only exists then.
func (o *Orchestrator) RunBlocking(ctx context.Context, p *script.Pipeline, s script.Stage) (string, error) {
	if s.Kind != script.Blocking {
		return "", errors.E(errors.Precondition, fmt.Sprintf("%s: stage %s is not blocking", p.Config.Name(), s.Name))
	}
	// Setup reads the index it is given with -r.
	if missing(p.IndexPath) && !missing(p.Reference) {
		if err := o.index(ctx, p, "before "+s.Name); err != nil {
			return "", err
		}
	}
	log.Printf("%s: run %s: %s", p.Config.Name(), s.Name, s.Script)
	stdout, stderr, err := o.runner.Run(ctx, s.Script, p.Config.Dir)
	if p.LogDir != "" {
		if e := writeLog(ctx, filepath.Join(p.LogDir, s.Name+".stdout"), stdout); e != nil && err == nil {
			err = e
		}
		if e := writeLog(ctx, filepath.Join(p.LogDir, s.Name+".stderr"), stderr); e != nil && err == nil {
			err = e
		}
	}
	if err != nil {
		return "", errors.E(err, fmt.Sprintf("%s: %s", p.Config.Name(), s.Name))
	}
	if _, err := os.Stat(p.IndexPath); os.IsNotExist(err) {
		if err := o.index(ctx, p, "after "+s.Name); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", errors.E(err, "stat", p.IndexPath)
	}
	return p.IndexPath, nil
}

func (o *Orchestrator) index(ctx context.Context, p *script.Pipeline, when string) error {
	log.Printf("%s: %s missing %s, indexing %s", p.Config.Name(), p.IndexPath, when, p.Reference)
	return faidx.GenerateFile(ctx, p.Reference, p.IndexPath)
}

func missing(path string) bool {
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}

// SubmitAsync submits a scheduled stage. fanout is the task count used by
// ArrayFromIndex stages. holdOn must be the job of the stage named by s.Hold,
// or nil if s has no predecessor.
func (o *Orchestrator) SubmitAsync(ctx context.Context, p *script.Pipeline, s script.Stage, fanout int, holdOn *qsub.JobHandle) (qsub.JobHandle, error) {
	name := p.Config.Name()
	if s.Kind != script.Async {
		return qsub.JobHandle{}, errors.E(errors.Precondition, fmt.Sprintf("%s: stage %s is not scheduled", name, s.Name))
	}
	switch {
	case s.Hold == "" && holdOn != nil:
		return qsub.JobHandle{}, errors.E(errors.Precondition,
			fmt.Sprintf("%s: internal error: stage %s has no predecessor but holds on %s", name, s.Name, holdOn))
	case s.Hold != "" && (holdOn == nil || holdOn.Stage != s.Hold):
		return qsub.JobHandle{}, errors.E(errors.Precondition,
			fmt.Sprintf("%s: internal error: stage %s must hold on %s, got %v", name, s.Name, s.Hold, holdOn))
	}
	sub := qsub.Submission{
		Stage:       s.Name,
		Script:      s.Script,
		Queue:       o.settings.Scheduler.Queue,
		ParallelEnv: o.settings.Scheduler.ParallelEnv,
		Cores:       o.settings.Scheduler.Cores,
	}
	switch s.Array {
	case script.ArrayFixed:
		sub.Tasks = &qsub.TaskRange{First: 1, Last: s.Tasks}
	case script.ArrayFromIndex:
		sub.Tasks = &qsub.TaskRange{First: 1, Last: fanout}
	}
	if sub.Tasks != nil && sub.Tasks.Last < 1 {
		return qsub.JobHandle{}, errors.E(errors.Invalid, fmt.Sprintf("%s: stage %s: empty task range %s", name, s.Name, sub.Tasks))
	}
	if holdOn != nil {
		sub.HoldJobID = holdOn.ID
	}
	if p.LogDir == "" {
		sub.Name = name
		sub.Stdout = filepath.Join(p.Config.Dir, "stdout.log")
		sub.Stderr = filepath.Join(p.Config.Dir, "stderr.log")
	} else {
		sub.Name = name + "_" + s.Name
		suffix := ""
		if sub.Tasks != nil {
			suffix = ".$TASK_ID"
		}
		sub.Stdout = filepath.Join(p.LogDir, s.Name+suffix+".stdout")
		sub.Stderr = filepath.Join(p.LogDir, s.Name+suffix+".stderr")
	}
	h, err := o.client.Submit(ctx, sub)
	if err != nil {
		return qsub.JobHandle{}, err
	}
	log.Printf("%s: %s submitted as job %s", name, s.Name, h)
	return h, nil
}

func writeLog(ctx context.Context, path, data string) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create log", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if _, err = out.Writer(ctx).Write([]byte(data)); err != nil {
		return errors.E(err, "write log", path)
	}
	return nil
}
