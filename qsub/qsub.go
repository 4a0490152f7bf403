// Package qsub submits scripts to a Grid Engine scheduler.
//
// A submission returns as soon as the scheduler acknowledges it. Ordering
// between jobs is expressed with hold predicates (-hold_jid) and is enforced
// by the scheduler itself; nothing here waits for a job to run.
package qsub

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
	"v.io/x/lib/envvar"
	"v.io/x/lib/gosh"
	"v.io/x/lib/lookpath"
)

// TaskRange is the 1-based, inclusive task range of an array job.
type TaskRange struct {
	First, Last int
}

// Len returns the number of tasks.
func (r TaskRange) Len() int { return r.Last - r.First + 1 }

func (r TaskRange) String() string { return fmt.Sprintf("%d-%d", r.First, r.Last) }

// Submission describes one qsub invocation.
type Submission struct {
	// Stage is the pipeline stage the job runs. It is recorded in the
	// returned JobHandle.
	Stage  string
	Script string
	Name   string
	Queue  string
	Stdout string
	Stderr string
	// ParallelEnv and Cores request a parallel environment slot count. Cores
	// <= 0 omits the request.
	ParallelEnv string
	Cores       int
	// Tasks makes the job an array job. Nil for a plain job.
	Tasks *TaskRange
	// HoldJobID, if set, defers the job until that job (every task of it,
	// for an array job) has completed.
	HoldJobID string
}

// Args returns the qsub command-line arguments, script last.
func (s Submission) Args() []string {
	args := []string{"-o", s.Stdout, "-e", s.Stderr}
	if s.Cores > 0 {
		args = append(args, "-pe", s.ParallelEnv, strconv.Itoa(s.Cores))
	}
	args = append(args, "-N", s.Name, "-q", s.Queue)
	if s.Tasks != nil {
		args = append(args, "-t", s.Tasks.String())
	}
	if s.HoldJobID != "" {
		args = append(args, "-hold_jid", s.HoldJobID)
	}
	return append(args, s.Script)
}

// JobHandle identifies an accepted job. Tasks is 1 for a plain job.
type JobHandle struct {
	ID    string
	Stage string
	Tasks int
}

func (h JobHandle) String() string {
	if h.Tasks > 1 {
		return fmt.Sprintf("%s[%s, %d tasks]", h.ID, h.Stage, h.Tasks)
	}
	return fmt.Sprintf("%s[%s]", h.ID, h.Stage)
}

// JobSubmissionError is returned when a job could not be submitted or the
// scheduler's acknowledgement held no job identifier.
type JobSubmissionError struct {
	Job      string
	Response string
	Err      error
}

func (e *JobSubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submit %s: %v", e.Job, e.Err)
	}
	return fmt.Sprintf("submit %s: no job id in scheduler response %q", e.Job, e.Response)
}

// Grid Engine acknowledges with
//
//   Your job 4242 ("name") has been submitted
//   Your job-array 4242.1-3:1 ("name") has been submitted
var ackRegExp = regexp.MustCompile(`Your job(?:-array)? (\d+)(?:\.\d+-\d+:\d+)? \(".*"\) has been submitted`)

// ParseJobID extracts the job identifier from a qsub acknowledgement.
func ParseJobID(text string) (string, error) {
	m := ackRegExp.FindStringSubmatch(text)
	if m == nil {
		return "", &JobSubmissionError{Response: strings.TrimSpace(text)}
	}
	return m[1], nil
}

// Client submits jobs.
type Client interface {
	Submit(ctx context.Context, s Submission) (JobHandle, error)
}

// GridEngine is a Client that runs the qsub executable.
type GridEngine struct {
	// Qsub is the path of the qsub executable.
	Qsub string
}

// NewGridEngine resolves qsub, a name or path, against $PATH.
func NewGridEngine(qsub string) (*GridEngine, error) {
	if filepath.IsAbs(qsub) {
		return &GridEngine{Qsub: qsub}, nil
	}
	path, err := lookpath.Look(envvar.SliceToMap(os.Environ()), qsub)
	if err != nil {
		return nil, errors.Wrapf(err, "find %s", qsub)
	}
	return &GridEngine{Qsub: path}, nil
}

// Submit implements Client.
func (g *GridEngine) Submit(ctx context.Context, s Submission) (JobHandle, error) {
	if err := ctx.Err(); err != nil {
		return JobHandle{}, &JobSubmissionError{Job: s.Name, Err: err}
	}
	args := s.Args()
	log.Printf("submit command: %s %s", g.Qsub, strings.Join(args, " "))
	sh := gosh.NewShell(nil)
	sh.ContinueOnError = true
	defer sh.Cleanup()
	stdout, stderr := sh.Cmd(g.Qsub, args...).StdoutStderr()
	if sh.Err != nil {
		return JobHandle{}, &JobSubmissionError{
			Job:      s.Name,
			Response: strings.TrimSpace(stderr),
			Err:      errors.Wrapf(sh.Err, "%s: %s", g.Qsub, strings.TrimSpace(stderr)),
		}
	}
	return handle(s, stdout)
}

// handle builds the JobHandle of s from the scheduler's acknowledgement.
func handle(s Submission, ack string) (JobHandle, error) {
	id, err := ParseJobID(ack)
	if err != nil {
		err.(*JobSubmissionError).Job = s.Name
		return JobHandle{}, err
	}
	h := JobHandle{ID: id, Stage: s.Stage, Tasks: 1}
	if s.Tasks != nil {
		h.Tasks = s.Tasks.Len()
	}
	return h, nil
}
