package qsub

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobID(t *testing.T) {
	tests := []struct {
		ack  string
		want string
	}{
		{`Your job 4242 ("CaVEMan_1_merge_splits") has been submitted`, "4242"},
		{"Your job 7 (\"benchmark_script.sh\") has been submitted\n", "7"},
		{`Your job-array 1234567.1-3:1 ("CaVEMan_1_split") has been submitted`, "1234567"},
		{`Your job-array 99.1-25:1 ("x y") has been submitted`, "99"},
		{"warning: no suitable queues\nYour job 11 (\"a\") has been submitted\n", "11"},
	}
	for _, tt := range tests {
		got, err := ParseJobID(tt.ack)
		assert.NoError(t, err, tt.ack)
		expect.EQ(t, got, tt.want)
	}
}

func TestParseJobIDErrors(t *testing.T) {
	for _, ack := range []string{
		"",
		"Unable to run job: Job was rejected because job requests unknown queue \"nope.qc\".",
		`Your job abc ("x") has been submitted`,
		"Submitted batch job 123",
	} {
		_, err := ParseJobID(ack)
		serr, ok := err.(*JobSubmissionError)
		require.True(t, ok, "%q: %v", ack, err)
		assert.Nil(t, serr.Err)
	}
}

func TestArgs(t *testing.T) {
	s := Submission{
		Script:      "/out/CaVEMan/config_1/benchmark_mstep.sh",
		Name:        "CaVEMan_1_mstep",
		Queue:       "short.qc",
		Stdout:      "/out/qsub/mstep.o",
		Stderr:      "/out/qsub/mstep.e",
		ParallelEnv: "shmem",
		Cores:       4,
		Tasks:       &TaskRange{1, 3},
		HoldJobID:   "4242",
	}
	assert.Equal(t, []string{
		"-o", "/out/qsub/mstep.o", "-e", "/out/qsub/mstep.e",
		"-pe", "shmem", "4", "-N", "CaVEMan_1_mstep", "-q", "short.qc",
		"-t", "1-3", "-hold_jid", "4242",
		"/out/CaVEMan/config_1/benchmark_mstep.sh",
	}, s.Args())

	s = Submission{Script: "run.sh", Name: "n", Queue: "q", Stdout: "o", Stderr: "e"}
	assert.Equal(t, []string{"-o", "o", "-e", "e", "-N", "n", "-q", "q", "run.sh"}, s.Args())
}

func TestDryRun(t *testing.T) {
	ctx := context.Background()
	d := &DryRun{First: 100}
	h, err := d.Submit(ctx, Submission{Stage: "split", Name: "a", Tasks: &TaskRange{1, 5}})
	require.NoError(t, err)
	assert.Equal(t, JobHandle{ID: "100", Stage: "split", Tasks: 5}, h)
	h, err = d.Submit(ctx, Submission{Stage: "merge_splits", Name: "b", HoldJobID: "100"})
	require.NoError(t, err)
	assert.Equal(t, JobHandle{ID: "101", Stage: "merge_splits", Tasks: 1}, h)
	assert.Len(t, d.Submissions, 2)
}

func TestGridEngine(t *testing.T) {
	ctx := context.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	// A stand-in qsub that echoes its arguments in an acknowledgement.
	fake := filepath.Join(tmpdir, "qsub")
	require.NoError(t, ioutil.WriteFile(fake, []byte("#!/bin/sh\necho \"Your job 31337 (\\\"$*\\\") has been submitted\"\n"), 0755))
	g, err := NewGridEngine(fake)
	require.NoError(t, err)
	h, err := g.Submit(ctx, Submission{Stage: "run", Script: "run.sh", Name: "n", Queue: "q", Stdout: "o", Stderr: "e"})
	require.NoError(t, err)
	assert.Equal(t, JobHandle{ID: "31337", Stage: "run", Tasks: 1}, h)

	bad := filepath.Join(tmpdir, "qsub-bad")
	require.NoError(t, ioutil.WriteFile(bad, []byte("#!/bin/sh\necho 'queue is disabled'\n"), 0755))
	g = &GridEngine{Qsub: bad}
	_, err = g.Submit(ctx, Submission{Stage: "run", Script: "run.sh", Name: "n", Queue: "q", Stdout: "o", Stderr: "e"})
	serr, ok := err.(*JobSubmissionError)
	require.True(t, ok, "err: %v", err)
	assert.Equal(t, "n", serr.Job)
	assert.Equal(t, "queue is disabled", serr.Response)

	fail := filepath.Join(tmpdir, "qsub-fail")
	require.NoError(t, ioutil.WriteFile(fail, []byte("#!/bin/sh\necho 'denied' >&2\nexit 1\n"), 0755))
	g = &GridEngine{Qsub: fail}
	_, err = g.Submit(ctx, Submission{Stage: "run", Script: "run.sh", Name: "n", Queue: "q", Stdout: "o", Stderr: "e"})
	serr, ok = err.(*JobSubmissionError)
	require.True(t, ok, "err: %v", err)
	assert.NotNil(t, serr.Err)
}
