package pipeline

import (
	"context"

	"github.com/pkg/errors"
	"v.io/x/lib/gosh"
)

// Runner runs a script locally and waits for it to exit. dir is the
// configuration directory the script belongs to.
type Runner interface {
	Run(ctx context.Context, script, dir string) (stdout, stderr string, err error)
}

// ShellRunner runs scripts as child processes. Scripts change to their
// configuration directory themselves, so dir is not used.
type ShellRunner struct{}

// Run implements Runner.
func (ShellRunner) Run(ctx context.Context, script, dir string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	sh := gosh.NewShell(nil)
	sh.ContinueOnError = true
	defer sh.Cleanup()
	stdout, stderr := sh.Cmd(script).StdoutStderr()
	if sh.Err != nil {
		return stdout, stderr, errors.Wrapf(sh.Err, "run %s", script)
	}
	return stdout, stderr, nil
}
