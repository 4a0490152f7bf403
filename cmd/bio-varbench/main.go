// bio-varbench benchmarks somatic variant callers over a catalog of
// configurations.
//
// The catalog is a TAB-separated file. Column 1 is one of MuTect2, Strelka,
// Virmid, EBCall, VarScan or CaVEMan. Column 2 is a ';'-separated list of
// flag=value pairs (or bare toggle flags, CaVEMan only) adapted to the tool's
// command line. CaVEMan flags are prefixed with the pipeline stage they
// belong to, e.g. "setup:-e=350000;mstep:-m=18".
package main

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/cmdline"
)

func newCmdRun() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "run",
		Short:    "Write benchmark scripts and submit them to the scheduler",
		ArgsName: "catalog.tsv outdir reference.fa normal.bam tumour.bam",
	}
	opts := runOpts{}
	cmd.Flags.StringVar(&opts.settingsPath, "settings", "", "YAML file of cluster paths. By default, the built-in cluster layout is used")
	cmd.Flags.BoolVar(&opts.submit, "submit", true, "Submit the scripts. If false, only the output tree and scripts are written")
	cmd.Flags.BoolVar(&opts.dryRun, "dry-run", false, "Log qsub commands instead of running them. CaVEMan setup still runs locally")
	cmd.Flags.BoolVar(&opts.checkInputs, "check-inputs", false, "Check that the BAM headers agree with reference.fa.fai before writing anything")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 5 {
			return fmt.Errorf("run takes catalog.tsv outdir reference.fa normal.bam tumour.bam, but got %v", argv)
		}
		opts.catalogPath, opts.out = argv[0], argv[1]
		opts.inputs.Reference, opts.inputs.Normal, opts.inputs.Tumour = argv[2], argv[3], argv[4]
		return run(vcontext.Background(), opts, env.Stdout)
	})
	return cmd
}

func newCmdCheck() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "check",
		Short:    "Parse a catalog and list its configurations",
		ArgsName: "catalog.tsv",
	}
	settingsPath := cmd.Flags.String("settings", "", "YAML file of cluster paths")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("check takes one catalog path, but got %s", strings.Join(argv, " "))
		}
		return check(vcontext.Background(), *settingsPath, argv[0], env.Stdout)
	})
	return cmd
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-varbench",
			Short:    "Benchmark somatic variant callers on a Grid Engine cluster",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdRun(),
				newCmdCheck(),
			},
		})
}
