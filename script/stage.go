package script

import (
	"fmt"

	"github.com/grailbio/varbench/catalog"
	"github.com/grailbio/varbench/params"
)

// Kind says how a stage is executed.
type Kind int

const (
	// Blocking stages run locally; the orchestrator waits for them to exit.
	Blocking Kind = iota
	// Async stages are submitted to the scheduler and not waited for.
	Async
)

func (k Kind) String() string {
	switch k {
	case Blocking:
		return "blocking"
	case Async:
		return "async"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ArrayPolicy says how many scheduler tasks a stage runs.
type ArrayPolicy int

const (
	// ArrayNone is a plain, single-task job.
	ArrayNone ArrayPolicy = iota
	// ArrayFixed runs Stage.Tasks tasks.
	ArrayFixed
	// ArrayFromIndex runs one task per record of the pipeline's index
	// artifact.
	ArrayFromIndex
)

// CaVEMan stage names. They double as parameter stage prefixes.
const (
	StageSetup       = "setup"
	StageSplit       = "split"
	StageMergeSplits = "merge_splits"
	StageMstep       = "mstep"
	StageMerge       = "merge"
	StageEstep       = "estep"
)

// StageRun is the name of the only stage of single-script tools.
const StageRun = "run"

// Stage is one executable step of a configuration's pipeline.
type Stage struct {
	Name   string
	Kind   Kind
	Script string
	// Hold names the stage whose job must complete before this one starts.
	// Empty for the first scheduled stage and for blocking stages.
	Hold  string
	Array ArrayPolicy
	// Tasks is the task count of an ArrayFixed stage.
	Tasks int
}

// Pipeline is the ordered list of stages for one configuration.
type Pipeline struct {
	Config *catalog.Configuration
	Stages []Stage
	// IndexPath is the artifact whose record count sizes ArrayFromIndex
	// stages. It is produced or required by the blocking setup stage.
	IndexPath string
	// Reference is the FASTA the index describes.
	Reference string
	// LogDir holds per-task stdout and stderr of scheduled stages.
	LogDir string
	// Ignored lists the parameters that reach no stage's command line:
	// stage-prefixed flags of single-script tools, and CaVEMan flags
	// without a known stage prefix.
	Ignored []params.Entry
}

// Stage returns the named stage.
func (p *Pipeline) Stage(name string) (Stage, bool) {
	for _, s := range p.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

type layout struct {
	name  string
	kind  Kind
	hold  string
	array ArrayPolicy
}

// layouts lists the stages of each tool in execution order. Every hold names
// its predecessor explicitly.
var layouts = map[catalog.Tool][]layout{
	catalog.MuTect2: {{name: StageRun, kind: Async}},
	catalog.Strelka: {{name: StageRun, kind: Async}},
	catalog.Virmid:  {{name: StageRun, kind: Async}},
	catalog.EBCall:  {{name: StageRun, kind: Async}},
	catalog.VarScan: {{name: StageRun, kind: Async}},
	catalog.CaVEMan: {
		{name: StageSetup, kind: Blocking},
		{name: StageSplit, kind: Async, array: ArrayFromIndex},
		{name: StageMergeSplits, kind: Async, hold: StageSplit},
		{name: StageMstep, kind: Async, hold: StageMergeSplits, array: ArrayFromIndex},
		{name: StageMerge, kind: Async, hold: StageMstep},
		{name: StageEstep, kind: Async, hold: StageMerge, array: ArrayFromIndex},
	},
}

// Stages returns the stage names of tool in execution order.
func Stages(tool catalog.Tool) []string {
	var names []string
	for _, l := range layouts[tool] {
		names = append(names, l.name)
	}
	return names
}
