package script

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/grailbio/varbench/catalog"
	"github.com/grailbio/varbench/params"
	"github.com/grailbio/varbench/settings"
)

type entry = params.Entry

type renderContext struct {
	settings settings.Settings
	desc     catalog.Descriptor
	cfg      *catalog.Configuration
	in       Inputs
	dir      string
	pipeline *Pipeline
}

func (rc *renderContext) path(name string) string {
	return filepath.Join(rc.dir, name)
}

// toolEntries returns the entries of a single-script tool: those without a
// CaVEMan stage prefix.
func (rc *renderContext) toolEntries() []entry {
	return rc.cfg.Params.Unscoped(Stages(catalog.CaVEMan)...)
}

// ignored returns the entries of cfg that no stage of its pipeline reads.
func ignored(cfg *catalog.Configuration) []entry {
	stages := Stages(catalog.CaVEMan)
	if !cfg.Tool.MultiStage() {
		var r []entry
		for _, e := range cfg.Params.Entries() {
			st, _ := e.Stage()
			for _, name := range stages {
				if st == name {
					r = append(r, e)
					break
				}
			}
		}
		return r
	}
	// merge_splits is plain shell and takes no parameters.
	routed := map[string]bool{}
	for _, name := range stages {
		if name != StageMergeSplits {
			routed[name] = true
		}
	}
	var r []entry
	for _, e := range cfg.Params.Entries() {
		if st, _ := e.Stage(); !routed[st] {
			r = append(r, e)
		}
	}
	return r
}

func (rc *renderContext) javaJar() string {
	return fmt.Sprintf("%s -Xmx%s -jar %s", rc.settings.Java, rc.settings.JavaHeap, rc.desc.Executable)
}

type renderKey struct {
	tool  catalog.Tool
	stage string
}

type renderFunc func(rc *renderContext) (string, error)

// renderers holds one command renderer per (tool, stage). Each returns the
// script body that follows the shared prolog.
var renderers = map[renderKey]renderFunc{
	{catalog.MuTect2, StageRun}: renderMuTect2,
	{catalog.Strelka, StageRun}: renderStrelka,
	{catalog.Virmid, StageRun}:  renderVirmid,
	{catalog.EBCall, StageRun}:  renderEBCall,
	{catalog.VarScan, StageRun}: renderVarScan,

	{catalog.CaVEMan, StageSetup}:       renderCaVEManSetup,
	{catalog.CaVEMan, StageSplit}:       cavemanTaskStep(StageSplit),
	{catalog.CaVEMan, StageMergeSplits}: renderCaVEManMergeSplits,
	{catalog.CaVEMan, StageMstep}:       cavemanTaskStep(StageMstep),
	{catalog.CaVEMan, StageMerge}:       renderCaVEManMerge,
	{catalog.CaVEMan, StageEstep}:       cavemanTaskStep(StageEstep),
}

const filterSummaryAwk = `awk '$0 ~ /^[^#]/ {nFilters = split($7,filters,";"); for (i = 0; i < nFilters; ++i) {print filters[i+1]} }'`

func renderMuTect2(rc *renderContext) (string, error) {
	vcf := rc.path("output.vcf")
	cmd := fmt.Sprintf("%s -T MuTect2 -R %s -I:tumor %s -I:normal %s --dbsnp %s --cosmic %s -o %s -U ALLOW_SEQ_DICT_INCOMPATIBILITY%s\n",
		rc.javaJar(), rc.in.Reference, rc.in.Tumour, rc.in.Normal,
		rc.settings.DBSNP, rc.settings.Cosmic, vcf, flags(rc.toolEntries()))
	cmd += fmt.Sprintf("%s %s | sort | uniq -c > %s\n", filterSummaryAwk, vcf, rc.path("filters.txt"))
	return cmd, nil
}

// sedAssign renders a sed command replacing the "key<sep>value" line of a
// configuration file.
func sedAssign(key, sep, value, path string) string {
	return fmt.Sprintf("sed -i 's|^%s%s.*$|%s%s%s # edited|' %s\n", key, sep, key, sep, value, path)
}

func renderStrelka(rc *renderContext) (string, error) {
	config := rc.path("strelka_config.ini")
	const analysis = "analysis"
	var b strings.Builder
	fmt.Fprintf(&b, "cp %s %s\n", rc.desc.Template, config)
	for _, e := range rc.toolEntries() {
		b.WriteString(sedAssign(e.Key, " = ", e.Value, config))
	}
	fmt.Fprintf(&b, "%s --normal %s --tumor %s --ref %s --config %s --output-dir %s\n",
		rc.desc.Executable, rc.in.Normal, rc.in.Tumour, rc.in.Reference, config, rc.path(analysis))
	fmt.Fprintf(&b, "cd %s\n", analysis)
	b.WriteString("make\n")
	return b.String(), nil
}

func renderVirmid(rc *renderContext) (string, error) {
	return fmt.Sprintf("%s -R %s -D %s -N %s -w %s%s\n",
		rc.javaJar(), rc.in.Reference, rc.in.Tumour, rc.in.Normal, rc.dir,
		flags(rc.toolEntries())), nil
}

func renderEBCall(rc *renderContext) (string, error) {
	config := rc.path("EBcall_config.sh")
	var b strings.Builder
	fmt.Fprintf(&b, "cp %s %s\n", rc.desc.Template, config)
	b.WriteString(sedAssign("PATH_TO_REF", "=", rc.in.Reference, config))
	b.WriteString(sedAssign("PATH_TO_SAMTOOLS", "=", filepath.Dir(rc.settings.Samtools), config))
	b.WriteString(sedAssign("PATH_TO_R", "=", rc.settings.RDir, config))
	for _, e := range rc.toolEntries() {
		b.WriteString(sedAssign(e.Key, "=", e.Value, config))
	}
	fmt.Fprintf(&b, "sh %s %s %s %s %s %s\n",
		rc.desc.Executable, rc.in.Tumour, rc.in.Normal, rc.path("analysis"), rc.settings.NormalPanel, config)
	return b.String(), nil
}

func renderVarScan(rc *renderContext) (string, error) {
	return fmt.Sprintf("%s mpileup -f %s %s %s | %s somatic %s --mpileup 1%s\n",
		rc.settings.Samtools, rc.in.Reference, rc.in.Normal, rc.in.Tumour,
		rc.javaJar(), rc.path("output"), flags(rc.toolEntries())), nil
}

// CaVEMan files shared by all stages of a configuration.
const (
	cavemanConfig    = "caveman.cfg.ini"
	cavemanSplitList = "splitList"
	cavemanAlgBean   = "alg_bean"
	cavemanResults   = "results"
)

// setupPath returns the value of setup:<flag> if given, else the default
// file name within the configuration directory. Later stages use it so that
// they read what setup wrote.
func (rc *renderContext) setupPath(flag, name string) string {
	if e, ok := rc.cfg.Params.Get(StageSetup + ":" + flag); ok && e.HasValue {
		return e.Value
	}
	return rc.path(name)
}

// taskIDVar is the Grid Engine variable holding the 1-based array task index.
const taskIDVar = "$SGE_TASK_ID"

func renderCaVEManSetup(rc *renderContext) (string, error) {
	if !rc.cfg.Params.Has(catalog.IgnoreRegionsFlag) {
		return "", &MissingRequiredFlagError{Tool: rc.cfg.Tool, Flag: catalog.IgnoreRegionsFlag}
	}
	stage := rc.cfg.Params.Stage(StageSetup)
	// Base flags yield to the same flag given as a setup parameter.
	base := []entry{
		{Key: "-t", Value: rc.in.Tumour, HasValue: true},
		{Key: "-n", Value: rc.in.Normal, HasValue: true},
		{Key: "-r", Value: rc.pipeline.IndexPath, HasValue: true},
		{Key: "-c", Value: rc.setupPath("-c", cavemanConfig), HasValue: true},
		{Key: "-l", Value: rc.setupPath("-l", cavemanSplitList), HasValue: true},
		{Key: "-a", Value: rc.path(cavemanAlgBean), HasValue: true},
		{Key: "-f", Value: rc.path(cavemanResults), HasValue: true},
	}
	given := map[string]bool{}
	for _, e := range stage {
		given[e.Key] = true
	}
	var all []entry
	for _, e := range base {
		if !given[e.Key] {
			all = append(all, e)
		}
	}
	all = append(all, stage...)
	return fmt.Sprintf("%s setup%s\n", rc.desc.Executable, flags(all)), nil
}

func cavemanTaskStep(stage string) renderFunc {
	return func(rc *renderContext) (string, error) {
		return fmt.Sprintf("%s %s -i %s -c %s%s\n",
			rc.desc.Executable, stage, taskIDVar, rc.setupPath("-c", cavemanConfig),
			flags(rc.cfg.Params.Stage(stage))), nil
	}
}

func renderCaVEManMergeSplits(rc *renderContext) (string, error) {
	list := rc.setupPath("-l", cavemanSplitList)
	return fmt.Sprintf("cat %s.* > %s\n", list, list), nil
}

func renderCaVEManMerge(rc *renderContext) (string, error) {
	return fmt.Sprintf("%s merge -c %s%s\n",
		rc.desc.Executable, rc.setupPath("-c", cavemanConfig), flags(rc.cfg.Params.Stage(StageMerge))), nil
}
