// Package settings describes the fixed cluster paths used to render and
// submit benchmark scripts: tool executables, template configurations,
// reference resources and scheduler defaults.
//
// A Settings value is read once at startup and never modified afterwards.
// It is passed explicitly to the script composer and to the orchestrator.
package settings

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"gopkg.in/yaml.v3"
)

// Tool holds the paths for one variant caller.
type Tool struct {
	// Executable is the program, jar or driver script.
	Executable string `yaml:"executable"`
	// Template is the configuration file copied and edited per
	// configuration. Only Strelka and EBCall use one.
	Template string `yaml:"template,omitempty"`
}

// Scheduler holds the Grid Engine submission defaults.
type Scheduler struct {
	Qsub        string `yaml:"qsub"`
	Queue       string `yaml:"queue"`
	ParallelEnv string `yaml:"parallel_env"`
	Cores       int    `yaml:"cores"`
}

// Settings is the full set of cluster paths.
type Settings struct {
	BaseDir    string `yaml:"base_dir"`
	ToolsDir   string `yaml:"tools_dir"`
	RefBedsDir string `yaml:"ref_beds_dir"`

	Java     string `yaml:"java"`
	JavaHeap string `yaml:"java_heap"`
	Samtools string `yaml:"samtools"`
	RDir     string `yaml:"r_dir"`

	// EmptyIgnoreRegions is an empty file passed to CaVEMan setup when a
	// configuration does not name an ignore-regions file.
	EmptyIgnoreRegions string `yaml:"empty_ignore_regions"`
	// NormalPanel lists unpaired normal BAMs for EBCall.
	NormalPanel string `yaml:"normal_panel"`
	DBSNP       string `yaml:"dbsnp"`
	Cosmic      string `yaml:"cosmic"`

	MuTect2 Tool `yaml:"mutect2"`
	Strelka Tool `yaml:"strelka"`
	Virmid  Tool `yaml:"virmid"`
	EBCall  Tool `yaml:"ebcall"`
	VarScan Tool `yaml:"varscan"`
	CaVEMan Tool `yaml:"caveman"`

	Scheduler Scheduler `yaml:"scheduler"`
}

// DefaultBaseDir is the pipeline directory of the original cluster layout.
const DefaultBaseDir = "/gpfs2/well/ratcliff/pipeline"

// Default returns the settings rooted at base. Paths not otherwise configured
// are derived from base/tools and base/ref_beds.
func Default(base string) Settings {
	tools := filepath.Join(base, "tools")
	beds := filepath.Join(base, "ref_beds")
	return Settings{
		BaseDir:            base,
		ToolsDir:           tools,
		RefBedsDir:         beds,
		Java:               "java",
		JavaHeap:           "25g",
		Samtools:           filepath.Join(tools, "samtools", "samtools"),
		RDir:               filepath.Join(tools, "R", "bin"),
		EmptyIgnoreRegions: filepath.Join(beds, "empty.bed"),
		NormalPanel:        filepath.Join(beds, "normal_panel.txt"),
		DBSNP:              filepath.Join(beds, "known.vcf"),
		Cosmic:             filepath.Join(beds, "Cosmic.vcf"),
		MuTect2:            Tool{Executable: filepath.Join(tools, "GATK", "GenomeAnalysisTK.jar")},
		Strelka: Tool{
			Executable: filepath.Join(tools, "strelka", "bin", "configureStrelkaWorkflow.pl"),
			Template:   filepath.Join(tools, "strelka", "etc", "strelka_config_bwa_default.ini"),
		},
		Virmid: Tool{Executable: filepath.Join(tools, "virmid", "Virmid.jar")},
		EBCall: Tool{
			Executable: filepath.Join(tools, "EBCall", "ebCall_v2.sh"),
			Template:   filepath.Join(tools, "EBCall", "config.sh"),
		},
		VarScan: Tool{Executable: filepath.Join(tools, "VarScan", "VarScan.jar")},
		CaVEMan: Tool{Executable: filepath.Join(tools, "CaVEMan", "bin", "caveman")},
		Scheduler: Scheduler{
			Qsub:        "qsub",
			Queue:       "short.qc",
			ParallelEnv: "shmem",
			Cores:       4,
		},
	}
}

// Parse decodes YAML settings on top of Default. If the document sets
// base_dir, derived paths not present in the document follow it.
func Parse(data []byte) (Settings, error) {
	var probe struct {
		BaseDir string `yaml:"base_dir"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return Settings{}, errors.E(errors.Invalid, err, "decode settings")
	}
	base := DefaultBaseDir
	if probe.BaseDir != "" {
		base = probe.BaseDir
	}
	s := Default(base)
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return Settings{}, errors.E(errors.Invalid, err, "decode settings")
	}
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Load reads settings from path. An empty path yields Default(DefaultBaseDir).
func Load(ctx context.Context, path string) (Settings, error) {
	if path == "" {
		return Default(DefaultBaseDir), nil
	}
	f, err := file.Open(ctx, path)
	if err != nil {
		return Settings{}, errors.E(err, "open settings", path)
	}
	data, err := ioutil.ReadAll(f.Reader(ctx))
	if e := f.Close(ctx); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return Settings{}, errors.E(err, "read settings", path)
	}
	s, err := Parse(data)
	if err != nil {
		return Settings{}, errors.E(err, path)
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.Scheduler.Cores < 1 {
		return errors.E(errors.Invalid, "scheduler.cores must be positive")
	}
	if s.Scheduler.Queue == "" {
		return errors.E(errors.Invalid, "scheduler.queue must be set")
	}
	if s.EmptyIgnoreRegions == "" {
		return errors.E(errors.Invalid, "empty_ignore_regions must be set")
	}
	return nil
}
