// Package catalog reads a benchmark catalog and lays out its output tree.
//
// A catalog is a text file with one configuration per line:
//
//   <tool keyword> TAB <parameter spec>
//
// The parameter spec is optional; a line holding only a tool keyword runs
// that tool with its default settings. Blank lines are skipped. The tool
// keyword is one of MuTect2, Strelka, Virmid, EBCall, VarScan or CaVEMan. See
// package params for the parameter spec syntax.
//
// Configurations are numbered per tool, starting at 1, in file order. The
// output tree is
//
//   <root>/<tool>/config_<ordinal>/
//
// and each configuration directory holds a listing of its parameters,
// benchmark_config.txt, written before any script is generated.
package catalog

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/varbench/params"
	"github.com/grailbio/varbench/settings"
)

// IgnoreRegionsFlag is the CaVEMan setup flag naming the ignore-regions
// file. CaVEMan requires it; an empty sentinel file is used when a
// configuration leaves it out.
const IgnoreRegionsFlag = "setup:-g"

// UnknownToolError is returned for a catalog line whose tool keyword is not
// one of the supported tools.
type UnknownToolError struct {
	Line    int
	Keyword string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("line %d: unknown tool keyword %q", e.Line, e.Keyword)
}

// Configuration is one parameterization of one tool.
type Configuration struct {
	Tool Tool
	// Ordinal is the 1-based position of the configuration among those of
	// the same tool.
	Ordinal int
	Params  *params.Set
	// Dir is the configuration's output directory. It is empty until
	// Catalog.MakeDirs runs.
	Dir string
}

// Name returns "<tool>_<ordinal>", used for job names.
func (c *Configuration) Name() string {
	return fmt.Sprintf("%s_%d", c.Tool, c.Ordinal)
}

// DirName returns the name of the configuration directory, config_<ordinal>.
func (c *Configuration) DirName() string {
	return fmt.Sprintf("config_%d", c.Ordinal)
}

// Catalog holds configurations grouped by tool.
type Catalog struct {
	settings settings.Settings
	tools    []Tool
	configs  map[Tool][]*Configuration
}

// New returns an empty catalog. s supplies tool-specific defaults.
func New(s settings.Settings) *Catalog {
	return &Catalog{settings: s, configs: map[Tool][]*Configuration{}}
}

// Parse reads a catalog. Errors are *params.ParseError or *UnknownToolError,
// both carrying the 1-based line number.
func Parse(r io.Reader, s settings.Settings) (*Catalog, error) {
	c := New(s)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	nLine := 0
	for scanner.Scan() {
		nLine++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		var spec string
		switch len(fields) {
		case 1:
			log.Debug.Printf("line %d: no parameters, default settings apply", nLine)
		case 2:
			spec = fields[1]
		default:
			return nil, &params.ParseError{
				Line: nLine,
				Spec: line,
				Msg:  fmt.Sprintf("expect 1 or 2 TAB-separated fields, found %d", len(fields)),
			}
		}
		tool, ok := ParseTool(fields[0])
		if !ok {
			return nil, &UnknownToolError{Line: nLine, Keyword: fields[0]}
		}
		p, err := params.Parse(spec)
		if err != nil {
			err.(*params.ParseError).Line = nLine
			return nil, err
		}
		log.Debug.Printf("line %d: %s, %d parameters", nLine, tool, p.Len())
		c.Add(tool, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	log.Printf("%d lines parsed, %d configurations imported", nLine, c.Len())
	return c, nil
}

// Add appends a configuration for tool and returns it. Tool-specific
// mandatory defaults are injected into p if absent.
func (c *Catalog) Add(tool Tool, p *params.Set) *Configuration {
	if tool == CaVEMan && p.SetDefault(IgnoreRegionsFlag, c.settings.EmptyIgnoreRegions) {
		log.Debug.Printf("%s: %s defaults to %s", tool, IgnoreRegionsFlag, c.settings.EmptyIgnoreRegions)
	}
	if _, ok := c.configs[tool]; !ok {
		c.tools = append(c.tools, tool)
	}
	cfg := &Configuration{Tool: tool, Ordinal: len(c.configs[tool]) + 1, Params: p}
	c.configs[tool] = append(c.configs[tool], cfg)
	return cfg
}

// Tools returns the tools present, in order of first appearance.
func (c *Catalog) Tools() []Tool {
	return append([]Tool(nil), c.tools...)
}

// Configurations returns the configurations of tool in ordinal order.
func (c *Catalog) Configurations(tool Tool) []*Configuration {
	return c.configs[tool]
}

// All returns every configuration, grouped by tool in order of first
// appearance, then by ordinal.
func (c *Catalog) All() []*Configuration {
	var all []*Configuration
	for _, t := range c.tools {
		all = append(all, c.configs[t]...)
	}
	return all
}

// Len returns the number of configurations.
func (c *Catalog) Len() int {
	n := 0
	for _, cfgs := range c.configs {
		n += len(cfgs)
	}
	return n
}
