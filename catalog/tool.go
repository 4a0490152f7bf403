package catalog

import (
	"fmt"

	"github.com/grailbio/varbench/settings"
)

// Tool identifies one of the supported variant callers.
type Tool int

const (
	ToolInvalid Tool = iota
	MuTect2
	Strelka
	Virmid
	EBCall
	VarScan
	CaVEMan
)

// Tools lists every supported tool.
var Tools = []Tool{MuTect2, Strelka, Virmid, EBCall, VarScan, CaVEMan}

var toolNames = map[Tool]string{
	MuTect2: "MuTect2",
	Strelka: "Strelka",
	Virmid:  "Virmid",
	EBCall:  "EBCall",
	VarScan: "VarScan",
	CaVEMan: "CaVEMan",
}

// ParseTool returns the tool for a catalog keyword. Keywords are case
// sensitive.
func ParseTool(keyword string) (Tool, bool) {
	for _, t := range Tools {
		if toolNames[t] == keyword {
			return t, true
		}
	}
	return ToolInvalid, false
}

// String returns the catalog keyword, which is also the tool's directory
// name in the output tree.
func (t Tool) String() string {
	if name, ok := toolNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tool(%d)", int(t))
}

// MultiStage reports whether the tool runs as a dependent multi-stage
// pipeline rather than a single script. Only multi-stage tools accept toggle
// flags.
func (t Tool) MultiStage() bool { return t == CaVEMan }

// Descriptor is a tool together with its fixed paths.
type Descriptor struct {
	Tool       Tool
	Executable string
	Template   string
}

// Descriptor resolves the tool's paths from s.
func (t Tool) Descriptor(s settings.Settings) Descriptor {
	var p settings.Tool
	switch t {
	case MuTect2:
		p = s.MuTect2
	case Strelka:
		p = s.Strelka
	case Virmid:
		p = s.Virmid
	case EBCall:
		p = s.EBCall
	case VarScan:
		p = s.VarScan
	case CaVEMan:
		p = s.CaVEMan
	default:
		panic(t)
	}
	return Descriptor{Tool: t, Executable: p.Executable, Template: p.Template}
}
