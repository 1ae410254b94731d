package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/fieldcore/cyclerd/catalog"
	"github.com/fieldcore/cyclerd/pathx"
)

// Manifest is the YAML-authored node graph: one entry per node declaration,
// independent of the Go types that back its fields. A Manifest is turned
// into []catalog.NodeDecl once the process has registered its output/
// parameter root types with a dictionary.Dictionary, at which point
// catalog.Build can validate it.
type Manifest struct {
	Nodes []NodeManifest `yaml:"nodes"`
	// Cyclers optionally names each cycler's Kind ("realtime" or
	// "perception"); a cycler absent from this list defaults to realtime.
	Cyclers []CyclerManifest `yaml:"cyclers,omitempty"`
}

// CyclerManifest is one cycler instance's kind, as authored in the
// manifest file.
type CyclerManifest struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // "realtime" or "perception"
}

// KindOf returns the declared Kind for cycler name, defaulting to
// "realtime" if the manifest does not mention it.
func (m *Manifest) KindOf(name string) string {
	for _, c := range m.Cyclers {
		if c.Name == name && c.Kind != "" {
			return c.Kind
		}
	}
	return "realtime"
}

// NodeManifest is one node's declaration as authored in the manifest file.
type NodeManifest struct {
	Name            string           `yaml:"name"`
	Cycler          string           `yaml:"cycler"`
	Phase           string           `yaml:"phase"` // "setup" or "cycle"
	CreationContext []FieldManifest  `yaml:"creation_context,omitempty"`
	CycleContext    []FieldManifest  `yaml:"cycle_context,omitempty"`
	MainOutputs     []string         `yaml:"main_outputs,omitempty"`
}

// FieldManifest is one context field as authored in the manifest file.
type FieldManifest struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"` // a catalog.FieldKind name; case, '_', '-' and spaces are ignored, and Input(own)/Input(cross) are written input_own/input_cross
	Path       string `yaml:"path,omitempty"`
	Cross      bool   `yaml:"cross,omitempty"`
	FromCycler string `yaml:"from_cycler,omitempty"`
}

// ParseManifest unmarshals raw YAML bytes into a Manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: parse manifest: %w", err)
	}
	return &m, nil
}

var fieldKindByName = map[string]catalog.FieldKind{
	"parameter":         catalog.Parameter,
	"cyclerstate":       catalog.CyclerState,
	"mainoutput":        catalog.MainOutput,
	"inputown":          catalog.InputOwn,
	"inputcross":        catalog.InputCross,
	"requiredinput":     catalog.RequiredInput,
	"historicinput":     catalog.HistoricInput,
	"perceptioninput":   catalog.PerceptionInput,
	"additionaloutput":  catalog.AdditionalOutput,
	"hardwareinterface": catalog.HardwareInterface,
}

// ToNodeDecls converts every NodeManifest into a catalog.NodeDecl, parsing
// each field's dotted path via pathx.Parse. Parse/lookup failures are
// collected rather than short-circuited, matching catalog.Build's own
// accumulate-all-errors style.
func (m *Manifest) ToNodeDecls() ([]catalog.NodeDecl, error) {
	var errs catalog.Errors
	decls := make([]catalog.NodeDecl, 0, len(m.Nodes))

	for _, nm := range m.Nodes {
		phase := catalog.Cycle
		switch nm.Phase {
		case "setup":
			phase = catalog.Setup
		case "cycle", "":
			phase = catalog.Cycle
		default:
			errs = append(errs, &catalog.Error{Node: nm.Name, Msg: fmt.Sprintf("unknown phase %q", nm.Phase)})
		}

		creation, cerrs := convertFields(nm.Name, nm.CreationContext)
		errs = append(errs, cerrs...)
		cycle, ferrs := convertFields(nm.Name, nm.CycleContext)
		errs = append(errs, ferrs...)

		decls = append(decls, catalog.NodeDecl{
			Name:            nm.Name,
			Cycler:          nm.Cycler,
			Phase:           phase,
			CreationContext: creation,
			CycleContext:    cycle,
			MainOutputs:     nm.MainOutputs,
		})
	}

	if len(errs) > 0 {
		return decls, errs
	}
	return decls, nil
}

func convertFields(node string, fms []FieldManifest) ([]catalog.Field, catalog.Errors) {
	var errs catalog.Errors
	out := make([]catalog.Field, 0, len(fms))

	for _, fm := range fms {
		kind, ok := fieldKindByName[normalizeKind(fm.Kind)]
		if !ok {
			errs = append(errs, &catalog.Error{Node: node, Field: fm.Name, Msg: fmt.Sprintf("unknown field kind %q", fm.Kind)})
			continue
		}

		f := catalog.Field{Name: fm.Name, Kind: kind, Cross: fm.Cross, FromCycler: fm.FromCycler}
		if kind != catalog.HardwareInterface && kind != catalog.MainOutput {
			p, err := pathx.Parse(fm.Path)
			if err != nil {
				errs = append(errs, &catalog.Error{Node: node, Field: fm.Name, Msg: err.Error()})
				continue
			}
			f.Path = p
		}
		out = append(out, f)
	}

	return out, errs
}

func normalizeKind(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || c == '-' || c == ' ' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c = c - 'A' + 'a'
		}
		out = append(out, c)
	}
	return string(out)
}
