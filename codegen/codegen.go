// Package codegen implements the code generator (component B): it reads a
// resolved catalog.Graph and renders, per cycler instance, a Go source file
// declaring typed Input/Output/Getters/Logic types for every node, a node
// wrapper implementing the RequiredInput guard/defaults policy, a
// <Instance>Runner implementing cycler.Instance's RunSetup/RunCycle over
// those nodes in catalog-resolved order, and the accessor methods for
// AdditionalOutput, HistoricInput and PerceptionInput fields.
//
// Grounded on the teacher's template-driven generation style; the three
// accessor template bodies live under templates/ as separate files so each
// field kind's generated shape can be reviewed independently of the driver
// code here. The node/runner scaffolding is dense enough to stay as direct
// Go-source emission rather than its own templates, matching how the
// teacher's own generators mix small templated fragments into a larger
// hand-assembled file.
package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/fieldcore/cyclerd/catalog"
)

// LoadTemplates parses the three accessor templates out of dir (normally
// the repository's templates/ directory, passed in by cmd/cyclergen rather
// than embedded, so a deployment can override accessor rendering without a
// rebuild).
func LoadTemplates(dir string) (*template.Template, error) {
	t, err := template.New("codegen").ParseGlob(filepath.Join(dir, "*.tmpl"))
	if err != nil {
		return nil, fmt.Errorf("codegen: load templates from %s: %w", dir, err)
	}
	return t, nil
}

// AccessorKind selects which template body renders a field's accessor.
type AccessorKind int

const (
	AdditionalOutputAccessor AccessorKind = iota
	HistoricInputAccessor
	PerceptionInputAccessor
)

func (k AccessorKind) templateName() string {
	switch k {
	case AdditionalOutputAccessor:
		return "additional_output.tmpl"
	case HistoricInputAccessor:
		return "historic_input.tmpl"
	case PerceptionInputAccessor:
		return "perception_input.tmpl"
	}
	return ""
}

// AccessorSpec is one rendered accessor method's template data.
type AccessorSpec struct {
	Kind         AccessorKind
	NodeType     string
	AccessorName string
	Instance     string
	Path         string
	GoType       string
}

// NodeFieldSpec is one gathered context field of a node: everything except
// AdditionalOutput, HistoricInput, PerceptionInput and HardwareInterface,
// which render as accessor methods or a constructor argument instead of a
// per-cycle gathered value.
type NodeFieldSpec struct {
	Name     string
	Kind     catalog.FieldKind
	GoType   string
	Required bool // Kind == catalog.RequiredInput: gates node invocation
}

// NodeOutputSpec is one exported field of a node's generated Output struct,
// derived from one of the node's declared main outputs.
type NodeOutputSpec struct {
	Name   string
	GoType string
}

// NodeSpec is the render plan for one node: its generated Input/Output/
// Getters/Logic/Node types and its position in the setup or cycle phase.
type NodeSpec struct {
	Name    string
	Type    string // exported "<Name>Node" type name
	Phase   string // "setup" or "cycle"
	Fields  []NodeFieldSpec
	Outputs []NodeOutputSpec
}

// CyclerSpec is the full render plan for one cycler's generated file.
// FromGraph derives it from a catalog.CyclerGraph: accessor names come from
// the declared field names, and Go type strings from the graph's resolved
// field and output types.
type CyclerSpec struct {
	Instance  string
	Package   string
	Kind      string // "realtime" or "perception"; defaults to "realtime"
	Setup     []string
	Cycle     []string
	Nodes     []NodeSpec
	Accessors []AccessorSpec
}

// FromGraph builds a CyclerSpec for one named cycler out of a resolved
// catalog.Graph: every node's gathered fields become NodeFieldSpecs on its
// NodeSpec, every AdditionalOutput/HistoricInput/PerceptionInput field
// becomes an AccessorSpec, and every main output becomes a NodeOutputSpec,
// using cg.FieldTypes/cg.OutputTypes for the Go type strings. kind selects
// cycler.RealTime or cycler.Perception for the generated Kind() method;
// an empty kind defaults to "realtime".
func FromGraph(g *catalog.Graph, cyclerName, pkg, kind string) (*CyclerSpec, error) {
	cg, ok := g.Cyclers[cyclerName]
	if !ok {
		return nil, fmt.Errorf("codegen: unknown cycler %q", cyclerName)
	}
	if kind == "" {
		kind = "realtime"
	}

	spec := &CyclerSpec{
		Instance: cg.Name,
		Package:  pkg,
		Kind:     kind,
		Setup:    append([]string{}, cg.Setup...),
		Cycle:    append([]string{}, cg.Cycle...),
	}

	order := make([]string, 0, len(cg.Setup)+len(cg.Cycle))
	order = append(order, cg.Setup...)
	order = append(order, cg.Cycle...)

	for _, name := range order {
		decl := cg.Nodes[name]
		phase := "cycle"
		if decl.Phase == catalog.Setup {
			phase = "setup"
		}

		nodeType := exportedName(name) + "Node"
		ns := NodeSpec{Name: name, Type: nodeType, Phase: phase}

		fields := make([]catalog.Field, 0, len(decl.CreationContext)+len(decl.CycleContext))
		fields = append(fields, decl.CreationContext...)
		fields = append(fields, decl.CycleContext...)

		for _, f := range fields {
			goType := cg.FieldTypes[name+"."+f.Name]
			if goType == "" {
				goType = "any"
			}

			switch f.Kind {
			case catalog.AdditionalOutput:
				spec.Accessors = append(spec.Accessors, AccessorSpec{
					Kind:         AdditionalOutputAccessor,
					NodeType:     nodeType,
					AccessorName: f.Name,
					Instance:     cyclerName,
					Path:         f.Path.String(),
					GoType:       goType,
				})
			case catalog.HistoricInput:
				spec.Accessors = append(spec.Accessors, AccessorSpec{
					Kind:         HistoricInputAccessor,
					NodeType:     nodeType,
					AccessorName: f.Name,
					Instance:     cyclerName,
					Path:         f.Path.String(),
					GoType:       goType,
				})
			case catalog.PerceptionInput:
				spec.Accessors = append(spec.Accessors, AccessorSpec{
					Kind:         PerceptionInputAccessor,
					NodeType:     nodeType,
					AccessorName: f.Name,
					Instance:     cyclerName,
					Path:         f.Path.String(),
					GoType:       goType,
				})
			case catalog.HardwareInterface:
				// Not gathered per-cycle; the deployment wires a hardware
				// handle directly onto its Logic implementation instead.
			default:
				ns.Fields = append(ns.Fields, NodeFieldSpec{
					Name:     f.Name,
					Kind:     f.Kind,
					GoType:   goType,
					Required: f.Kind == catalog.RequiredInput,
				})
			}
		}

		for _, out := range decl.MainOutputs {
			goType := cg.OutputTypes[out]
			if goType == "" {
				goType = "any"
			}
			ns.Outputs = append(ns.Outputs, NodeOutputSpec{
				Name:   outputFieldName(out),
				GoType: goType,
			})
		}

		spec.Nodes = append(spec.Nodes, ns)
	}

	return spec, nil
}

// Generate renders the complete Go source file for a CyclerSpec: per-node
// Input/Output/Getters/Logic/Node types implementing the guard/defaults
// policy, a <Instance>Database snapshot type, a <Instance>Runner with a
// constructor and RunSetup/RunCycle methods executing nodes in catalog
// order, and every accessor method in Accessors; gofmt'd before return.
func Generate(templates *template.Template, spec *CyclerSpec) ([]byte, error) {
	var buf bytes.Buffer

	hasHistoric, hasPerception, hasAdditionalOutput := false, false, false
	for _, a := range spec.Accessors {
		switch a.Kind {
		case HistoricInputAccessor:
			hasHistoric = true
		case PerceptionInputAccessor:
			hasPerception = true
		case AdditionalOutputAccessor:
			hasAdditionalOutput = true
		}
	}

	fmt.Fprintf(&buf, "// Code generated by cyclergen; DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n\n", spec.Package)

	buf.WriteString("import (\n")
	if len(spec.Nodes) > 0 {
		buf.WriteString("\t\"fmt\"\n")
	}
	buf.WriteString("\t\"time\"\n\n")
	if hasHistoric || hasPerception {
		buf.WriteString("\t\"github.com/fieldcore/cyclerd/aggregator\"\n")
	}
	buf.WriteString("\t\"github.com/fieldcore/cyclerd/cycler\"\n")
	if hasAdditionalOutput {
		buf.WriteString("\t\"github.com/fieldcore/cyclerd/observability\"\n")
	}
	if len(spec.Nodes) > 0 {
		buf.WriteString("\t\"github.com/fieldcore/cyclerd/recording\"\n")
	}
	buf.WriteString(")\n\n")

	for _, n := range spec.Nodes {
		writeNodeTypes(&buf, n)
	}

	writeRunner(&buf, spec)

	names := make([]int, len(spec.Accessors))
	for i := range names {
		names[i] = i
	}
	sort.SliceStable(names, func(i, j int) bool {
		return spec.Accessors[names[i]].AccessorName < spec.Accessors[names[j]].AccessorName
	})

	for _, i := range names {
		a := spec.Accessors[i]
		if err := templates.ExecuteTemplate(&buf, a.Kind.templateName(), a); err != nil {
			return nil, fmt.Errorf("codegen: render %s: %w", a.AccessorName, err)
		}
		buf.WriteString("\n")
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return buf.Bytes(), fmt.Errorf("codegen: gofmt: %w", err)
	}
	return formatted, nil
}

// writeNodeTypes renders one node's Input, Output, Getters, Logic interface
// and Node wrapper, including the run method implementing §4.2's
// RequiredInput guard: Logic.Cycle only runs if every RequiredInput field's
// getter reported present for now, otherwise the node's outputs default to
// their zero values for this cycle.
func writeNodeTypes(buf *bytes.Buffer, n NodeSpec) {
	fmt.Fprintf(buf, "// %sInput collects the gathered field values for node %q.\n", n.Type, n.Name)
	fmt.Fprintf(buf, "type %sInput struct {\n", n.Type)
	for _, f := range n.Fields {
		fmt.Fprintf(buf, "\t%s %s\n", exportedName(f.Name), f.GoType)
	}
	buf.WriteString("}\n\n")

	fmt.Fprintf(buf, "// %sOutput is node %q's main-output shape.\n", n.Type, n.Name)
	fmt.Fprintf(buf, "type %sOutput struct {\n", n.Type)
	for _, o := range n.Outputs {
		fmt.Fprintf(buf, "\t%s %s\n", o.Name, o.GoType)
	}
	buf.WriteString("}\n\n")

	fmt.Fprintf(buf, "// %sGetters supplies one deployment-defined closure per gathered\n", n.Type)
	buf.WriteString("// field, each reporting whether the field's value is present for now.\n")
	fmt.Fprintf(buf, "type %sGetters struct {\n", n.Type)
	for _, f := range n.Fields {
		fmt.Fprintf(buf, "\t%s func(now time.Time) (%s, bool)\n", exportedName(f.Name), f.GoType)
	}
	buf.WriteString("}\n\n")

	fmt.Fprintf(buf, "// %sLogic is the deployment-supplied business logic for node %q.\n", n.Type, n.Name)
	fmt.Fprintf(buf, "type %sLogic interface {\n", n.Type)
	fmt.Fprintf(buf, "\tCycle(%sInput) (%sOutput, error)\n", n.Type, n.Type)
	buf.WriteString("}\n\n")

	fmt.Fprintf(buf, "// %s wraps %sLogic with the RequiredInput guard/defaults policy\n", n.Type, n.Type)
	buf.WriteString("// every node obeys (§4.2): Logic.Cycle only runs when every RequiredInput\n")
	buf.WriteString("// field's getter reports present; otherwise the node's outputs are the\n")
	buf.WriteString("// zero value for this cycle.\n")
	fmt.Fprintf(buf, "type %s struct {\n\tLogic   %sLogic\n\tGetters %sGetters\n}\n\n", n.Type, n.Type, n.Type)

	fmt.Fprintf(buf, "func (n *%s) run(now time.Time) (%sOutput, error) {\n", n.Type, n.Type)
	fmt.Fprintf(buf, "\tvar in %sInput\n", n.Type)
	buf.WriteString("\tready := true\n")
	for _, f := range n.Fields {
		exp := exportedName(f.Name)
		fmt.Fprintf(buf, "\tif v, present := n.Getters.%s(now); present {\n\t\tin.%s = v\n", exp, exp)
		if f.Required {
			buf.WriteString("\t} else {\n\t\tready = false\n\t}\n")
		} else {
			buf.WriteString("\t}\n")
		}
	}
	fmt.Fprintf(buf, "\tif !ready {\n\t\treturn %sOutput{}, nil\n\t}\n", n.Type)
	buf.WriteString("\treturn n.Logic.Cycle(in)\n}\n\n")
}

// writeRunner renders the <Instance>Database snapshot type and the
// <Instance>Runner: its constructor and its RunSetup/RunCycle methods,
// which run every node of that phase in catalog-resolved order, build the
// own-database snapshot from each node's output, and assemble frame bytes
// via recording.Encode when asked.
func writeRunner(buf *bytes.Buffer, spec *CyclerSpec) {
	instanceType := exportedName(spec.Instance)
	runnerType := instanceType + "Runner"
	dbType := instanceType + "Database"

	fmt.Fprintf(buf, "// %s is %q's own-database snapshot, the combined main outputs of\n", dbType, spec.Instance)
	buf.WriteString("// every node this cycle, published to other cyclers and the historic\n")
	buf.WriteString("// aggregator.\n")
	fmt.Fprintf(buf, "type %s struct {\n", dbType)
	for _, n := range spec.Nodes {
		fmt.Fprintf(buf, "\t%s %sOutput\n", n.Type, n.Type)
	}
	buf.WriteString("}\n\n")

	fmt.Fprintf(buf, "// %s executes the %q cycler's nodes in the order the catalog\n", runnerType, spec.Instance)
	buf.WriteString("// resolved: every setup node once, then every cycle node each period.\n")
	fmt.Fprintf(buf, "type %s struct {\n", runnerType)
	for _, n := range spec.Nodes {
		fmt.Fprintf(buf, "\t%s *%s\n", lowerFirst(n.Name), n.Type)
	}
	fmt.Fprintf(buf, "\n\tdb %s\n", dbType)
	buf.WriteString("}\n\n")

	fmt.Fprintf(buf, "// New%s constructs a %s from its nodes' deployment-supplied logic\n", runnerType, runnerType)
	buf.WriteString("// and getters, one pair per node in catalog order.\n")
	fmt.Fprintf(buf, "func New%s(", runnerType)
	for i, n := range spec.Nodes {
		if i > 0 {
			buf.WriteString(", ")
		}
		field := lowerFirst(n.Name)
		fmt.Fprintf(buf, "%sLogic %sLogic, %sGetters %sGetters", field, n.Type, field, n.Type)
	}
	fmt.Fprintf(buf, ") *%s {\n\treturn &%s{\n", runnerType, runnerType)
	for _, n := range spec.Nodes {
		field := lowerFirst(n.Name)
		fmt.Fprintf(buf, "\t\t%s: &%s{Logic: %sLogic, Getters: %sGetters},\n", field, n.Type, field, field)
	}
	buf.WriteString("\t}\n}\n\n")

	fmt.Fprintf(buf, "func (r *%s) Name() string { return %q }\n\n", runnerType, spec.Instance)

	kindExpr := "cycler.RealTime"
	if spec.Kind == "perception" {
		kindExpr = "cycler.Perception"
	}
	fmt.Fprintf(buf, "func (r *%s) Kind() cycler.Kind { return %s }\n\n", runnerType, kindExpr)

	buf.WriteString("// Database returns this cycle's own-database snapshot, for publishing to\n")
	buf.WriteString("// other cyclers' slot-buffer readers and the historic aggregator.\n")
	fmt.Fprintf(buf, "func (r *%s) Database() any { return r.db }\n\n", runnerType)

	writePhase(buf, spec, runnerType, "RunSetup", spec.Setup)
	writePhase(buf, spec, runnerType, "RunCycle", spec.Cycle)
}

func writePhase(buf *bytes.Buffer, spec *CyclerSpec, runnerType, method string, names []string) {
	fmt.Fprintf(buf, "func (r *%s) %s(now time.Time, wantFrame bool) ([]byte, error) {\n", runnerType, method)
	buf.WriteString("\tvar frame []byte\n")
	for _, name := range names {
		field := lowerFirst(name)
		nodeType := exportedName(name) + "Node"
		buf.WriteString("\t{\n")
		fmt.Fprintf(buf, "\t\tout, err := r.%s.run(now)\n", field)
		fmt.Fprintf(buf, "\t\tif err != nil {\n\t\t\treturn nil, fmt.Errorf(\"%s: node %s: %%w\", err)\n\t\t}\n", spec.Instance, name)
		fmt.Fprintf(buf, "\t\tr.db.%s = out\n", nodeType)
		buf.WriteString("\t\tif wantFrame {\n")
		buf.WriteString("\t\t\tb, err := recording.Encode(out)\n")
		fmt.Fprintf(buf, "\t\t\tif err != nil {\n\t\t\t\treturn nil, fmt.Errorf(\"%s: encode node %s frame: %%w\", err)\n\t\t\t}\n", spec.Instance, name)
		buf.WriteString("\t\t\tframe = append(frame, b...)\n")
		buf.WriteString("\t\t}\n")
		buf.WriteString("\t}\n")
	}
	buf.WriteString("\treturn frame, nil\n}\n\n")
}

func exportedName(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] = b[0] - 'a' + 'A'
	}
	return string(b)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] = b[0] - 'A' + 'a'
	}
	return string(b)
}

func outputFieldName(dotted string) string {
	parts := strings.Split(dotted, ".")
	return exportedName(parts[len(parts)-1])
}
