// Package catalog implements the node catalog & graph analyzer (component A):
// it groups node declarations by owning cycler, builds the intra-cycler
// producer/consumer graph over main outputs, topologically orders the
// setup and cycle node lists with a deterministic tie-break, and resolves
// every context field's path against a typed data dictionary.
//
// Grounded on graph.TopoSort (Kahn's algorithm with sorted ties) and the
// cycle-reporting style of a dependency validator; generalized here from a
// single flat action list to a per-cycler, two-phase (setup/cycle) grouping.
package catalog

import (
	"fmt"
	"sort"

	"github.com/fieldcore/cyclerd/dictionary"
	"github.com/fieldcore/cyclerd/graph"
	"github.com/fieldcore/cyclerd/pathx"
)

// resolvedNames expands a field's path into dictionary-ready names,
// substituting InstanceVariable segments with the cycler that actually owns
// the data: the node's own cycler for own-cycler fields, or f.FromCycler
// for cross-cycler ones.
func resolvedNames(f Field, ownCycler string) []string {
	root := ownCycler
	if f.Cross && f.FromCycler != "" {
		root = f.FromCycler
	}
	names := make([]string, 0, len(f.Path.Segments)+1)
	for _, s := range f.Path.Segments {
		switch s.Kind {
		case pathx.Field:
			names = append(names, s.Name)
		case pathx.InstanceVariable:
			names = append(names, root)
		}
	}
	return names
}

// FieldKind enumerates the context field kinds a node declaration may use,
// per the data model's fixed kind set.
type FieldKind int

const (
	Parameter FieldKind = iota
	CyclerState
	MainOutput
	InputOwn
	InputCross
	RequiredInput
	HistoricInput
	PerceptionInput
	AdditionalOutput
	HardwareInterface
)

func (k FieldKind) String() string {
	switch k {
	case Parameter:
		return "Parameter"
	case CyclerState:
		return "CyclerState"
	case MainOutput:
		return "MainOutput"
	case InputOwn:
		return "Input(own)"
	case InputCross:
		return "Input(cross)"
	case RequiredInput:
		return "RequiredInput"
	case HistoricInput:
		return "HistoricInput"
	case PerceptionInput:
		return "PerceptionInput"
	case AdditionalOutput:
		return "AdditionalOutput"
	case HardwareInterface:
		return "HardwareInterface"
	}
	return "Unknown"
}

// isCrossTime reports whether a field kind can never appear in a setup
// node's cycle context, per invariant 3: historic and perception inputs
// are never gathered before setup runs.
func (k FieldKind) isCrossTime() bool {
	return k == HistoricInput || k == PerceptionInput
}

// Field is one context field of a node declaration.
type Field struct {
	Name       string    // the struct field name the generated accessor fills in
	Kind       FieldKind
	Path       pathx.Path // unused for HardwareInterface
	Cross      bool       // true if Kind is InputCross, or RequiredInput/HistoricInput/PerceptionInput reads another cycler
	FromCycler string     // owning cycler for Cross fields; ignored otherwise
}

// Phase is the list a node is declared into.
type Phase int

const (
	Setup Phase = iota
	Cycle
)

func (p Phase) String() string {
	if p == Setup {
		return "setup"
	}
	return "cycle"
}

// NodeDecl is one node declaration as authored against the catalog.
type NodeDecl struct {
	Name            string
	Cycler          string
	Phase           Phase
	CreationContext []Field
	CycleContext    []Field
	MainOutputs     []string // dotted paths, relative to this cycler's output root, that this node produces
}

// Error is one catalog-build failure, tagged with the node (for a
// dependency cycle, the cycler) and, where one applies, the field it
// originated from so it can be reported without retry.
type Error struct {
	Node  string
	Field string
	Msg   string
	Err   error // underlying error, when Msg was derived from one; may be nil
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("node %q: %s", e.Node, e.Msg)
	}
	return fmt.Sprintf("node %q field %q: %s", e.Node, e.Field, e.Msg)
}

// Unwrap exposes the originating error, if any, so errors.Is/errors.As can
// see through a catalog.Error to (for example) a dictionary resolution
// failure.
func (e *Error) Unwrap() error { return e.Err }

// Errors accumulates every Error found in one Build call; Build never
// short-circuits on the first failure.
type Errors []*Error

func (es Errors) Error() string {
	if len(es) == 1 {
		return es[0].Error()
	}
	return fmt.Sprintf("%d catalog errors, first: %s", len(es), es[0].Error())
}

// CyclerGraph is the resolved result for one cycler: its ordered setup and
// cycle node lists, the full node declarations keyed by name (so codegen
// can render field initializers and guards, not just execution order),
// and the field/output -> type tables codegen renders accessors from.
type CyclerGraph struct {
	Name        string
	Setup       []string // node names, in execution order
	Cycle       []string
	Nodes       map[string]NodeDecl // node name -> full declaration
	FieldTypes  map[string]string   // "node.field" -> dictionary leaf type string
	OutputTypes map[string]string   // dotted main-output path -> dictionary leaf type string
}

// Graph is the full per-cycler catalog build result.
type Graph struct {
	Cyclers map[string]*CyclerGraph
}

// Build runs the node catalog & graph analyzer over a flat set of node
// declarations, producing one ordered setup/cycle list per cycler.
//
// Algorithm: group by cycler; build a producer/consumer edge n1->n2 for
// every main output of n1 consumed as an own-cycler Input/RequiredInput by
// n2; validate each node's declared Phase against its field kinds (a Setup
// node may not use HistoricInput/PerceptionInput/cross-cycler
// Input/RequiredInput, and may not consume an output produced by a Cycle
// node); topologically sort the Setup and Cycle subgraphs independently,
// tie-broken by node name; resolve every field path against dict.
func Build(decls []NodeDecl, dict *dictionary.Dictionary) (*Graph, error) {
	var errs Errors

	byCycler := make(map[string][]NodeDecl)
	for _, d := range decls {
		byCycler[d.Cycler] = append(byCycler[d.Cycler], d)
	}

	result := &Graph{Cyclers: make(map[string]*CyclerGraph)}

	cyclerNames := make([]string, 0, len(byCycler))
	for name := range byCycler {
		cyclerNames = append(cyclerNames, name)
	}
	sort.Strings(cyclerNames)

	for _, cyclerName := range cyclerNames {
		nodes := byCycler[cyclerName]
		cg, cerrs := buildCycler(cyclerName, nodes, dict)
		errs = append(errs, cerrs...)
		if cg != nil {
			result.Cyclers[cyclerName] = cg
		}
	}

	if len(errs) > 0 {
		return result, errs
	}
	return result, nil
}

func buildCycler(cyclerName string, nodes []NodeDecl, dict *dictionary.Dictionary) (*CyclerGraph, Errors) {
	var errs Errors

	byName := make(map[string]NodeDecl, len(nodes))
	producerOf := make(map[string]string) // own-output dotted path -> producing node name
	for _, n := range nodes {
		if _, dup := byName[n.Name]; dup {
			errs = append(errs, &Error{Node: n.Name, Msg: "duplicate node name within cycler " + cyclerName})
			continue
		}
		byName[n.Name] = n
		for _, out := range n.MainOutputs {
			producerOf[out] = n.Name
		}
	}

	// Validate phase eligibility and build the combined producer/consumer
	// edge set over main outputs (step 2 and step 3 of §4.1).
	full := graph.New()
	for _, n := range nodes {
		full.AddNode(n.Name)
	}

	for _, n := range nodes {
		for _, f := range n.CycleContext {
			if n.Phase == Setup && f.Kind.isCrossTime() {
				errs = append(errs, &Error{Node: n.Name, Field: f.Name, Msg: fmt.Sprintf("setup nodes may not declare %s fields", f.Kind)})
				continue
			}
			if n.Phase == Setup && (f.Kind == InputCross || (f.Kind == RequiredInput && f.Cross)) {
				errs = append(errs, &Error{Node: n.Name, Field: f.Name, Msg: fmt.Sprintf("setup nodes may not declare cross-cycler %s fields", f.Kind)})
				continue
			}
			if (f.Kind == InputOwn || f.Kind == RequiredInput) && !f.Cross {
				producer, ok := producerOf[f.Path.String()]
				if !ok {
					continue // unresolved path is reported separately below
				}
				pd := byName[producer]
				if n.Phase == Setup && pd.Phase == Cycle {
					errs = append(errs, &Error{Node: n.Name, Field: f.Name, Msg: fmt.Sprintf("setup node reads %q which is produced by cycle-phase node %q", f.Path.String(), producer)})
					continue
				}
				full.AddEdge(producer, n.Name)
			}
		}
	}

	// Resolve every path-bearing field against the dictionary.
	for _, n := range nodes {
		for _, f := range append(append([]Field{}, n.CreationContext...), n.CycleContext...) {
			if f.Kind == HardwareInterface || f.Kind == MainOutput {
				continue
			}
			if _, err := dict.Resolve(resolvedNames(f, n.Cycler)); err != nil {
				errs = append(errs, &Error{Node: n.Name, Field: f.Name, Msg: err.Error(), Err: err})
			}
		}
	}

	order, err := full.TopoSort()
	if err != nil {
		errs = append(errs, &Error{Node: cyclerName, Msg: err.Error()})
		return nil, errs
	}

	var setup, cycleList []string
	for _, name := range order {
		switch byName[name].Phase {
		case Setup:
			setup = append(setup, name)
		case Cycle:
			cycleList = append(cycleList, name)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	fieldTypes := make(map[string]string)
	for _, n := range nodes {
		for _, f := range append(append([]Field{}, n.CreationContext...), n.CycleContext...) {
			if f.Kind == HardwareInterface || f.Kind == MainOutput {
				continue
			}
			if t, err := dict.Resolve(resolvedNames(f, n.Cycler)); err == nil {
				fieldTypes[n.Name+"."+f.Name] = t.String()
			}
		}
	}

	outputTypes := make(map[string]string)
	for _, n := range nodes {
		for _, out := range n.MainOutputs {
			p, err := pathx.Parse(out)
			if err != nil {
				continue
			}
			if t, err := dict.Resolve(p.FieldNames()); err == nil {
				outputTypes[out] = t.String()
			}
		}
	}

	return &CyclerGraph{
		Name:        cyclerName,
		Setup:       setup,
		Cycle:       cycleList,
		Nodes:       byName,
		FieldTypes:  fieldTypes,
		OutputTypes: outputTypes,
	}, nil
}
