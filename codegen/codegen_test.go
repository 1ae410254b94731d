package codegen

import (
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldcore/cyclerd/catalog"
	"github.com/fieldcore/cyclerd/pathx"
)

func loadTestTemplates(t *testing.T) *template.Template {
	t.Helper()
	tmpl, err := LoadTemplates("../templates")
	require.NoError(t, err)
	return tmpl
}

func TestFromGraph_UnknownCyclerFails(t *testing.T) {
	g := &catalog.Graph{Cyclers: map[string]*catalog.CyclerGraph{}}
	_, err := FromGraph(g, "vision", "generated", "realtime")
	assert.Error(t, err)
}

func TestFromGraph_CopiesSetupAndCycleOrder(t *testing.T) {
	g := &catalog.Graph{Cyclers: map[string]*catalog.CyclerGraph{
		"vision": {
			Name:  "vision",
			Setup: []string{"a", "b"},
			Cycle: []string{"c"},
			Nodes: map[string]catalog.NodeDecl{
				"a": {Name: "a", Phase: catalog.Setup},
				"b": {Name: "b", Phase: catalog.Setup},
				"c": {Name: "c", Phase: catalog.Cycle},
			},
		},
	}}
	spec, err := FromGraph(g, "vision", "generated", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, spec.Setup)
	assert.Equal(t, []string{"c"}, spec.Cycle)
	assert.Equal(t, "generated", spec.Package)
	assert.Equal(t, "realtime", spec.Kind, "empty kind defaults to realtime")
	require.Len(t, spec.Nodes, 3)
	assert.Equal(t, "setup", spec.Nodes[0].Phase)
	assert.Equal(t, "cycle", spec.Nodes[2].Phase)
}

func TestFromGraph_BuildsNodeFieldsAndAccessors(t *testing.T) {
	g := &catalog.Graph{Cyclers: map[string]*catalog.CyclerGraph{
		"vision": {
			Name:  "vision",
			Setup: nil,
			Cycle: []string{"track"},
			Nodes: map[string]catalog.NodeDecl{
				"track": {
					Name:  "track",
					Phase: catalog.Cycle,
					CycleContext: []catalog.Field{
						{Name: "Confidence", Kind: catalog.Parameter, Path: pathx.MustParse("vision.ball.x")},
						{Name: "PriorBall", Kind: catalog.RequiredInput, Path: pathx.MustParse("vision.ball")},
						{Name: "BallConfidence", Kind: catalog.AdditionalOutput, Path: pathx.MustParse("vision.ball.confidence")},
						{Name: "PastBallPosition", Kind: catalog.HistoricInput, Path: pathx.MustParse("vision.ball")},
						{Name: "TeammatePosition", Kind: catalog.PerceptionInput, Path: pathx.MustParse("teammate.position")},
						{Name: "Camera", Kind: catalog.HardwareInterface},
					},
					MainOutputs: []string{"vision.filteredBall"},
				},
			},
			FieldTypes: map[string]string{
				"track.Confidence":       "float64",
				"track.PriorBall":        "Vector2",
				"track.BallConfidence":   "float64",
				"track.PastBallPosition": "Vector2",
				"track.TeammatePosition": "Vector2",
			},
			OutputTypes: map[string]string{
				"vision.filteredBall": "Vector2",
			},
		},
	}}

	spec, err := FromGraph(g, "vision", "generated", "realtime")
	require.NoError(t, err)
	require.Len(t, spec.Nodes, 1)

	node := spec.Nodes[0]
	assert.Equal(t, "TrackNode", node.Type)
	require.Len(t, node.Fields, 2, "HardwareInterface and accessor-kind fields are not gathered inputs")

	byName := make(map[string]NodeFieldSpec)
	for _, f := range node.Fields {
		byName[f.Name] = f
	}
	assert.Equal(t, "float64", byName["Confidence"].GoType)
	assert.False(t, byName["Confidence"].Required)
	assert.Equal(t, "Vector2", byName["PriorBall"].GoType)
	assert.True(t, byName["PriorBall"].Required)

	require.Len(t, node.Outputs, 1)
	assert.Equal(t, "FilteredBall", node.Outputs[0].Name)
	assert.Equal(t, "Vector2", node.Outputs[0].GoType)

	require.Len(t, spec.Accessors, 3)
	kinds := make(map[AccessorKind]bool)
	for _, a := range spec.Accessors {
		kinds[a.Kind] = true
		assert.Equal(t, "TrackNode", a.NodeType)
	}
	assert.True(t, kinds[AdditionalOutputAccessor])
	assert.True(t, kinds[HistoricInputAccessor])
	assert.True(t, kinds[PerceptionInputAccessor])
}

func nodeGraph(name string, nodes []NodeSpec) *CyclerSpec {
	spec := &CyclerSpec{Instance: name, Package: "generated", Kind: "realtime"}
	for _, n := range nodes {
		spec.Nodes = append(spec.Nodes, n)
		if n.Phase == "setup" {
			spec.Setup = append(spec.Setup, n.Name)
		} else {
			spec.Cycle = append(spec.Cycle, n.Name)
		}
	}
	return spec
}

func TestGenerate_RendersNodeTypesAndRunner(t *testing.T) {
	tmpl := loadTestTemplates(t)
	spec := nodeGraph("vision", []NodeSpec{
		{
			Name:  "detect",
			Type:  "DetectNode",
			Phase: "cycle",
			Fields: []NodeFieldSpec{
				{Name: "Confidence", Kind: catalog.Parameter, GoType: "float64"},
				{Name: "PriorBall", Kind: catalog.RequiredInput, GoType: "float64", Required: true},
			},
			Outputs: []NodeOutputSpec{
				{Name: "Ball", GoType: "float64"},
			},
		},
	})

	out, err := Generate(tmpl, spec)
	require.NoError(t, err)
	src := string(out)

	assert.Contains(t, src, "package generated")
	assert.Contains(t, src, "type DetectNodeInput struct")
	assert.Contains(t, src, "type DetectNodeOutput struct")
	assert.Contains(t, src, "type DetectNodeGetters struct")
	assert.Contains(t, src, "type DetectNodeLogic interface")
	assert.Contains(t, src, "func (n *DetectNode) run(now time.Time) (DetectNodeOutput, error)")
	assert.Contains(t, src, "ready = false", "a RequiredInput field gates node invocation on absence")
	assert.Contains(t, src, "type VisionDatabase struct")
	assert.Contains(t, src, "type VisionRunner struct")
	assert.Contains(t, src, "func NewVisionRunner(")
	assert.Contains(t, src, "func (r *VisionRunner) Name() string { return \"vision\" }")
	assert.Contains(t, src, "func (r *VisionRunner) Kind() cycler.Kind { return cycler.RealTime }")
	assert.Contains(t, src, "func (r *VisionRunner) Database() any { return r.db }")
	assert.Contains(t, src, "func (r *VisionRunner) RunCycle(now time.Time, wantFrame bool) ([]byte, error)")
	assert.Contains(t, src, "recording.Encode(out)")
}

func TestGenerate_PerceptionKind(t *testing.T) {
	tmpl := loadTestTemplates(t)
	spec := nodeGraph("odometry", nil)
	spec.Kind = "perception"

	out, err := Generate(tmpl, spec)
	require.NoError(t, err)
	assert.Contains(t, string(out), "cycler.Perception")
}

func TestGenerate_OmitsUnusedImports(t *testing.T) {
	tmpl := loadTestTemplates(t)
	spec := nodeGraph("vision", nil)

	out, err := Generate(tmpl, spec)
	require.NoError(t, err)
	src := string(out)

	assert.NotContains(t, src, "\"github.com/fieldcore/cyclerd/aggregator\"")
	assert.NotContains(t, src, "\"github.com/fieldcore/cyclerd/observability\"")
	assert.NotContains(t, src, "\"github.com/fieldcore/cyclerd/recording\"")
	assert.Contains(t, src, "\"github.com/fieldcore/cyclerd/cycler\"")
}

func TestGenerate_RendersAccessors(t *testing.T) {
	tmpl := loadTestTemplates(t)
	spec := &CyclerSpec{
		Instance: "vision",
		Package:  "generated",
		Kind:     "realtime",
		Accessors: []AccessorSpec{
			{
				Kind:         AdditionalOutputAccessor,
				NodeType:     "TrackBall",
				AccessorName: "BallConfidence",
				Instance:     "vision",
				Path:         "ball.confidence",
				GoType:       "float64",
			},
			{
				Kind:         HistoricInputAccessor,
				NodeType:     "TrackBall",
				AccessorName: "PastBallPosition",
				Instance:     "vision",
				Path:         "ball.position",
				GoType:       "Vector2",
			},
			{
				Kind:         PerceptionInputAccessor,
				NodeType:     "TrackBall",
				AccessorName: "TeammatePosition",
				Instance:     "vision",
				Path:         "teammate.position",
				GoType:       "Vector2",
			},
		},
	}

	out, err := Generate(tmpl, spec)
	require.NoError(t, err)

	src := string(out)
	assert.Contains(t, src, "func (n *TrackBall) BallConfidence(")
	assert.Contains(t, src, "func (n *TrackBall) PastBallPosition(")
	assert.Contains(t, src, "func (n *TrackBall) TeammatePosition(")
	assert.Contains(t, src, "db.Snapshot()")
	assert.Contains(t, src, "db.Temporary()")
	assert.Contains(t, src, "db.Persistent()")
}

func TestGenerate_AccessorsSortedDeterministically(t *testing.T) {
	tmpl := loadTestTemplates(t)
	spec := &CyclerSpec{
		Instance: "vision",
		Package:  "generated",
		Kind:     "realtime",
		Accessors: []AccessorSpec{
			{Kind: AdditionalOutputAccessor, NodeType: "N", AccessorName: "Zeta", GoType: "int"},
			{Kind: AdditionalOutputAccessor, NodeType: "N", AccessorName: "Alpha", GoType: "int"},
		},
	}

	out, err := Generate(tmpl, spec)
	require.NoError(t, err)

	src := string(out)
	alphaIdx := indexOf(src, "Alpha")
	zetaIdx := indexOf(src, "Zeta")
	require.NotEqual(t, -1, alphaIdx)
	require.NotEqual(t, -1, zetaIdx)
	assert.Less(t, alphaIdx, zetaIdx)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
