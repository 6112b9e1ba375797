package flow

import (
	"encoding/json"
	"testing"

	"github.com/converzap/converzap/pkg/kernel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func validTestFlow() Flow {
	return Flow{
		ID:             kernel.NewFlowID(uuid.New().String()),
		Name:           "bienvenida",
		TriggerType:    TriggerKeywordExact,
		TriggerKeyword: "hola",
		IsActive:       true,
		Nodes: []Node{
			{ID: "start", Type: NodeTypeStart},
			{ID: "msg", Type: NodeTypeMessage, Config: map[string]any{"text": "Hola {{name}}"}},
			{ID: "end", Type: NodeTypeEnd},
		},
		Edges: []Edge{
			{ID: "e1", Source: "start", Target: "msg"},
			{ID: "e2", Source: "msg", Target: "end"},
		},
	}
}

func TestMatchesTrigger(t *testing.T) {
	for name, tc := range map[string]struct {
		triggerType TriggerType
		keyword     string
		text        string
		want        bool
	}{
		"exact match":              {TriggerKeywordExact, "hola", "hola", true},
		"exact case insensitive":   {TriggerKeywordExact, "Hola", "  HOLA  ", true},
		"exact no match":           {TriggerKeywordExact, "hola", "hola mundo", false},
		"contains match":           {TriggerKeywordContains, "pedido", "quiero hacer un PEDIDO ya", true},
		"contains no match":        {TriggerKeywordContains, "pedido", "quiero info", false},
		"starts with match":        {TriggerKeywordStartsWith, "menu", "menú no, MENU del día", true},
		"starts with no match":     {TriggerKeywordStartsWith, "menu", "ver menu", false},
		"any response non-empty":   {TriggerAnyResponse, "", "cualquier cosa", true},
		"any response empty":       {TriggerAnyResponse, "", "   ", false},
		"exact with empty keyword": {TriggerKeywordExact, "", "", false},
	} {
		t.Run(name, func(t *testing.T) {
			f := Flow{TriggerType: tc.triggerType, TriggerKeyword: tc.keyword}
			require.Equal(t, tc.want, f.MatchesTrigger(tc.text))
		})
	}
}

func TestValidateGraph(t *testing.T) {
	t.Run("valid flow passes", func(t *testing.T) {
		f := validTestFlow()
		require.NoError(t, f.ValidateGraph())
	})

	t.Run("duplicate node ID", func(t *testing.T) {
		f := validTestFlow()
		f.Nodes = append(f.Nodes, Node{ID: "msg", Type: NodeTypeEnd})
		require.Error(t, f.ValidateGraph())
	})

	t.Run("two START nodes", func(t *testing.T) {
		f := validTestFlow()
		f.Nodes = append(f.Nodes, Node{ID: "start2", Type: NodeTypeStart})
		require.Error(t, f.ValidateGraph())
	})

	t.Run("no START node", func(t *testing.T) {
		f := validTestFlow()
		f.Nodes = f.Nodes[1:]
		f.Edges = nil
		require.Error(t, f.ValidateGraph())
	})

	t.Run("edge to missing node", func(t *testing.T) {
		f := validTestFlow()
		f.Edges = append(f.Edges, Edge{ID: "e3", Source: "end", Target: "ghost"})
		require.Error(t, f.ValidateGraph())
	})

	t.Run("invalid node config", func(t *testing.T) {
		f := validTestFlow()
		f.Nodes[1].Config = map[string]any{} // MESSAGE sin text
		require.Error(t, f.ValidateGraph())
	})
}

func TestEdgeSelection(t *testing.T) {
	f := Flow{
		Nodes: []Node{{ID: "cond", Type: NodeTypeCondition}},
		Edges: []Edge{
			{ID: "e1", Source: "cond", Target: "yes", Label: "true"},
			{ID: "e2", Source: "cond", Target: "no", Label: "false"},
			{ID: "e3", Source: "cond", Target: "other"},
		},
	}

	require.Equal(t, "yes", f.EdgeFrom("cond", "true").Target)
	require.Equal(t, "other", f.EdgeFrom("cond", "").Target)
	require.Nil(t, f.EdgeFrom("cond", "maybe"))
	require.Len(t, f.EdgesFrom("cond"), 3)
	require.Empty(t, f.EdgesFrom("yes"))
}

func TestExportImportRoundTrip(t *testing.T) {
	original := validTestFlow()
	original.Description = "flujo de bienvenida"
	original.Priority = 5

	exported := original.Export()

	// El export debe sobrevivir un viaje por JSON (es el formato portable)
	data, err := json.Marshal(exported)
	require.NoError(t, err)
	var decoded ExportedFlow
	require.NoError(t, json.Unmarshal(data, &decoded))

	imported := Import(kernel.NewFlowID(uuid.New().String()), decoded)

	require.Equal(t, original.Name, imported.Name)
	require.Equal(t, original.Description, imported.Description)
	require.Equal(t, original.TriggerType, imported.TriggerType)
	require.Equal(t, original.TriggerKeyword, imported.TriggerKeyword)
	require.Equal(t, original.Priority, imported.Priority)
	require.Len(t, imported.Nodes, len(original.Nodes))
	require.Len(t, imported.Edges, len(original.Edges))
	require.NoError(t, imported.ValidateGraph())
	require.NotEqual(t, original.ID, imported.ID)
}

func TestTimerConfigDuration(t *testing.T) {
	c := TimerConfig{DelaySeconds: 30, DelayMinutes: 2, DelayHours: 1}
	require.Equal(t, float64(3750), c.Duration().Seconds())

	require.Error(t, TimerConfig{}.Validate())
	require.NoError(t, TimerConfig{DelaySeconds: 1}.Validate())
}
