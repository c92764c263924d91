package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

func TestEvidenceQueryPlan(t *testing.T) {
	claims := []interface{}{
		map[string]interface{}{"id": "s1", "c": "Barack Obama was born in Hawaii."},
		map[string]interface{}{"id": "s2", "c": "water boils at 100 degrees"},
		map[string]interface{}{"id": "s3", "c": ""},
		"not an object",
	}

	env := tool.Invoke[QueryPlan](context.Background(), NewEvidenceQueryPlan(), tool.Args{"claims": claims})
	data := requireOK(t, env)

	require.Len(t, data.Plans, 2)
	assert.Equal(t, Plan{
		ID:      "s1",
		Queries: []string{"Barack Obama", "Barack Obama born"},
		Sources: []string{"wiki", "kb", "web"},
		Limit:   4,
	}, data.Plans[0])
	assert.Equal(t, []string{"water boils 100 degrees"}, data.Plans[1].Queries)
	assert.Equal(t, Progress{Rev: 1, Stage: "RETRIEVAL"}, data.Progress)
}

func TestEvidenceQueryPlan_Failures(t *testing.T) {
	tests := []struct {
		name string
		args tool.Args
		code string
	}{
		{"missing claims", tool.Args{}, toolresult.CodeBadArgs},
		{"claims not a list", tool.Args{"claims": "x"}, toolresult.CodeBadArgs},
		{"empty claims", tool.Args{"claims": []interface{}{}}, toolresult.CodeBadArgs},
		{"no usable text", tool.Args{"claims": []interface{}{map[string]interface{}{"id": "s1", "c": "the of a"}}}, "NO_QUERIES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := tool.Invoke[QueryPlan](context.Background(), NewEvidenceQueryPlan(), tt.args)
			assert.Equal(t, tt.code, env.Code())
		})
	}
}

func TestEntityPhrases(t *testing.T) {
	assert.Equal(t, []string{"Apple", "iPhone"}, entityPhrases("Apple released the iPhone in 2007"))
	assert.Empty(t, entityPhrases("all lower case"))
}

func TestLimitTokens(t *testing.T) {
	assert.Equal(t, "a b c", limitTokens("a b c", 6))
	assert.Equal(t, "a b", limitTokens("a b c d", 2))
}

func TestToolRequestCompose(t *testing.T) {
	plans := []interface{}{
		map[string]interface{}{"id": "s1", "q": []interface{}{" Barack Obama ", "  ", 5, "Obama born"}, "lim": float64(4)},
		map[string]interface{}{"id": "s2", "q": "not a list"},
		map[string]interface{}{"q": []interface{}{"water boils"}},
	}

	env := tool.Invoke[RequestBatch](context.Background(), NewToolRequestCompose(), tool.Args{
		"plans": plans,
		"st":    map[string]interface{}{"rev": float64(1)},
	})
	data := requireOK(t, env)

	assert.Equal(t, []SearchRequest{
		{ID: "t1", Tool: "search", Args: map[string]interface{}{"q": "Barack Obama", "lim": 4, "src": "wiki"}, For: "s1"},
		{ID: "t2", Tool: "search", Args: map[string]interface{}{"q": "Obama born", "lim": 4, "src": "wiki"}, For: "s1"},
		{ID: "t3", Tool: "search", Args: map[string]interface{}{"q": "water boils", "lim": 3, "src": "wiki"}, For: "s1"},
	}, data.Requests)
	assert.Equal(t, Progress{Rev: 2, Stage: "RETRIEVAL"}, data.Progress)
}

func TestToolRequestCompose_Failures(t *testing.T) {
	env := tool.Invoke[RequestBatch](context.Background(), NewToolRequestCompose(), tool.Args{"plans": []interface{}{}})
	assert.Equal(t, toolresult.CodeBadArgs, env.Code())

	env = tool.Invoke[RequestBatch](context.Background(), NewToolRequestCompose(), tool.Args{
		"plans": []interface{}{map[string]interface{}{"id": "s1", "q": []interface{}{" "}}},
	})
	assert.Equal(t, "NO_QUERIES", env.Code())
	assert.Equal(t, toolresult.StatusError, env.Status())
}
