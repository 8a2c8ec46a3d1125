package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSingleIdent(t *testing.T) {
	node, err := Parse("A")
	require.NoError(t, err)
	assert.Equal(t, NodeIdent, node.Kind)
	assert.Equal(t, "A", node.ID)
}

func TestParseLowercaseIdentIsUppercased(t *testing.T) {
	node, err := Parse("a")
	require.NoError(t, err)
	assert.Equal(t, "A", node.ID)
}

func TestParseAndOrPrecedence(t *testing.T) {
	// AND binds tighter than OR: "a or b and c" parses as "a or (b and c)".
	node, err := Parse("a OR b AND c")
	require.NoError(t, err)
	require.Equal(t, NodeOr, node.Kind)
	assert.Equal(t, NodeIdent, node.Left.Kind)
	require.Equal(t, NodeAnd, node.Right.Kind)
}

func TestParseParenthesesOverridePrecedence(t *testing.T) {
	node, err := Parse("(a OR b) AND c")
	require.NoError(t, err)
	require.Equal(t, NodeAnd, node.Kind)
	assert.Equal(t, NodeOr, node.Left.Kind)
}

func TestParseNot(t *testing.T) {
	node, err := Parse("NOT a")
	require.NoError(t, err)
	require.Equal(t, NodeNot, node.Kind)
	assert.Equal(t, NodeIdent, node.Child.Kind)
}

func TestParseRejectsMalformedExpressions(t *testing.T) {
	cases := []string{
		"a AND",
		"(a",
		"a b",
		"AND a",
		"",
	}
	for _, expr := range cases {
		_, err := Parse(expr)
		assert.Error(t, err, expr)
	}
}

func TestIdentIDsCollectsEveryReference(t *testing.T) {
	node, err := Parse("a AND (b OR NOT c)")
	require.NoError(t, err)
	ids := IdentIDs(node)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, ids)
}
