package findings

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jestersw/codeparser/pkg/syntax"
)

// recursiveScore is the direct form of the scoring rule.
func recursiveScore(n *syntax.Basic, branching KindSet) uint {
	score := uint(1)
	if branching.Has(n.Type) {
		score++
	}
	for _, c := range n.Children {
		score += recursiveScore(c, branching)
	}
	return score
}

var treeKinds = []string{"program", "identifier", "call", "if_statement", "for_statement", "block", "while_statement", "string"}

func randomTree(r *rand.Rand, depth int) *syntax.Basic {
	n := syntax.NewBasic(treeKinds[r.Intn(len(treeKinds))])
	if depth == 0 {
		return n
	}
	for i := r.Intn(4); i > 0; i-- {
		n.Children = append(n.Children, randomTree(r, depth-1))
	}
	return n
}

func countKinds(n *syntax.Basic, set KindSet) int {
	c := 0
	if set.Has(n.Type) {
		c++
	}
	for _, ch := range n.Children {
		c += countKinds(ch, set)
	}
	return c
}

func TestScore_SingleNode(t *testing.T) {
	s := NewScorer()
	score, warnings := s.Score(syntax.NewBasic("program"))
	assert.Equal(t, uint(1), score)
	assert.Empty(t, warnings)

	score, _ = s.Score(syntax.NewBasic("if_statement"))
	assert.Equal(t, uint(2), score)
}

func TestScore_MatchesRecursiveDefinition(t *testing.T) {
	s := NewScorer(GenericBranchKinds...)
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		tree := randomTree(r, 6)
		got, warnings := s.Score(tree)
		require.Empty(t, warnings)

		assert.Equal(t, recursiveScore(tree, s.Branching), got)
		n := syntax.Count(tree)
		b := countKinds(tree, s.Branching)
		assert.Equal(t, uint(n+b), got, "score must equal nodes plus branching nodes")
		assert.GreaterOrEqual(t, got, uint(1))
	}
}

func TestScore_BranchingSetIsPerGrammar(t *testing.T) {
	tree := syntax.NewBasic("module",
		syntax.NewBasic("match_statement"),
		syntax.NewBasic("if_statement"),
	)

	generic, _ := NewScorer().Score(tree)
	assert.Equal(t, uint(4), generic)

	python, _ := NewScorer("if_statement", "match_statement").Score(tree)
	assert.Equal(t, uint(5), python)
}

func TestScore_HandBuiltProgram(t *testing.T) {
	tree := evalProgram()
	score, warnings := NewScorer(GenericBranchKinds...).Score(tree)
	assert.Empty(t, warnings)
	assert.Equal(t, uint(syntax.Count(tree)+1), score)
}

func TestScore_DeepTree(t *testing.T) {
	const depth = 200_000
	root := syntax.NewBasic("block")
	cur := root
	for i := 1; i < depth; i++ {
		next := syntax.NewBasic("block")
		cur.Children = []*syntax.Basic{next}
		cur = next
	}

	score, _ := NewScorer().Score(root)
	assert.Equal(t, uint(depth), score)
}

func TestScore_NilChild(t *testing.T) {
	tree := syntax.NewBasic("program", syntax.NewBasic("identifier"), nil)
	score, warnings := NewScorer().Score(tree)
	assert.Equal(t, uint(2), score)
	require.Len(t, warnings, 1)
	assert.Equal(t, "program", warnings[0].Kind)
	assert.Contains(t, warnings[0].Error(), "child 1 is nil")
}

func TestScore_NilRoot(t *testing.T) {
	score, warnings := NewScorer().Score(nil)
	assert.Equal(t, uint(1), score)
	assert.Len(t, warnings, 1)
}

func TestKindSet(t *testing.T) {
	s := NewKindSet("b", "a", "b")
	assert.Len(t, s, 2)
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("c"))
	assert.Equal(t, []string{"a", "b"}, s.Sorted())
}
