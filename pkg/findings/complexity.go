package findings

import (
	"fmt"
	"sort"

	"github.com/jestersw/codeparser/pkg/syntax"
)

// GenericBranchKinds is used for grammars without a configured branching set.
var GenericBranchKinds = []string{
	"if_statement",
	"for_statement",
	"while_statement",
	"switch_statement",
	"try_statement",
}

// KindSet is a set of node kinds.
type KindSet map[string]struct{}

// NewKindSet builds a KindSet.
func NewKindSet(kinds ...string) KindSet {
	s := make(KindSet, len(kinds))
	for _, k := range kinds {
		s[k] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s KindSet) Has(kind string) bool {
	_, ok := s[kind]
	return ok
}

// Sorted returns the kinds in lexical order.
func (s KindSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Scorer computes the structural complexity of a tree. Every node weighs 1,
// branching nodes weigh 2, and the score is the total weight of the tree, so
// a tree of N nodes with B branching nodes scores N + B.
type Scorer struct {
	Branching KindSet
}

// NewScorer returns a scorer for the given branching kinds. With no kinds,
// GenericBranchKinds is used.
func NewScorer(branchKinds ...string) *Scorer {
	if len(branchKinds) == 0 {
		branchKinds = GenericBranchKinds
	}
	return &Scorer{Branching: NewKindSet(branchKinds...)}
}

// Weight returns the contribution of a single node of the given kind.
func (s *Scorer) Weight(kind string) uint {
	if s.Branching.Has(kind) {
		return 2
	}
	return 1
}

// Score returns the complexity of the tree rooted at root. The result is
// never below 1.
func (s *Scorer) Score(root syntax.Node) (uint, []MalformedNodeWarning) {
	if root == nil {
		return 1, []MalformedNodeWarning{{Reason: "missing root node"}}
	}

	var (
		total    uint
		warnings []MalformedNodeWarning
	)
	walk(root, func(n syntax.Node) {
		total += s.Weight(n.Kind())
	}, func(parent syntax.Node, i int) {
		warnings = append(warnings, nodeWarning(parent, "", fmt.Sprintf("child %d is nil", i)))
	})
	return total, warnings
}
