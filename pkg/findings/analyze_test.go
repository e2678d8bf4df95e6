package findings

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jestersw/codeparser/pkg/rules"
	"github.com/jestersw/codeparser/pkg/syntax"
)

func jsCatalog(t *testing.T) *rules.Catalog {
	t.Helper()
	c, err := rules.BuiltinCatalog("javascript")
	require.NoError(t, err)
	return c
}

func TestAnalyze_EvalProgram(t *testing.T) {
	tree := evalProgram()
	report := Analyze(tree, []byte(evalSource), jsCatalog(t), NewScorer(GenericBranchKinds...))

	assert.GreaterOrEqual(t, report.Complexity, uint(3))
	assert.Equal(t, uint(syntax.Count(tree)+1), report.Complexity)
	require.Len(t, report.Vulnerabilities, 1)
	assert.Equal(t, rules.CategoryDynamicEval, report.Vulnerabilities[0].Category)
	assert.Equal(t, "eval", report.Vulnerabilities[0].Text)
	assert.Empty(t, report.Warnings)
}

func TestAnalyze_Idempotent(t *testing.T) {
	tree := evalProgram()
	catalog := jsCatalog(t)
	scorer := NewScorer()

	first := Analyze(tree, []byte(evalSource), catalog, scorer)
	second := Analyze(tree, []byte(evalSource), catalog, scorer)
	assert.Equal(t, first, second)
}

func TestAnalyze_RuleOrder(t *testing.T) {
	src := `"SELECT a FROM b WHERE c" + "QUJDREVGR0hJSktMTU5PUFFSU1RVVldYWVowMTIzNDU2"`
	first := strings.Index(src, " + ")
	tree := syntax.NewBasic("program",
		syntax.NewBasic("string").WithSpan(0, uint(first)),
		syntax.NewBasic("string").WithSpan(uint(first+3), uint(len(src))),
	).WithSpan(0, uint(len(src)))

	secret := rules.DialectSpecs("javascript")[2]
	query := rules.DialectSpecs("javascript")[1]
	require.Equal(t, rules.CategoryHardcodedSecret, secret.Category)
	require.Equal(t, rules.CategoryInjectableQuery, query.Category)

	c1, err := rules.NewCatalog(secret, query)
	require.NoError(t, err)
	c2, err := rules.NewCatalog(query, secret)
	require.NoError(t, err)

	r1 := Analyze(tree, []byte(src), c1, nil)
	r2 := Analyze(tree, []byte(src), c2, nil)
	require.Len(t, r1.Vulnerabilities, 2)
	require.Len(t, r2.Vulnerabilities, 2)

	assert.Equal(t, rules.CategoryHardcodedSecret, r1.Vulnerabilities[0].Category)
	assert.Equal(t, rules.CategoryInjectableQuery, r1.Vulnerabilities[1].Category)
	assert.Equal(t, rules.CategoryInjectableQuery, r2.Vulnerabilities[0].Category)
	assert.Equal(t, rules.CategoryHardcodedSecret, r2.Vulnerabilities[1].Category)
}

func TestAnalyze_EmptyTree(t *testing.T) {
	report := Analyze(syntax.NewBasic("program"), nil, jsCatalog(t), nil)
	assert.Equal(t, uint(1), report.Complexity)
	assert.NotNil(t, report.Vulnerabilities)
	assert.Empty(t, report.Vulnerabilities)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{"complexity":1,"vulnerabilities":[]}`, string(data))
}

func TestAnalyze_EmptyCatalog(t *testing.T) {
	empty, err := rules.NewCatalog()
	require.NoError(t, err)
	report := Analyze(evalProgram(), []byte(evalSource), empty, nil)
	assert.Empty(t, report.Vulnerabilities)
	assert.Greater(t, report.Complexity, uint(1))
}

func TestAnalyze_MalformedSpanDoesNotAbort(t *testing.T) {
	src := "eval(x); eval(y)"
	tree := syntax.NewBasic("program",
		syntax.NewBasic("call_expression",
			syntax.NewBasic("identifier").WithSpan(0, 400).WithField("function"),
		).WithSpan(0, 7),
		syntax.NewBasic("call_expression",
			syntax.NewBasic("identifier").WithSpan(9, 13).WithField("function"),
		).WithSpan(9, 16),
	).WithSpan(0, uint(len(src)))

	report := Analyze(tree, []byte(src), jsCatalog(t), nil)
	require.Len(t, report.Vulnerabilities, 1)
	assert.Equal(t, "eval", report.Vulnerabilities[0].Text)
	assert.NotEmpty(t, report.Warnings)
}

func TestReport_JSONAndDetach(t *testing.T) {
	report := Analyze(evalProgram(), []byte(evalSource), jsCatalog(t), nil)
	require.NotNil(t, report.Vulnerabilities[0].Node)

	report.Detach()
	assert.Nil(t, report.Vulnerabilities[0].Node)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	vulns := decoded["vulnerabilities"].([]any)
	require.Len(t, vulns, 1)
	assert.Equal(t, map[string]any{
		"category": rules.CategoryDynamicEval,
		"line":     float64(2),
		"text":     "eval",
	}, vulns[0])

	assert.Equal(t, []string{"Insecure dynamic evaluation at line 2: eval"}, report.Lines())
}

func TestToFindings(t *testing.T) {
	report := Analyze(evalProgram(), []byte(evalSource), jsCatalog(t), nil)

	fs := ToFindings(report, "src/app.js", "javascript", 0)
	require.Len(t, fs, 1)
	f := fs[0]
	assert.Equal(t, AnalyzerRules, f.Analyzer)
	assert.Equal(t, SevCritical, f.Severity)
	assert.Equal(t, rules.CategoryDynamicEval, f.Category)
	assert.Equal(t, "src/app.js", f.FilePath)
	assert.Equal(t, 2, f.Line)
	assert.Equal(t, 3, f.Column)
	assert.Equal(t, "eval", f.Detail)

	fs = ToFindings(report, "src/app.js", "javascript", 2)
	require.Len(t, fs, 2)
	assert.Equal(t, AnalyzerComplexity, fs[1].Analyzer)
	assert.Equal(t, SevCritical, fs[1].Severity)

	assert.Nil(t, ToFindings(nil, "x", "go", 10))
}

func TestSearchOptionsMatches(t *testing.T) {
	f := &Finding{Analyzer: AnalyzerRules, Severity: SevWarning, Category: "c", FilePath: "pkg/a.go", Language: "go"}
	assert.True(t, SearchOptions{}.Matches(f))
	assert.True(t, SearchOptions{FilePath: "pkg/", Language: "go"}.Matches(f))
	assert.False(t, SearchOptions{Severity: SevCritical}.Matches(f))
	assert.False(t, SearchOptions{Category: "other"}.Matches(f))
}
