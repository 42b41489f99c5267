package protocols_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensor/forensor/internal/domain"
	"github.com/forensor/forensor/internal/domain/protocols"
)

func TestGradeFor(t *testing.T) {
	cases := []struct {
		cc   int
		want string
	}{
		{1, "A"}, {5, "A"}, {6, "B"}, {10, "B"}, {11, "C"}, {20, "C"},
		{21, "D"}, {30, "D"}, {31, "E"}, {40, "E"}, {41, "F"}, {100, "F"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, protocols.GradeFor(tc.cc), "cc=%d", tc.cc)
	}
}

func TestBigOFor(t *testing.T) {
	assert.Equal(t, "O(1)", protocols.BigOFor(0, 0))
	assert.Equal(t, "O(n)", protocols.BigOFor(1, 0))
	assert.Equal(t, "O(n^2)", protocols.BigOFor(2, 0))
	assert.Equal(t, "O(n^3)", protocols.BigOFor(3, 0))
	assert.Equal(t, "O(n^5)", protocols.BigOFor(5, 0))
	assert.Equal(t, "O(2^n) or O(n!)", protocols.BigOFor(0, 2))
	// A single self-call site is plain recursion, not branching.
	assert.Equal(t, "O(n)", protocols.BigOFor(1, 1))
}

func TestScanCost_TripleNestedLoops(t *testing.T) {
	content := strings.Join([]string{
		"def process(items):",
		"    for a in items:",
		"        for b in a:",
		"            for c in b:",
		"                handle(c)",
	}, "\n")
	corpus := corpusOf(src("deep.py", "python", content))

	report := protocols.ScanCost(corpus, domain.DefaultConfig())

	require.Len(t, report.Units, 1)
	u := report.Units[0]
	assert.Equal(t, "process", u.Name)
	assert.Equal(t, "O(n^3)", u.BigO)
	assert.Equal(t, 4, u.Complexity)
	assert.Equal(t, "A", u.Grade)

	deep := findingsByCategory(report.Findings, "DEEP_NESTING")
	require.Len(t, deep, 1)
	assert.Equal(t, 6, deep[0].Severity)
	assert.Contains(t, deep[0].Evidence, "O(n^3)")
}

func TestScanCost_SimpleFunctionGradeA(t *testing.T) {
	content := strings.Join([]string{
		"def check(x):",
		"    if x > 0:",
		"        return True",
		"    return False",
	}, "\n")
	corpus := corpusOf(src("simple.py", "python", content))

	report := protocols.ScanCost(corpus, domain.DefaultConfig())

	require.Len(t, report.Units, 1)
	assert.Equal(t, 2, report.Units[0].Complexity)
	assert.Equal(t, "A", report.Units[0].Grade)
	assert.Equal(t, "O(1)", report.Units[0].BigO)
	assert.Empty(t, report.Findings)
}

func TestScanCost_HighComplexityGradeD(t *testing.T) {
	var b strings.Builder
	b.WriteString("def gnarly(x):\n")
	for i := 0; i < 24; i++ {
		b.WriteString("    if x:\n        x -= 1\n")
	}
	corpus := corpusOf(src("gnarly.py", "python", b.String()))

	report := protocols.ScanCost(corpus, domain.DefaultConfig())

	require.Len(t, report.Units, 1)
	assert.Equal(t, 25, report.Units[0].Complexity)
	assert.Equal(t, "D", report.Units[0].Grade)

	high := findingsByCategory(report.Findings, "HIGH_COMPLEXITY")
	require.Len(t, high, 1)
	assert.Equal(t, 5, high[0].Severity)
	assert.Equal(t, "gnarly: CC=25 grade D", high[0].Evidence)
}

func TestScanCost_RecursiveBranching(t *testing.T) {
	content := strings.Join([]string{
		"def fib(n):",
		"    if n < 2:",
		"        return n",
		"    return fib(n - 1) + fib(n - 2)",
	}, "\n")
	corpus := corpusOf(src("fib.py", "python", content))

	report := protocols.ScanCost(corpus, domain.DefaultConfig())

	require.Len(t, report.Units, 1)
	assert.Equal(t, "O(2^n) or O(n!)", report.Units[0].BigO)

	rec := findingsByCategory(report.Findings, "RECURSIVE_BRANCHING")
	require.Len(t, rec, 1)
	assert.Equal(t, 8, rec[0].Severity)
	assert.Contains(t, rec[0].Evidence, "2 sites")
}

func TestScanCost_SingleSelfCallIsNotBranching(t *testing.T) {
	content := strings.Join([]string{
		"def countdown(n):",
		"    if n <= 0:",
		"        return",
		"    countdown(n - 1)",
	}, "\n")
	corpus := corpusOf(src("tail.py", "python", content))

	report := protocols.ScanCost(corpus, domain.DefaultConfig())

	assert.Empty(t, findingsByCategory(report.Findings, "RECURSIVE_BRANCHING"))
}

func TestScanCost_GoFunctionsAndMethods(t *testing.T) {
	content := strings.Join([]string{
		"func Sum(xs []int) int {",
		"\ttotal := 0",
		"\tfor _, x := range xs {",
		"\t\ttotal += x",
		"\t}",
		"\treturn total",
		"}",
		"",
		"func (s *Store) Get(key string) (string, bool) {",
		"\tv, ok := s.m[key]",
		"\treturn v, ok",
		"}",
	}, "\n")
	corpus := corpusOf(src("store.go", "go", content))

	report := protocols.ScanCost(corpus, domain.DefaultConfig())

	require.Len(t, report.Units, 2)
	assert.Equal(t, "Sum", report.Units[0].Name)
	assert.Equal(t, 2, report.Units[0].Complexity)
	assert.Equal(t, "O(n)", report.Units[0].BigO)
	assert.Equal(t, "Get", report.Units[1].Name)
	assert.Equal(t, "O(1)", report.Units[1].BigO)
}

func TestScanCost_JavaScriptArrowAndFunction(t *testing.T) {
	content := strings.Join([]string{
		"const load = async (id) => {",
		"  if (!id) {",
		"    return null;",
		"  }",
		"  return fetch(id);",
		"};",
		"",
		"function render(items) {",
		"  for (const it of items) {",
		"    draw(it);",
		"  }",
		"}",
	}, "\n")
	corpus := corpusOf(src("ui.js", "javascript", content))

	report := protocols.ScanCost(corpus, domain.DefaultConfig())

	require.Len(t, report.Units, 2)
	names := []string{report.Units[0].Name, report.Units[1].Name}
	assert.ElementsMatch(t, []string{"load", "render"}, names)
}

func TestScanCost_HeavyImportOnlyInTrivialFiles(t *testing.T) {
	trivial := src("script.py", "python", "import tensorflow\n\nx = 1\n")

	var b strings.Builder
	b.WriteString("import tensorflow\n\ndef busy(x):\n")
	for i := 0; i < 10; i++ {
		b.WriteString("    if x:\n        x -= 1\n")
	}
	busy := src("model.py", "python", b.String())

	report := protocols.ScanCost(corpusOf(trivial, busy), domain.DefaultConfig())

	heavy := findingsByCategory(report.Findings, "HEAVY_IMPORT")
	require.Len(t, heavy, 1)
	assert.Equal(t, "script.py", heavy[0].File)
	assert.Equal(t, 3, heavy[0].Severity)
	assert.Equal(t, "tensorflow: very heavy ML framework", heavy[0].Evidence)
}

func TestScanCost_ConfiguredHeavyImportMerges(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.HeavyImports = map[string]string{"leftpad": "questionable dependency"}

	corpus := corpusOf(src("tiny.js", "javascript", `const lp = require("leftpad");`+"\n"))

	report := protocols.ScanCost(corpus, cfg)

	heavy := findingsByCategory(report.Findings, "HEAVY_IMPORT")
	require.Len(t, heavy, 1)
	assert.Equal(t, "leftpad: questionable dependency", heavy[0].Evidence)
}

func TestScanCost_MaintainabilityIndex(t *testing.T) {
	content := strings.Join([]string{
		"def a(x):",
		"    if x:",
		"        return 1",
		"    return 0",
		"",
		"def b(y):",
		"    if y:",
		"        return 2",
		"    return 0",
	}, "\n")
	corpus := corpusOf(src("calm.py", "python", content))

	report := protocols.ScanCost(corpus, domain.DefaultConfig())

	// Average complexity 2 with no oversized files: MI = 100 - 6 = 94.
	assert.InDelta(t, 94.0, report.Metrics["maintainability_index"], 0.001)
	assert.InDelta(t, 3.6, report.Score, 0.001)
}

func TestScanCost_MinifiedFileSkipped(t *testing.T) {
	corpus := corpusOf(src("bundle.min.js", "javascript", strings.Repeat("x", 10001)))

	report := protocols.ScanCost(corpus, domain.DefaultConfig())

	assert.Empty(t, report.Units)
	require.Len(t, report.Notes, 1)
	assert.Contains(t, report.Notes[0], "cannot tokenize")
}

func TestScanCost_UnitsOrderedByComplexity(t *testing.T) {
	content := strings.Join([]string{
		"def light(x):",
		"    return x",
		"",
		"def heavy(x):",
		"    if x and x > 1 and x > 2:",
		"        return x",
		"    return 0",
	}, "\n")
	corpus := corpusOf(src("mix.py", "python", content))

	report := protocols.ScanCost(corpus, domain.DefaultConfig())

	require.Len(t, report.Units, 2)
	assert.Equal(t, "heavy", report.Units[0].Name)
	assert.Greater(t, report.Units[0].Complexity, report.Units[1].Complexity)
}
