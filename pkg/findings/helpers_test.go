package findings

import (
	"strings"

	"github.com/jestersw/codeparser/pkg/syntax"
)

// leaf returns a node covering the first occurrence of text in src.
func leaf(src, kind, text string) *syntax.Basic {
	start := strings.Index(src, text)
	if start < 0 {
		panic("text not in source: " + text)
	}
	n := syntax.NewBasic(kind).WithSpan(uint(start), uint(start+len(text)))
	n.Pos = pointAt(src, start)
	return n
}

func span(n *syntax.Basic, src string, start, end int) *syntax.Basic {
	n.WithSpan(uint(start), uint(end))
	n.Pos = pointAt(src, start)
	return n
}

func pointAt(src string, offset int) syntax.Point {
	row := strings.Count(src[:offset], "\n")
	col := offset - (strings.LastIndex(src[:offset], "\n") + 1)
	return syntax.Point{Row: uint(row), Column: uint(col)}
}

// evalProgram is a hand-built javascript tree for:
//
//	if (x) {
//	  eval(userInput);
//	}
const evalSource = "if (x) {\n  eval(userInput);\n}\n"

func evalProgram() *syntax.Basic {
	src := evalSource
	callStart := strings.Index(src, "eval(")
	callEnd := strings.Index(src, ";")

	call := span(syntax.NewBasic("call_expression",
		leaf(src, "identifier", "eval").WithField("function"),
		span(syntax.NewBasic("arguments",
			leaf(src, "(", "("),
			leaf(src, "identifier", "userInput"),
		), src, callStart+4, callEnd).WithField("arguments"),
	), src, callStart, callEnd)

	block := span(syntax.NewBasic("statement_block",
		span(syntax.NewBasic("expression_statement", call), src, callStart, callEnd+1),
	), src, strings.Index(src, "{"), len(src)-1)

	ifStmt := span(syntax.NewBasic("if_statement",
		span(syntax.NewBasic("parenthesized_expression", leaf(src, "identifier", "x")), src, 3, 6).WithField("condition"),
		block.WithField("consequence"),
	), src, 0, len(src)-1)

	return span(syntax.NewBasic("program", ifStmt), src, 0, len(src))
}
