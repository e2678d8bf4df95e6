// Package code turns source text into syntax trees for the analysis engine.
package code

// Language constants for the grammars compiled into the binary.
const (
	LangPython     = "python"
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
	LangGo         = "go"
)
