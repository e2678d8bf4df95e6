// Package ffi provides C-compatible bindings for codeparser.
// These can be called from other runtimes via node-ffi, ctypes or similar.
//
// Build as shared library:
//
//	go build -buildmode=c-shared -o libcodeparser.so ./ffi
//
// Every returned string is allocated with malloc and must be released with
// CodeParserFree.
package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"unsafe"

	"github.com/jestersw/codeparser/pkg/code"
	"github.com/jestersw/codeparser/pkg/engine"
)

var (
	engineOnce sync.Once
	globalEng  *engine.Engine
	engineErr  error
)

func sharedEngine() (*engine.Engine, error) {
	engineOnce.Do(func() {
		globalEng, engineErr = engine.New()
	})
	return globalEng, engineErr
}

type errorReply struct {
	Error       string   `json:"error"`
	Kind        string   `json:"kind"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func errorJSON(err error) string {
	reply := errorReply{Error: err.Error(), Kind: "internal"}
	var unsupported *engine.UnsupportedLanguageError
	var parseErr *code.ParseError
	switch {
	case errors.As(err, &unsupported):
		reply.Kind = "unsupported_language"
		reply.Suggestions = unsupported.Suggestions
	case errors.As(err, &parseErr):
		reply.Kind = "parse"
	}
	data, _ := json.Marshal(reply)
	return string(data)
}

func analyzeJSON(lang, source string) string {
	eng, err := sharedEngine()
	if err != nil {
		return errorJSON(err)
	}
	report, err := eng.Analyze(context.Background(), lang, []byte(source))
	if err != nil {
		return errorJSON(err)
	}
	data, err := json.Marshal(report)
	if err != nil {
		return errorJSON(err)
	}
	return string(data)
}

func languagesJSON() string {
	eng, err := sharedEngine()
	if err != nil {
		return errorJSON(err)
	}
	data, err := json.Marshal(eng.Languages())
	if err != nil {
		return errorJSON(err)
	}
	return string(data)
}

// CodeParserAnalyze returns the JSON report for source, or {"error": ...}.
//
//export CodeParserAnalyze
func CodeParserAnalyze(lang, source *C.char) *C.char {
	return C.CString(analyzeJSON(C.GoString(lang), C.GoString(source)))
}

//export CodeParserLanguages
func CodeParserLanguages() *C.char {
	return C.CString(languagesJSON())
}

//export CodeParserFree
func CodeParserFree(s *C.char) {
	C.free(unsafe.Pointer(s))
}

func main() {}
