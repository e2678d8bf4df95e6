package rules

// The javascript dialect also serves typescript; both grammars share these
// node kinds.
func init() {
	registerDialect("javascript", []Spec{
		{
			Category: CategoryDynamicEval,
			Kind:     KindCallCallee,
			Kinds:    []string{"call_expression"},
			Capture:  "function",
			Names:    []string{"eval"},
		},
		{
			Category: CategoryInjectableQuery,
			Kind:     KindStringSubstring,
			Kinds:    []string{"string", "template_string"},
			Pattern:  queryPattern,
		},
		{
			Category:  CategoryHardcodedSecret,
			Kind:      KindStringCharset,
			Kinds:     []string{"string", "template_string"},
			Charset:   base64Charset,
			MinLength: secretMinLength,
		},
		{
			Category: CategoryWeakRandom,
			Kind:     KindCallCallee,
			Kinds:    []string{"call_expression"},
			Capture:  "function",
			Names:    []string{"Math.random"},
		},
	})
}
