package rules

// Go has no eval, so the go dialect carries no dynamic evaluation rule.
func init() {
	registerDialect("go", []Spec{
		{
			Category: CategoryInjectableQuery,
			Kind:     KindStringSubstring,
			Kinds:    []string{"interpreted_string_literal", "raw_string_literal"},
			Pattern:  queryPattern,
		},
		{
			Category:  CategoryHardcodedSecret,
			Kind:      KindStringCharset,
			Kinds:     []string{"interpreted_string_literal", "raw_string_literal"},
			Charset:   base64Charset,
			MinLength: secretMinLength,
		},
		{
			Category: CategoryWeakRandom,
			Kind:     KindCallCallee,
			Kinds:    []string{"call_expression"},
			Capture:  "function",
			Names: []string{
				"rand.Int", "rand.Intn", "rand.IntN", "rand.N",
				"rand.Int31", "rand.Int31n", "rand.Int63", "rand.Int63n",
				"rand.Uint32", "rand.Uint64",
				"rand.Float32", "rand.Float64",
				"rand.Perm", "rand.Shuffle",
			},
		},
	})
}
