package rules

func init() {
	registerDialect("python", []Spec{
		{
			Category: CategoryDynamicEval,
			Kind:     KindCallCallee,
			Kinds:    []string{"call"},
			Capture:  "function",
			Names:    []string{"eval", "exec"},
		},
		{
			Category: CategoryInjectableQuery,
			Kind:     KindStringSubstring,
			Kinds:    []string{"string"},
			Pattern:  queryPattern,
		},
		{
			Category:  CategoryHardcodedSecret,
			Kind:      KindStringCharset,
			Kinds:     []string{"string"},
			Charset:   base64Charset,
			MinLength: secretMinLength,
		},
		{
			Category: CategoryWeakRandom,
			Kind:     KindCallCallee,
			Kinds:    []string{"call"},
			Capture:  "function",
			Names: []string{
				"random.random",
				"random.randint",
				"random.randrange",
				"random.choice",
				"random.choices",
				"random.uniform",
				"random.getrandbits",
			},
		},
	})
}
