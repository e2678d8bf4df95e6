package rules

// Catalog is an ordered, immutable set of compiled rules. It is safe for
// concurrent use.
type Catalog struct {
	rules []*Rule
}

// NewCatalog compiles specs in order. The first invalid spec aborts
// construction with a *RuleCompilationError.
func NewCatalog(specs ...Spec) (*Catalog, error) {
	c := &Catalog{rules: make([]*Rule, 0, len(specs))}
	for i, s := range specs {
		r, err := compile(s, i)
		if err != nil {
			return nil, err
		}
		c.rules = append(c.rules, r)
	}
	return c, nil
}

// Extend returns a new catalog with specs appended after the existing rules.
// The receiver is unchanged.
func (c *Catalog) Extend(specs ...Spec) (*Catalog, error) {
	out := &Catalog{rules: make([]*Rule, 0, c.Len()+len(specs))}
	if c != nil {
		out.rules = append(out.rules, c.rules...)
	}
	base := len(out.rules)
	for i, s := range specs {
		r, err := compile(s, base+i)
		if err != nil {
			return nil, err
		}
		out.rules = append(out.rules, r)
	}
	return out, nil
}

// Rules returns the rules in catalog order. The returned slice must not be
// modified.
func (c *Catalog) Rules() []*Rule {
	if c == nil {
		return nil
	}
	return c.rules
}

// Len returns the number of rules.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rules)
}

// Categories returns the distinct categories in first-seen order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range c.Rules() {
		if _, ok := seen[r.Category]; ok {
			continue
		}
		seen[r.Category] = struct{}{}
		out = append(out, r.Category)
	}
	return out
}

// Has reports whether any rule carries the category.
func (c *Catalog) Has(category string) bool {
	for _, r := range c.Rules() {
		if r.Category == category {
			return true
		}
	}
	return false
}

// SeverityOf returns the severity of the first rule with the category, or the
// category default.
func (c *Catalog) SeverityOf(category string) string {
	for _, r := range c.Rules() {
		if r.Category == category {
			return r.Severity
		}
	}
	return DefaultSeverity(category)
}
