package rules

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	aho "github.com/petar-dambovaliev/aho-corasick"
)

// predicate tests the text of a captured node.
type predicate interface {
	test(text string) bool
}

type namesEqual map[string]struct{}

func (p namesEqual) test(text string) bool {
	_, ok := p[text]
	return ok
}

// substring matches when the regex matches or any literal occurs.
type substring struct {
	re *regexp.Regexp

	// automaton iterators are not documented as goroutine-safe
	mu sync.Mutex
	ac *aho.AhoCorasick
}

func newSubstring(pattern string, literals []string) (*substring, error) {
	p := &substring{}
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		p.re = re
	}
	if len(literals) > 0 {
		for _, l := range literals {
			if l == "" {
				return nil, fmt.Errorf("empty literal")
			}
		}
		builder := aho.NewAhoCorasickBuilder(aho.Opts{DFA: true})
		ac := builder.Build(literals)
		p.ac = &ac
	}
	return p, nil
}

func (p *substring) test(text string) bool {
	if p.re != nil && p.re.MatchString(text) {
		return true
	}
	if p.ac == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ac.FindAll(text)) > 0
}

// charsetLength matches literal content made only of allowed bytes.
type charsetLength struct {
	allowed [256]bool
	min     int
}

func (p *charsetLength) test(text string) bool {
	content := LiteralContent(text)
	if len(content) < p.min {
		return false
	}
	for i := 0; i < len(content); i++ {
		if !p.allowed[content[i]] {
			return false
		}
	}
	return true
}

// parseCharset expands a class such as "A-Za-z0-9+/=" into a byte table.
// Only printable ASCII is accepted.
func parseCharset(class string) ([256]bool, error) {
	var set [256]bool
	if class == "" {
		return set, fmt.Errorf("empty charset")
	}
	for i := 0; i < len(class); i++ {
		lo := class[i]
		if lo < 0x20 || lo > 0x7e {
			return set, fmt.Errorf("non-printable or non-ASCII byte %q at %d", lo, i)
		}
		if i+2 < len(class) && class[i+1] == '-' {
			hi := class[i+2]
			if hi < 0x20 || hi > 0x7e {
				return set, fmt.Errorf("non-printable or non-ASCII byte %q at %d", hi, i+2)
			}
			if lo > hi {
				return set, fmt.Errorf("inverted range %c-%c", lo, hi)
			}
			for c := int(lo); c <= int(hi); c++ {
				set[c] = true
			}
			i += 2
			continue
		}
		set[lo] = true
	}
	return set, nil
}

var literalQuotes = []string{`"""`, `'''`, `"`, `'`, "`"}

// LiteralContent strips string prefixes (r, b, u, f and combinations) and
// the surrounding quotes from a string literal. Text that does not look like
// a quoted literal is returned unchanged.
func LiteralContent(text string) string {
	s := strings.TrimLeft(text, "rRbBuUfF")
	for _, q := range literalQuotes {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return text
}
