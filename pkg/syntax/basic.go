package syntax

// Basic is an in-memory Node. It backs synthetic trees in tests and lets
// callers hand the engine trees produced by something other than tree-sitter.
type Basic struct {
	Type     string
	Start    uint
	End      uint
	Pos      Point
	Field    string // role of this node within its parent, if any
	Children []*Basic
}

// NewBasic builds a Basic node with the given children.
func NewBasic(kind string, children ...*Basic) *Basic {
	return &Basic{Type: kind, Children: children}
}

// WithSpan sets the byte span and returns b.
func (b *Basic) WithSpan(start, end uint) *Basic {
	b.Start, b.End = start, end
	return b
}

// WithField sets the field role and returns b.
func (b *Basic) WithField(name string) *Basic {
	b.Field = name
	return b
}

func (b *Basic) Kind() string      { return b.Type }
func (b *Basic) StartByte() uint   { return b.Start }
func (b *Basic) EndByte() uint     { return b.End }
func (b *Basic) StartPoint() Point { return b.Pos }
func (b *Basic) ChildCount() int   { return len(b.Children) }

func (b *Basic) Child(i int) Node {
	if i < 0 || i >= len(b.Children) || b.Children[i] == nil {
		return nil
	}
	return b.Children[i]
}

func (b *Basic) ChildByField(name string) Node {
	for _, c := range b.Children {
		if c != nil && c.Field == name {
			return c
		}
	}
	return nil
}
