package parser

// NodeID indexes into a Store. IDs are only meaningful within the store
// that produced them.
type NodeID int32

const NoNode NodeID = -1

type Kind uint8

const (
	KindModule Kind = iota
	KindImport
	KindFromImport
	KindImportItem
	KindFunction
	KindClass
	KindAssign
	KindGlobal
	KindNonlocal
	KindComprehension
	KindLambda
	KindName
	KindAttribute
	KindMainGuard
	KindStatement
)

func (k Kind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindImport:
		return "import"
	case KindFromImport:
		return "from-import"
	case KindImportItem:
		return "import-item"
	case KindFunction:
		return "function"
	case KindClass:
		return "class"
	case KindAssign:
		return "assign"
	case KindGlobal:
		return "global"
	case KindNonlocal:
		return "nonlocal"
	case KindComprehension:
		return "comprehension"
	case KindLambda:
		return "lambda"
	case KindName:
		return "name"
	case KindAttribute:
		return "attribute"
	case KindMainGuard:
		return "main-guard"
	case KindStatement:
		return "statement"
	}
	return "unknown"
}

// Node is one entry in the store. Which fields are populated depends on
// Kind:
//
//   - KindImport: Name is the dotted module, Parts its segments, Alias the
//     "as" name if any.
//   - KindFromImport: Name is the source module ("" for bare relative
//     imports), Relative counts leading dots, Children hold KindImportItem
//     nodes, Wildcard marks "import *".
//   - KindFunction / KindClass: Name plus NameStart/NameEnd locate the
//     identifier; Params hold parameter bindings, Outer holds references
//     evaluated in the enclosing scope (decorators, defaults, annotations,
//     base classes), Children hold the body.
//   - KindAssign: a single bound name (assignment target, loop variable,
//     with/except alias, parameter, walrus target).
//   - KindName / KindAttribute: a read reference; Parts carries the full
//     dotted chain for attributes, NameStart/NameEnd span the head.
//   - KindStatement: an executable statement; Children mix nested
//     statements, bindings and references.
type Node struct {
	Kind     Kind
	Name     string
	Alias    string
	Parts    []string
	Relative int
	Wildcard bool
	Doc      bool
	// Write marks a reference produced by an attribute or subscript
	// assignment target; the assignment mutates the object instead of
	// binding a name.
	Write bool

	Line int
	Col  int

	Start     uint
	End       uint
	NameStart uint
	NameEnd   uint

	Children []NodeID
	Outer    []NodeID
	Params   []NodeID
}

// Dynamic records a call-site that imports at runtime, which a static
// merge cannot honor.
type Dynamic struct {
	Name string
	Line int
}

// Store is the flat arena of nodes for one parsed file. The root is
// always a KindModule node whose Children are the top-level statements.
type Store struct {
	Path     string
	Source   []byte
	Dynamics []Dynamic

	nodes []Node
	root  NodeID
}

func (s *Store) Root() NodeID { return s.root }

func (s *Store) Node(id NodeID) *Node { return &s.nodes[id] }

func (s *Store) Len() int { return len(s.nodes) }

// Text returns the source text the node spans.
func (s *Store) Text(id NodeID) string {
	n := &s.nodes[id]
	return string(s.Source[n.Start:n.End])
}

func (s *Store) add(n Node) NodeID {
	s.nodes = append(s.nodes, n)
	return NodeID(len(s.nodes) - 1)
}
