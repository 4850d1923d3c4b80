package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// build converts a tree-sitter parse tree into a Store. The conversion
// keeps only what later passes need: bindings, references, imports, scope
// openers and statement spans. Everything else collapses into the span of
// its enclosing statement.
func build(root *sitter.Node, source []byte, path string) *Store {
	b := &builder{
		store: &Store{Path: path, Source: source},
		src:   source,
	}
	mod := b.newNode(KindModule, root)
	var kids []NodeID
	b.block(root, &kids)
	b.store.nodes[mod].Children = kids
	b.store.root = mod
	return b.store
}

type builder struct {
	store *Store
	src   []byte
}

func (b *builder) newNode(kind Kind, n *sitter.Node) NodeID {
	return b.store.add(Node{
		Kind:  kind,
		Line:  int(n.StartPosition().Row) + 1,
		Col:   int(n.StartPosition().Column) + 1,
		Start: n.StartByte(),
		End:   n.EndByte(),
	})
}

func (b *builder) text(n *sitter.Node) string {
	return string(b.src[n.StartByte():n.EndByte()])
}

func (b *builder) block(n *sitter.Node, out *[]NodeID) {
	for i := uint(0); i < n.ChildCount(); i++ {
		b.stmt(n.Child(i), out)
	}
}

func (b *builder) stmt(n *sitter.Node, out *[]NodeID) {
	switch n.Kind() {
	case "import_statement":
		b.importStmt(n, out)
	case "import_from_statement", "future_import_statement":
		*out = append(*out, b.fromImport(n))
	case "function_definition":
		*out = append(*out, b.function(n, n, nil))
	case "class_definition":
		*out = append(*out, b.class(n, n, nil))
	case "decorated_definition":
		b.decorated(n, out)
	case "expression_statement":
		*out = append(*out, b.exprStmt(n))
	case "global_statement":
		*out = append(*out, b.scopeDecl(KindGlobal, n))
	case "nonlocal_statement":
		*out = append(*out, b.scopeDecl(KindNonlocal, n))
	case "if_statement":
		if guard := b.mainGuard(n); guard != NoNode {
			*out = append(*out, guard)
			return
		}
		*out = append(*out, b.generic(n))
	case "for_statement":
		*out = append(*out, b.forStmt(n))
	case "with_statement":
		*out = append(*out, b.withStmt(n))
	case "while_statement", "try_statement", "match_statement",
		"return_statement", "raise_statement", "assert_statement",
		"delete_statement", "print_statement", "exec_statement",
		"pass_statement", "break_statement", "continue_statement":
		*out = append(*out, b.generic(n))
	case "comment":
		// dropped; provenance comments are regenerated on emit
	default:
		if n.IsNamed() {
			*out = append(*out, b.generic(n))
		}
	}
}

// importStmt emits one KindImport per imported module so aliases stay
// attached to their own name.
func (b *builder) importStmt(n *sitter.Node, out *[]NodeID) {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		switch child.Kind() {
		case "dotted_name", "identifier":
			id := b.newNode(KindImport, n)
			node := b.store.Node(id)
			node.Name = b.text(child)
			node.Parts = strings.Split(node.Name, ".")
			node.Line = int(child.StartPosition().Row) + 1
			// the bound name is the first segment
			node.NameStart = child.StartByte()
			node.NameEnd = child.StartByte() + uint(len(node.Parts[0]))
			*out = append(*out, id)
		case "aliased_import":
			name := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			if name == nil {
				continue
			}
			id := b.newNode(KindImport, n)
			node := b.store.Node(id)
			node.Name = b.text(name)
			node.Parts = strings.Split(node.Name, ".")
			if alias != nil {
				node.Alias = b.text(alias)
				node.NameStart = alias.StartByte()
				node.NameEnd = alias.EndByte()
			}
			node.Line = int(child.StartPosition().Row) + 1
			*out = append(*out, id)
		}
	}
}

func (b *builder) fromImport(n *sitter.Node) NodeID {
	id := b.newNode(KindFromImport, n)

	if n.Kind() == "future_import_statement" {
		b.store.Node(id).Name = "__future__"
	} else if mod := n.ChildByFieldName("module_name"); mod != nil {
		if mod.Kind() == "relative_import" {
			dots, name := b.splitRelative(mod)
			node := b.store.Node(id)
			node.Relative = dots
			node.Name = name
		} else {
			b.store.Node(id).Name = b.text(mod)
		}
	}

	var items []NodeID
	seenImport := false
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child.Kind() == "import" {
			seenImport = true
			continue
		}
		if !seenImport {
			continue
		}
		switch child.Kind() {
		case "wildcard_import":
			b.store.Node(id).Wildcard = true
		case "dotted_name", "identifier":
			item := b.newNode(KindImportItem, child)
			node := b.store.Node(item)
			node.Name = b.text(child)
			node.NameStart = child.StartByte()
			node.NameEnd = child.EndByte()
			items = append(items, item)
		case "aliased_import":
			name := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			if name == nil {
				continue
			}
			item := b.newNode(KindImportItem, child)
			node := b.store.Node(item)
			node.Name = b.text(name)
			node.NameStart = name.StartByte()
			node.NameEnd = name.EndByte()
			if alias != nil {
				node.Alias = b.text(alias)
				node.NameStart = alias.StartByte()
				node.NameEnd = alias.EndByte()
			}
			items = append(items, item)
		}
	}
	b.store.Node(id).Children = items
	return id
}

func (b *builder) splitRelative(n *sitter.Node) (int, string) {
	dots := 0
	name := ""
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		switch child.Kind() {
		case "import_prefix":
			dots = len(b.text(child))
		case "dotted_name":
			name = b.text(child)
		}
	}
	return dots, name
}

func (b *builder) decorated(n *sitter.Node, out *[]NodeID) {
	var decorators []NodeID
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child.Kind() != "decorator" {
			continue
		}
		for j := uint(0); j < child.ChildCount(); j++ {
			sub := child.Child(j)
			if sub.IsNamed() {
				b.refs(sub, &decorators)
			}
		}
	}

	def := n.ChildByFieldName("definition")
	if def == nil {
		*out = append(*out, b.generic(n))
		return
	}
	var id NodeID
	switch def.Kind() {
	case "function_definition":
		id = b.function(def, n, decorators)
	case "class_definition":
		id = b.class(def, n, decorators)
	default:
		*out = append(*out, b.generic(n))
		return
	}
	*out = append(*out, id)
}

// function builds a KindFunction node. span supplies the emitted byte
// range, which is the decorated_definition when decorators are present.
func (b *builder) function(n, span *sitter.Node, decorators []NodeID) NodeID {
	id := b.newNode(KindFunction, span)

	var outer, params []NodeID
	outer = append(outer, decorators...)

	if name := n.ChildByFieldName("name"); name != nil {
		node := b.store.Node(id)
		node.Name = b.text(name)
		node.NameStart = name.StartByte()
		node.NameEnd = name.EndByte()
	}
	if ps := n.ChildByFieldName("parameters"); ps != nil {
		b.parameters(ps, &params, &outer)
	}
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		b.refs(ret, &outer)
	}

	var kids []NodeID
	if body := n.ChildByFieldName("body"); body != nil {
		b.block(body, &kids)
	}

	node := b.store.Node(id)
	node.Outer = outer
	node.Params = params
	node.Children = kids
	return id
}

func (b *builder) class(n, span *sitter.Node, decorators []NodeID) NodeID {
	id := b.newNode(KindClass, span)

	var outer []NodeID
	outer = append(outer, decorators...)

	if name := n.ChildByFieldName("name"); name != nil {
		node := b.store.Node(id)
		node.Name = b.text(name)
		node.NameStart = name.StartByte()
		node.NameEnd = name.EndByte()
	}
	if bases := n.ChildByFieldName("superclasses"); bases != nil {
		b.refs(bases, &outer)
	}

	var kids []NodeID
	if body := n.ChildByFieldName("body"); body != nil {
		b.block(body, &kids)
	}

	node := b.store.Node(id)
	node.Outer = outer
	node.Children = kids
	return id
}

func (b *builder) parameters(n *sitter.Node, params, outer *[]NodeID) {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		switch child.Kind() {
		case "identifier":
			*params = append(*params, b.binding(child))
		case "typed_parameter":
			for j := uint(0); j < child.ChildCount(); j++ {
				sub := child.Child(j)
				if sub.Kind() == "identifier" || strings.HasSuffix(sub.Kind(), "_splat_pattern") {
					b.bindings(sub, params, outer)
					break
				}
			}
			if typ := child.ChildByFieldName("type"); typ != nil {
				b.refs(typ, outer)
			}
		case "default_parameter", "typed_default_parameter":
			if name := child.ChildByFieldName("name"); name != nil {
				b.bindings(name, params, outer)
			}
			if typ := child.ChildByFieldName("type"); typ != nil {
				b.refs(typ, outer)
			}
			if val := child.ChildByFieldName("value"); val != nil {
				b.refs(val, outer)
			}
		case "list_splat_pattern", "dictionary_splat_pattern", "tuple_pattern":
			b.bindings(child, params, outer)
		}
	}
}

func (b *builder) exprStmt(n *sitter.Node) NodeID {
	id := b.newNode(KindStatement, n)
	var kids []NodeID

	named := firstNamedChild(n)
	if named != nil && named.Kind() == "string" && n.NamedChildCount() == 1 {
		b.store.Node(id).Doc = true
		return id
	}

	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if !child.IsNamed() {
			continue
		}
		switch child.Kind() {
		case "assignment", "augmented_assignment":
			b.assignment(child, &kids)
		default:
			b.refs(child, &kids)
		}
	}
	b.store.Node(id).Children = kids
	return id
}

func (b *builder) assignment(n *sitter.Node, out *[]NodeID) {
	left := n.ChildByFieldName("left")
	if left != nil {
		if n.Kind() == "augmented_assignment" {
			// the target is read before being re-bound
			b.refs(left, out)
		}
		b.bindings(left, out, out)
	}
	if typ := n.ChildByFieldName("type"); typ != nil {
		b.refs(typ, out)
	}
	if right := n.ChildByFieldName("right"); right != nil {
		if right.Kind() == "assignment" {
			b.assignment(right, out)
		} else {
			b.refs(right, out)
		}
	}
}

func (b *builder) binding(n *sitter.Node) NodeID {
	id := b.newNode(KindAssign, n)
	node := b.store.Node(id)
	node.Name = b.text(n)
	node.NameStart = n.StartByte()
	node.NameEnd = n.EndByte()
	return id
}

// bindings collects assignment targets. Subscript and attribute targets
// mutate an existing object rather than bind a name, so they contribute
// references instead.
func (b *builder) bindings(n *sitter.Node, out, refs *[]NodeID) {
	switch n.Kind() {
	case "identifier":
		*out = append(*out, b.binding(n))
	case "pattern_list", "tuple_pattern", "list_pattern",
		"list_splat_pattern", "dictionary_splat_pattern", "as_pattern_target":
		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			if child.IsNamed() {
				b.bindings(child, out, refs)
			}
		}
	case "subscript", "attribute":
		before := len(*refs)
		b.refs(n, refs)
		for _, id := range (*refs)[before:] {
			b.store.Node(id).Write = true
		}
	}
}

// scopeDecl keeps both the declared names and their spans; the names
// drive scope redirection, the spans let renames reach the declaration.
func (b *builder) scopeDecl(kind Kind, n *sitter.Node) NodeID {
	id := b.newNode(kind, n)
	var parts []string
	var kids []NodeID
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child.Kind() != "identifier" {
			continue
		}
		parts = append(parts, b.text(child))
		name := b.newNode(KindName, child)
		nn := b.store.Node(name)
		nn.Name = b.text(child)
		nn.Parts = []string{nn.Name}
		nn.NameStart = child.StartByte()
		nn.NameEnd = child.EndByte()
		kids = append(kids, name)
	}
	node := b.store.Node(id)
	node.Parts = parts
	node.Children = kids
	return id
}

func (b *builder) mainGuard(n *sitter.Node) NodeID {
	cond := n.ChildByFieldName("condition")
	if cond == nil || !isMainCondition(b.text(cond)) {
		return NoNode
	}
	// an elif/else after the guard means it is ordinary control flow
	if n.ChildByFieldName("alternative") != nil {
		return NoNode
	}
	id := b.newNode(KindMainGuard, n)
	var kids []NodeID
	if body := n.ChildByFieldName("consequence"); body != nil {
		b.block(body, &kids)
	}
	b.store.Node(id).Children = kids
	return id
}

func isMainCondition(text string) bool {
	s := strings.ReplaceAll(text, " ", "")
	s = strings.ReplaceAll(s, "'", `"`)
	return s == `__name__=="__main__"` || s == `"__main__"==__name__`
}

func (b *builder) forStmt(n *sitter.Node) NodeID {
	id := b.newNode(KindStatement, n)
	var kids []NodeID
	if left := n.ChildByFieldName("left"); left != nil {
		b.bindings(left, &kids, &kids)
	}
	if right := n.ChildByFieldName("right"); right != nil {
		b.refs(right, &kids)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		b.block(body, &kids)
	}
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		b.genericChildren(alt, &kids)
	}
	b.store.Node(id).Children = kids
	return id
}

func (b *builder) withStmt(n *sitter.Node) NodeID {
	id := b.newNode(KindStatement, n)
	var kids []NodeID
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child.Kind() == "with_clause" {
			b.withClause(child, &kids)
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		b.block(body, &kids)
	}
	b.store.Node(id).Children = kids
	return id
}

func (b *builder) withClause(n *sitter.Node, out *[]NodeID) {
	for i := uint(0); i < n.ChildCount(); i++ {
		item := n.Child(i)
		if item.Kind() != "with_item" {
			continue
		}
		val := item.ChildByFieldName("value")
		if val == nil {
			continue
		}
		if val.Kind() == "as_pattern" {
			b.asPattern(val, out)
		} else {
			b.refs(val, out)
		}
	}
}

func (b *builder) asPattern(n *sitter.Node, out *[]NodeID) {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if !child.IsNamed() {
			continue
		}
		if child.Kind() == "as_pattern_target" {
			b.bindings(child, out, out)
		} else {
			b.refs(child, out)
		}
	}
}

// generic covers statements with no binding semantics of their own:
// conditionals, loops, try blocks, returns. Nested blocks re-enter stmt
// dispatch so definitions and imports inside them are still cataloged.
func (b *builder) generic(n *sitter.Node) NodeID {
	id := b.newNode(KindStatement, n)
	var kids []NodeID
	b.genericChildren(n, &kids)
	b.store.Node(id).Children = kids
	return id
}

func (b *builder) genericChildren(n *sitter.Node, out *[]NodeID) {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if !child.IsNamed() {
			continue
		}
		switch child.Kind() {
		case "block":
			b.block(child, out)
		case "elif_clause", "else_clause", "finally_clause", "case_clause":
			b.genericChildren(child, out)
		case "except_clause", "except_group_clause":
			b.exceptClause(child, out)
		case "comment":
		default:
			b.refs(child, out)
		}
	}
}

func (b *builder) exceptClause(n *sitter.Node, out *[]NodeID) {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if !child.IsNamed() {
			continue
		}
		switch child.Kind() {
		case "block":
			b.block(child, out)
		case "as_pattern":
			b.asPattern(child, out)
		default:
			b.refs(child, out)
		}
	}
}

// refs collects read references from an expression subtree.
func (b *builder) refs(n *sitter.Node, out *[]NodeID) {
	switch n.Kind() {
	case "identifier":
		id := b.newNode(KindName, n)
		node := b.store.Node(id)
		node.Name = b.text(n)
		node.Parts = []string{node.Name}
		node.NameStart = n.StartByte()
		node.NameEnd = n.EndByte()
		*out = append(*out, id)
	case "attribute":
		b.attribute(n, out)
	case "call":
		b.call(n, out)
	case "keyword_argument":
		if val := n.ChildByFieldName("value"); val != nil {
			b.refs(val, out)
		}
	case "lambda":
		*out = append(*out, b.lambda(n))
	case "list_comprehension", "set_comprehension",
		"dictionary_comprehension", "generator_expression":
		*out = append(*out, b.comprehension(n))
	case "named_expression":
		if name := n.ChildByFieldName("name"); name != nil {
			b.bindings(name, out, out)
		}
		if val := n.ChildByFieldName("value"); val != nil {
			b.refs(val, out)
		}
	case "string":
		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			if child.Kind() == "interpolation" {
				b.genericRefs(child, out)
			}
		}
	case "comment":
	default:
		b.genericRefs(n, out)
	}
}

func (b *builder) genericRefs(n *sitter.Node, out *[]NodeID) {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child.IsNamed() {
			b.refs(child, out)
		}
	}
}

// attribute flattens a dotted chain rooted at an identifier into one
// KindAttribute reference. Chains rooted at calls or subscripts dissolve
// into the references of their root expression.
func (b *builder) attribute(n *sitter.Node, out *[]NodeID) {
	parts, root := attributeChain(n, b.src)
	if parts == nil {
		if root != nil {
			b.refs(root, out)
		}
		return
	}
	id := b.newNode(KindAttribute, n)
	node := b.store.Node(id)
	node.Name = parts[0]
	node.Parts = parts
	node.NameStart = n.StartByte()
	node.NameEnd = n.StartByte() + uint(len(parts[0]))
	*out = append(*out, id)
}

// attributeChain returns the dotted parts when the chain bottoms out at a
// plain identifier, or (nil, rootExpr) when it does not.
func attributeChain(n *sitter.Node, src []byte) ([]string, *sitter.Node) {
	attr := n.ChildByFieldName("attribute")
	obj := n.ChildByFieldName("object")
	if attr == nil || obj == nil {
		return nil, obj
	}
	name := string(src[attr.StartByte():attr.EndByte()])
	switch obj.Kind() {
	case "identifier":
		return []string{string(src[obj.StartByte():obj.EndByte()]), name}, nil
	case "attribute":
		parts, root := attributeChain(obj, src)
		if parts == nil {
			return nil, root
		}
		return append(parts, name), nil
	default:
		return nil, obj
	}
}

func (b *builder) call(n *sitter.Node, out *[]NodeID) {
	if fn := n.ChildByFieldName("function"); fn != nil {
		text := b.text(fn)
		if text == "__import__" || text == "importlib.import_module" {
			b.store.Dynamics = append(b.store.Dynamics, Dynamic{
				Name: text,
				Line: int(n.StartPosition().Row) + 1,
			})
		}
		b.refs(fn, out)
	}
	if args := n.ChildByFieldName("arguments"); args != nil {
		b.genericRefs(args, out)
	}
}

func (b *builder) lambda(n *sitter.Node) NodeID {
	id := b.newNode(KindLambda, n)
	var params, outer, kids []NodeID
	if ps := n.ChildByFieldName("parameters"); ps != nil {
		b.parameters(ps, &params, &outer)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		b.refs(body, &kids)
	}
	node := b.store.Node(id)
	node.Params = params
	node.Outer = outer
	node.Children = kids
	return id
}

// comprehension opens its own scope. The first iterable is the only part
// evaluated in the enclosing scope, matching Python's evaluation order.
func (b *builder) comprehension(n *sitter.Node) NodeID {
	id := b.newNode(KindComprehension, n)
	var params, outer, kids []NodeID
	firstClause := true
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if !child.IsNamed() {
			continue
		}
		switch child.Kind() {
		case "for_in_clause":
			if left := child.ChildByFieldName("left"); left != nil {
				b.bindings(left, &params, &kids)
			}
			if right := child.ChildByFieldName("right"); right != nil {
				if firstClause {
					b.refs(right, &outer)
				} else {
					b.refs(right, &kids)
				}
			}
			firstClause = false
		case "if_clause":
			b.genericRefs(child, &kids)
		case "comment":
		default:
			b.refs(child, &kids)
		}
	}
	node := b.store.Node(id)
	node.Params = params
	node.Outer = outer
	node.Children = kids
	return id
}

func firstNamedChild(n *sitter.Node) *sitter.Node {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child.IsNamed() {
			return child
		}
	}
	return nil
}
