package decompile

import (
	"fmt"
	"io"

	"github.com/zzkshare/pycdc/pkg/ast"
	"github.com/zzkshare/pycdc/pkg/pycfile"
)

// RenderContext threads the printer state that the original kept in
// file-scope globals: the indent counter, the print-chaining flag, the
// pending-globals flag, and the clean flag for the current code object.
type RenderContext struct {
	w   io.Writer
	mod *pycfile.Module

	indent       int
	inPrint      bool
	printGlobals bool
	clean        bool

	err error
}

// Decompile reconstructs source text for a module's top-level code
// object and writes it to w.
func Decompile(mod *pycfile.Module, w io.Writer) error {
	return DecompileCode(mod.Code, mod, w)
}

// DecompileCode renders one code object (and, recursively, the code
// objects among its constants) as source text.
func DecompileCode(code *pycfile.Code, mod *pycfile.Module, w io.Writer) error {
	r := &RenderContext{w: w, mod: mod, indent: -1}
	r.code(code)
	return r.err
}

func (r *RenderContext) printf(format string, args ...any) {
	if r.err != nil {
		return
	}
	if _, err := fmt.Fprintf(r.w, format, args...); err != nil {
		r.err = err
	}
}

func (r *RenderContext) startLine(indent int) {
	if r.inPrint {
		return
	}
	for i := 0; i < indent; i++ {
		r.printf("    ")
	}
}

func (r *RenderContext) endLine() {
	if r.inPrint {
		return
	}
	r.printf("\n")
}

// code renders one decoded code object: decode, strip compiler
// artifacts, emit pending global declarations, then print, closing with
// a warning comment when the decode or the print was not clean.
func (r *RenderContext) code(code *pycfile.Code) {
	res, err := BuildFromCode(code, r.mod)
	if err != nil {
		r.err = err
		return
	}
	source := res.AST

	if res.Clean {
		// The compiler adds bookkeeping that would only turn into noise
		// on recompilation: the class-module binding up front and the
		// implicit return at the end.
		if len(source.Nodes) > 0 {
			if store, ok := source.Nodes[0].(*ast.Store); ok {
				src, sok := store.Src.(*ast.Name)
				dest, dok := store.Dest.(*ast.Name)
				if sok && dok && src.Ident == "__name__" && dest.Ident == "__module__" {
					source.RemoveFirst()
				}
			}
		}
		if len(source.Nodes) > 0 {
			if ret, ok := source.Nodes[len(source.Nodes)-1].(*ast.Return); ok {
				if ret.Value == nil || ast.NodeKind(ret.Value) == ast.KindLocals {
					source.RemoveLast()
				}
			}
		}
	}
	// Keep the block compilable even when decompilation failed.
	if len(source.Nodes) == 0 {
		source.Nodes = append(source.Nodes, &ast.Pass{})
	}

	r.inPrint = false
	part1clean := res.Clean

	if globs := code.Globals(); r.printGlobals && len(globs) > 0 {
		r.startLine(r.indent + 1)
		r.printf("global ")
		for i, g := range globs {
			if i > 0 {
				r.printf(", ")
			}
			r.printf("%s", g)
		}
		r.printf("\n")
		r.printGlobals = false
	}

	r.clean = true
	r.printSrc(source)

	if !r.clean || !part1clean {
		r.startLine(r.indent)
		r.printf("# WARNING: Decompyle incomplete\n")
	}
}

// cmpPrec decides whether the child expression needs parentheses under
// the parent: a positive result means parenthesise. Operator enums are
// ordered so that rank comparison matches the language's precedence.
func cmpPrec(parent, child ast.Node) int {
	if un, ok := parent.(*ast.Unary); ok && un.Op == ast.UnNot {
		return 1 // not(x) always parenthesises its operand
	}
	switch c := child.(type) {
	case *ast.Binary:
		switch p := parent.(type) {
		case *ast.Binary:
			return int(c.Op) - int(p.Op)
		case *ast.Compare:
			if c.Op == ast.BinLogAnd || c.Op == ast.BinLogOr {
				return 1
			}
			return -1
		case *ast.Unary:
			if c.Op == ast.BinPower {
				return -1
			}
			return 1
		}
	case *ast.Unary:
		switch p := parent.(type) {
		case *ast.Binary:
			if p.Op == ast.BinLogAnd || p.Op == ast.BinLogOr {
				return -1
			}
			if c.Op == ast.UnNot {
				return 1
			}
			if p.Op == ast.BinPower {
				// The right-associative ** binds tighter than unary minus.
				return 1
			}
			return -1
		case *ast.Compare:
			if c.Op == ast.UnNot {
				return 1
			}
			return -1
		case *ast.Unary:
			return int(c.Op) - int(p.Op)
		}
	case *ast.Compare:
		switch p := parent.(type) {
		case *ast.Binary:
			if p.Op == ast.BinLogAnd || p.Op == ast.BinLogOr {
				return -1
			}
			return 1
		case *ast.Compare:
			return int(c.Op) - int(p.Op)
		case *ast.Unary:
			if p.Op == ast.UnNot {
				return -1
			}
			return 1
		}
	}
	return -1
}

// printOrdered prints a child expression, parenthesised when precedence
// demands it.
func (r *RenderContext) printOrdered(parent, child ast.Node) {
	switch ast.NodeKind(child) {
	case ast.KindBinary, ast.KindCompare, ast.KindUnary:
		if cmpPrec(parent, child) > 0 {
			r.printf("(")
			r.printSrc(child)
			r.printf(")")
		} else {
			r.printSrc(child)
		}
	default:
		r.printSrc(child)
	}
}

// printBlock prints a block body, or pass when it is empty.
func (r *RenderContext) printBlock(blk ast.Block) {
	lines := blk.Nodes()

	if len(lines) == 0 {
		r.startLine(r.indent)
		r.printSrc(&ast.Pass{})
	}

	for i, ln := range lines {
		if ast.NodeKind(ln) != ast.KindNodeList {
			r.startLine(r.indent)
		}
		r.printSrc(ln)
		if i+1 < len(lines) {
			r.endLine()
		}
	}
}

func (r *RenderContext) printSrc(node ast.Node) {
	if node == nil {
		r.printf("None")
		return
	}

	switch n := node.(type) {
	case *ast.Binary:
		r.printOrdered(n, n.Left)
		r.printf("%s", n.OpString())
		r.printOrdered(n, n.Right)

	case *ast.Compare:
		r.printOrdered(n, n.Left)
		r.printf("%s", n.OpString())
		r.printOrdered(n, n.Right)

	case *ast.Unary:
		r.printf("%s", n.OpString())
		r.printOrdered(n, n.Operand)

	case *ast.Call:
		r.printSrc(n.Func)
		r.printf("(")
		first := true
		for _, p := range n.PParams {
			if !first {
				r.printf(", ")
			}
			r.printSrc(p)
			first = false
		}
		for _, kw := range n.KwParams {
			if !first {
				r.printf(", ")
			}
			if name, ok := kw.Name.(*ast.Name); ok {
				r.printf("%s = ", name.Ident)
			} else if obj, ok := kw.Name.(*ast.Object); ok {
				r.printf("%s = ", pycfile.StringValue(obj.Obj))
			}
			r.printSrc(kw.Value)
			first = false
		}
		if n.HasVar() {
			if !first {
				r.printf(", ")
			}
			r.printf("*")
			r.printSrc(n.Var)
			first = false
		}
		if n.HasKW() {
			if !first {
				r.printf(", ")
			}
			r.printf("**")
			r.printSrc(n.KW)
		}
		r.printf(")")

	case *ast.Delete:
		r.printf("del ")
		r.printSrc(n.Value)

	case *ast.Exec:
		r.printf("exec ")
		r.printSrc(n.Stmt)
		if n.Globals != nil {
			r.printf(" in ")
			r.printSrc(n.Globals)
			if n.Locals != nil && n.Globals != n.Locals {
				r.printf(", ")
				r.printSrc(n.Locals)
			}
		}

	case *ast.Keyword:
		r.printf("%s", n.WordString())

	case *ast.List:
		r.printf("[")
		r.indent++
		for i, v := range n.Values {
			if i == 0 {
				r.printf("\n")
			} else {
				r.printf(",\n")
			}
			r.startLine(r.indent)
			r.printSrc(v)
		}
		r.indent--
		r.printf("]")

	case *ast.Comprehension:
		r.printf("[ ")
		r.printSrc(n.Result)
		for _, gen := range n.Generators {
			r.printf(" for ")
			r.printSrc(gen.Index)
			r.printf(" in ")
			r.printSrc(gen.Iter)
			for _, clause := range gen.Conds {
				if clause.Negative {
					r.printf(" if not ")
				} else {
					r.printf(" if ")
				}
				r.printSrc(clause.Cond)
			}
		}
		r.printf(" ]")

	case *ast.Map:
		r.printf("{")
		r.indent++
		for i, e := range n.Entries {
			if i == 0 {
				r.printf("\n")
			} else {
				r.printf(",\n")
			}
			r.startLine(r.indent)
			r.printSrc(e.Key)
			r.printf(": ")
			r.printSrc(e.Value)
		}
		r.indent--
		r.printf(" }")

	case *ast.Name:
		r.printf("%s", n.Ident)

	case *ast.NodeList:
		r.indent++
		for _, ln := range n.Nodes {
			if ast.NodeKind(ln) != ast.KindNodeList {
				r.startLine(r.indent)
			}
			r.printSrc(ln)
			r.endLine()
		}
		r.indent--

	case ast.Block:
		r.printBlockNode(n)

	case *ast.Object:
		if code, ok := n.Obj.(*pycfile.Code); ok {
			r.code(code)
		} else {
			r.printConst(n.Obj)
		}

	case *ast.Pass:
		r.printf("pass")

	case *ast.Print:
		r.printPrint(n)

	case *ast.Raise:
		r.printf("raise ")
		for i, p := range n.Params {
			if i > 0 {
				r.printf(", ")
			}
			r.printSrc(p)
		}

	case *ast.Return:
		switch n.Ret {
		case ast.RetReturn:
			r.printf("return ")
		case ast.RetYield:
			r.printf("yield ")
		}
		r.printSrc(n.Value)

	case *ast.Slice:
		if n.Op&ast.Slice1 != 0 {
			r.printSrc(n.Left)
		}
		r.printf(":")
		if n.Op&ast.Slice2 != 0 {
			r.printSrc(n.Right)
		}

	case *ast.Import:
		r.printImport(n)

	case *ast.Function:
		// A named function is a Store; a bare function node is a lambda.
		r.printf("lambda ")
		r.printf("(")
		codeObj := functionCode(n)
		da := 0
		for i := 0; codeObj != nil && i < codeObj.ArgCount(); i++ {
			if i > 0 {
				r.printf(", ")
			}
			r.printf("%s", codeObj.VarName(i))
			if codeObj.ArgCount()-i <= len(n.DefArgs) {
				r.printf(" = ")
				r.printSrc(n.DefArgs[da])
				da++
			}
		}
		r.printf("): ")
		r.printSrc(n.Code)

	case *ast.Store:
		r.printStore(n)

	case *ast.Subscr:
		r.printSrc(n.Target)
		r.printf("[")
		r.printSrc(n.Key)
		r.printf("]")

	case *ast.Convert:
		r.printf("`")
		r.printSrc(n.Value)
		r.printf("`")

	case *ast.Tuple:
		r.printf("(")
		for i, v := range n.Values {
			if i > 0 {
				r.printf(", ")
			}
			r.printSrc(v)
		}
		if len(n.Values) == 1 {
			r.printf(",)")
		} else {
			r.printf(")")
		}

	case *ast.Locals:
		r.printf("locals()")

	default:
		r.printf("<NODE:%d>", node.Kind())
		log.Errorf("unsupported node type: %d", node.Kind())
		r.clean = false
	}
}

func (r *RenderContext) printBlockNode(blk ast.Block) {
	if blk.BlockType() == ast.BlockElse && blk.Size() == 0 {
		return
	}

	if blk.BlockType() == ast.BlockContainer {
		// The try scaffold renders transparently.
		r.endLine()
		r.printBlock(blk)
		r.endLine()
		return
	}
	r.inPrint = false

	r.printf("%s", blk.TypeStr())
	switch blk.BlockType() {
	case ast.BlockIf, ast.BlockElif, ast.BlockWhile:
		cb := blk.(*ast.CondBlock)
		if cb.Negative {
			r.printf(" not ")
		} else {
			r.printf(" ")
		}
		r.printSrc(cb.Cond)
	case ast.BlockFor:
		it := blk.(*ast.IterBlock)
		r.printf(" ")
		r.printSrc(it.Index)
		r.printf(" in ")
		r.printSrc(it.Iter)
	case ast.BlockExcept:
		cb := blk.(*ast.CondBlock)
		if cb.Cond != nil {
			r.printf(" ")
			r.printSrc(cb.Cond)
			if cb.Bind != nil {
				r.printf(", ")
				r.printSrc(cb.Bind)
			}
		}
	}
	r.printf(":\n")

	r.indent++
	r.printBlock(blk)
	if r.inPrint {
		r.printf(",")
	}
	r.indent--
	r.inPrint = false
}

// printPrint renders one print fragment, chaining consecutive items
// onto one statement.
func (r *RenderContext) printPrint(n *ast.Print) {
	if n.Value == nil {
		if !r.inPrint {
			r.printf("print ")
			if n.Stream != nil {
				r.printf(">>")
				r.printSrc(n.Stream)
			}
		}
		r.inPrint = false
	} else if !r.inPrint {
		r.printf("print ")
		if n.Stream != nil {
			r.printf(">>")
			r.printSrc(n.Stream)
			r.printf(", ")
		}
		r.printSrc(n.Value)
		r.inPrint = true
	} else {
		r.printf(", ")
		r.printSrc(n.Value)
	}
}

func (r *RenderContext) printImport(n *ast.Import) {
	if len(n.Stores) > 0 {
		r.printf("from ")
		if inner, ok := n.Name.(*ast.Import); ok {
			r.printSrc(inner.Name)
		} else {
			r.printSrc(n.Name)
		}
		r.printf(" import ")

		for i, store := range n.Stores {
			if i > 0 {
				r.printf(", ")
			}
			r.printSrc(store.Src)
			src, sok := store.Src.(*ast.Name)
			dest, dok := store.Dest.(*ast.Name)
			if sok && dok && src.Ident != dest.Ident {
				r.printf(" as ")
				r.printSrc(store.Dest)
			}
		}
		return
	}
	r.printf("import ")
	r.printSrc(n.Name)
}

// functionCode digs the code object out of a function literal.
func functionCode(fn *ast.Function) *pycfile.Code {
	obj, ok := fn.Code.(*ast.Object)
	if !ok {
		return nil
	}
	code, _ := obj.Obj.(*pycfile.Code)
	return code
}

func (r *RenderContext) printStore(n *ast.Store) {
	switch src := n.Src.(type) {
	case *ast.Function:
		r.printf("\n")
		r.startLine(r.indent)
		r.printf("def ")
		r.printSrc(n.Dest)
		r.printf("(")
		codeObj := functionCode(src)
		da := 0
		first := true
		argc := 0
		if codeObj != nil {
			argc = codeObj.ArgCount()
		}
		for i := 0; i < argc; i++ {
			if !first {
				r.printf(", ")
			}
			r.printf("%s", codeObj.VarName(i))
			if argc-i <= len(src.DefArgs) {
				r.printf(" = ")
				r.printSrc(src.DefArgs[da])
				da++
			}
			first = false
		}
		if codeObj != nil && codeObj.Flags()&pycfile.FlagVarArgs != 0 {
			if !first {
				r.printf(", ")
			}
			r.printf("*%s", codeObj.VarName(argc))
			first = false
		}
		if codeObj != nil && codeObj.Flags()&pycfile.FlagVarKeywords != 0 {
			if !first {
				r.printf(", ")
			}
			idx := argc
			if codeObj.Flags()&pycfile.FlagVarArgs != 0 {
				idx++
			}
			r.printf("**%s", codeObj.VarName(idx))
		}
		r.printf("):\n")
		r.printGlobals = true
		r.printSrc(src.Code)

	case *ast.Class:
		r.printf("\n")
		r.startLine(r.indent)
		r.printf("class ")
		r.printSrc(n.Dest)
		if bases, ok := src.Bases.(*ast.Tuple); ok && len(bases.Values) > 0 {
			r.printf("(")
			for i, b := range bases.Values {
				if i > 0 {
					r.printf(", ")
				}
				r.printSrc(b)
			}
			r.printf("):\n")
		} else {
			// No parens without base classes.
			r.printf(":\n")
		}
		r.printSrc(classCode(src))

	case *ast.Import:
		if src.FromList != nil {
			fromObj, ok := src.FromList.(*ast.Object)
			if ok && fromObj.Obj != nil && fromObj.Obj.Type() != pycfile.TypeNone {
				r.printf("from ")
				if inner, ok := src.Name.(*ast.Import); ok {
					r.printSrc(inner.Name)
				} else {
					r.printSrc(src.Name)
				}
				r.printf(" import ")
				if fl, ok := fromObj.Obj.(*pycfile.Tuple); ok {
					for i, v := range fl.Values {
						if i > 0 {
							r.printf(", ")
						}
						r.printf("%s", pycfile.StringValue(v))
					}
				} else {
					r.printf("%s", pycfile.StringValue(fromObj.Obj))
				}
			} else {
				r.printf("import ")
				r.printSrc(src.Name)
			}
		} else {
			r.printf("import ")
			r.printSrc(src.Name)
		}

	default:
		if bin, ok := n.Src.(*ast.Binary); ok && bin.IsInplace() {
			r.printSrc(n.Src)
			return
		}

		if dest, ok := n.Dest.(*ast.Name); ok && dest.Ident == "__doc__" {
			if obj, ok := n.Src.(*ast.Object); ok && pycfile.IsStringLike(obj.Obj) {
				r.printDocString(obj.Obj)
				return
			}
		}
		r.printSrc(n.Dest)
		r.printf(" = ")
		r.printSrc(n.Src)
	}
}

// classCode unwraps the class literal down to its body code object: the
// class value is a call whose callee is the body function.
func classCode(cls *ast.Class) ast.Node {
	call, ok := cls.Code.(*ast.Call)
	if !ok {
		return cls.Code
	}
	fn, ok := call.Func.(*ast.Function)
	if !ok {
		return call.Func
	}
	return fn.Code
}
