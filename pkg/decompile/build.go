// Package decompile reconstructs source trees from bytecode: a symbolic
// stack interpreter walks the instruction stream, a block stack recovers
// the nested statement structure from flat jumps, and a precedence-aware
// printer renders the result.
package decompile

import (
	"github.com/tliron/commonlog"

	"github.com/zzkshare/pycdc/pkg/ast"
	"github.com/zzkshare/pycdc/pkg/opcodes"
	"github.com/zzkshare/pycdc/pkg/pycfile"
)

var log = commonlog.GetLogger("pycdc.decompile")

// Result is the outcome of decoding one code object. Clean is false when
// an unsupported opcode forced a partial tree.
type Result struct {
	AST   *ast.NodeList
	Clean bool
}

// decoder is the per-code-object decode state: cursor, symbolic stack,
// snapshot history, and the block stack.
type decoder struct {
	code *pycfile.Code
	mod  *pycfile.Module
	cur  *Cursor

	stack *Stack
	hist  History

	blocks []ast.Block

	curpos  int
	pos     int
	operand int

	unpack  int
	elsePop bool
	needTry bool
}

// BuildFromCode decodes one code object into a statement list. The
// returned error is fatal (malformed stream). An unsupported opcode
// degrades to a partial, unclean result instead; block-stack and history
// residue at the end of the stream only log a warning and keep the result
// clean.
func BuildFromCode(code *pycfile.Code, mod *pycfile.Module) (*Result, error) {
	capacity := code.StackSize()
	if mod.Major == 1 || capacity < 20 {
		capacity = 20
	}

	d := &decoder{
		code:  code,
		mod:   mod,
		cur:   NewCursor(code.Bytes(), mod),
		stack: NewStack(capacity),
	}
	main := ast.NewInitedBlock(ast.BlockMain, 0)
	d.blocks = append(d.blocks, main)

	for !d.cur.AtEnd() {
		d.curpos = d.cur.Pos()
		op, operand, err := d.cur.Next()
		if err != nil {
			return nil, err
		}
		d.operand = operand
		d.pos = d.cur.Pos()

		if d.needTry && op != opcodes.SetupExceptA {
			d.needTry = false
			// Store the current stack for the except/finally statements.
			d.hist.Push(d.stack)
			d.pushBlock(ast.NewInitedBlock(ast.BlockTry, d.curblock().End()))
		} else if d.elsePop && !elsePopExempt(op) {
			d.elsePop = false
			prev := d.curblock()
			for prev.End() < d.pos && prev.BlockType() != ast.BlockMain {
				if prev.BlockType() != ast.BlockContainer {
					if prev.End() == 0 {
						break
					}
					// Keep the stack, but drop a level off the history.
					d.hist.Pop()
				}
				d.popTopBlock()
				d.curblock().Append(prev)
				prev = d.curblock()
			}
		}

		h, ok := handlers[op]
		if !ok {
			log.Warningf("unsupported opcode: %s", op)
			return &Result{AST: &ast.NodeList{Nodes: main.Nodes()}, Clean: false}, nil
		}
		h(d)

		t := d.curblock().BlockType()
		d.elsePop = (t == ast.BlockElse || t == ast.BlockIf || t == ast.BlockElif) &&
			d.curblock().End() == d.pos
	}

	if d.hist.Len() > 0 {
		log.Warningf("stack history is not empty at end of stream (%d levels)", d.hist.Len())
		for d.hist.Len() > 0 {
			d.hist.Pop()
		}
	}

	if len(d.blocks) > 1 {
		log.Warningf("block stack is not empty at end of stream (%d blocks)", len(d.blocks))
		for len(d.blocks) > 1 {
			tmp := d.popTopBlock()
			d.curblock().Append(tmp)
		}
	}

	return &Result{AST: &ast.NodeList{Nodes: main.Nodes()}, Clean: true}, nil
}

// elsePopExempt lists the opcodes that defer else-block closing: jumps
// that will rewrite the block themselves, and POP_BLOCK.
func elsePopExempt(op opcodes.Mnemonic) bool {
	switch op {
	case opcodes.JumpForwardA,
		opcodes.JumpIfFalseA, opcodes.JumpIfFalseOrPopA, opcodes.PopJumpIfFalseA,
		opcodes.JumpIfTrueA, opcodes.JumpIfTrueOrPopA, opcodes.PopJumpIfTrueA,
		opcodes.PopBlock:
		return true
	}
	return false
}

// --- Block-stack helpers -------------------------------------------------

func (d *decoder) curblock() ast.Block {
	return d.blocks[len(d.blocks)-1]
}

func (d *decoder) pushBlock(b ast.Block) {
	d.blocks = append(d.blocks, b)
}

// popTopBlock removes and returns the top block without appending it
// anywhere.
func (d *decoder) popTopBlock() ast.Block {
	top := d.blocks[len(d.blocks)-1]
	d.blocks = d.blocks[:len(d.blocks)-1]
	return top
}

func (d *decoder) appendStmt(n ast.Node) {
	d.curblock().Append(n)
}

// restoreStack rewinds the symbolic stack to the top history snapshot
// and drops it. A missing snapshot is block-stack residue; warn and
// continue.
func (d *decoder) restoreStack() {
	snap := d.hist.Top()
	if snap == nil {
		log.Errorf("no stack snapshot to restore at offset %d", d.curpos)
		return
	}
	d.stack.Restore(snap)
	d.hist.Pop()
}

// comprehensionFor finds the comprehension for-block enclosing the
// current position, looking through pending if-clauses.
func (d *decoder) comprehensionFor() *ast.IterBlock {
	for i := len(d.blocks) - 1; i >= 0; i-- {
		switch blk := d.blocks[i].(type) {
		case *ast.CondBlock:
			if blk.BlockType() == ast.BlockIf || blk.BlockType() == ast.BlockElif {
				continue
			}
			return nil
		case *ast.IterBlock:
			if blk.Comp {
				return blk
			}
			return nil
		default:
			return nil
		}
	}
	return nil
}

// --- Handler table -------------------------------------------------------

type handlerFunc func(d *decoder)

var handlers map[opcodes.Mnemonic]handlerFunc

func init() {
	handlers = map[opcodes.Mnemonic]handlerFunc{
		opcodes.Nop:     func(*decoder) {},
		opcodes.GetIter: func(*decoder) {},
		// A no-op at runtime; nothing to model.
		opcodes.PopExcept:  func(*decoder) {},
		opcodes.SetLinenoA: func(*decoder) {},

		opcodes.BinaryAdd:         binaryOp(ast.BinAdd),
		opcodes.BinaryAnd:         binaryOp(ast.BinAnd),
		opcodes.BinaryDivide:      binaryOp(ast.BinDivide),
		opcodes.BinaryFloorDivide: binaryOp(ast.BinFloor),
		opcodes.BinaryLShift:      binaryOp(ast.BinLShift),
		opcodes.BinaryModulo:      binaryOp(ast.BinModulo),
		opcodes.BinaryMultiply:    binaryOp(ast.BinMultiply),
		opcodes.BinaryOr:          binaryOp(ast.BinOr),
		opcodes.BinaryPower:       binaryOp(ast.BinPower),
		opcodes.BinaryRShift:      binaryOp(ast.BinRShift),
		opcodes.BinarySubtract:    binaryOp(ast.BinSubtract),
		opcodes.BinaryTrueDivide:  binaryOp(ast.BinDivide),
		opcodes.BinaryXor:         binaryOp(ast.BinXor),

		opcodes.InplaceAdd:         binaryOp(ast.BinIPAdd),
		opcodes.InplaceAnd:         binaryOp(ast.BinIPAnd),
		opcodes.InplaceDivide:      binaryOp(ast.BinIPDivide),
		opcodes.InplaceFloorDivide: binaryOp(ast.BinIPFloor),
		opcodes.InplaceLShift:      binaryOp(ast.BinIPLShift),
		opcodes.InplaceModulo:      binaryOp(ast.BinIPModulo),
		opcodes.InplaceMultiply:    binaryOp(ast.BinIPMultiply),
		opcodes.InplaceOr:          binaryOp(ast.BinIPOr),
		opcodes.InplacePower:       binaryOp(ast.BinIPPower),
		opcodes.InplaceRShift:      binaryOp(ast.BinIPRShift),
		opcodes.InplaceSubtract:    binaryOp(ast.BinIPSubtract),
		opcodes.InplaceTrueDivide:  binaryOp(ast.BinIPDivide),
		opcodes.InplaceXor:         binaryOp(ast.BinIPXor),

		opcodes.UnaryInvert:   unaryOp(ast.UnInvert),
		opcodes.UnaryNegative: unaryOp(ast.UnNegative),
		opcodes.UnaryNot:      unaryOp(ast.UnNot),
		opcodes.UnaryPositive: unaryOp(ast.UnPositive),

		opcodes.BinarySubscr: (*decoder).binarySubscr,
		opcodes.BreakLoop:    (*decoder).breakLoop,
		opcodes.BuildClass:   (*decoder).buildClass,
		opcodes.BuildFunction: func(d *decoder) {
			code := d.stack.Pop()
			d.stack.Push(&ast.Function{Code: code})
		},
		opcodes.BuildListA:  (*decoder).buildList,
		opcodes.BuildMapA:   func(d *decoder) { d.stack.Push(&ast.Map{}) },
		opcodes.BuildSliceA: (*decoder).buildSlice,
		opcodes.BuildTupleA: (*decoder).buildTuple,

		opcodes.CallFunctionA:      callFunction(false, false),
		opcodes.CallFunctionVarA:   callFunction(true, false),
		opcodes.CallFunctionKwA:    callFunction(false, true),
		opcodes.CallFunctionVarKwA: callFunction(true, true),

		opcodes.CompareOpA:    (*decoder).compareOp,
		opcodes.ContinueLoopA: (*decoder).continueLoop,

		opcodes.DeleteAttrA:   (*decoder).deleteAttr,
		opcodes.DeleteGlobalA: (*decoder).deleteName,
		opcodes.DeleteNameA:   (*decoder).deleteName,
		opcodes.DeleteFastA:   (*decoder).deleteFast,
		opcodes.DeleteSlice0:  deleteSliceOp(0),
		opcodes.DeleteSlice1:  deleteSliceOp(1),
		opcodes.DeleteSlice2:  deleteSliceOp(2),
		opcodes.DeleteSlice3:  deleteSliceOp(3),
		opcodes.DeleteSubscr:  (*decoder).deleteSubscr,

		opcodes.DupTop:    func(d *decoder) { d.stack.Push(d.stack.Top()) },
		opcodes.DupTopTwo: (*decoder).dupTopTwo,
		opcodes.DupTopxA:  (*decoder).dupTopx,

		opcodes.EndFinally: (*decoder).endFinally,
		opcodes.ExecStmt:   (*decoder).execStmt,

		opcodes.ForIterA: (*decoder).forIter,
		opcodes.ForLoopA: (*decoder).forLoop,

		opcodes.ImportNameA: (*decoder).importName,
		opcodes.ImportFromA: func(d *decoder) { d.stack.Push(ast.NewName(d.code.Name(d.operand))) },
		opcodes.ImportStar:  (*decoder).importStar,

		opcodes.JumpIfFalseA:      condJump(false, false, false, true),
		opcodes.JumpIfTrueA:       condJump(true, false, false, true),
		opcodes.JumpIfFalseOrPopA: condJump(false, false, true, false),
		opcodes.JumpIfTrueOrPopA:  condJump(true, false, true, false),
		opcodes.PopJumpIfFalseA:   condJump(false, true, false, false),
		opcodes.PopJumpIfTrueA:    condJump(true, true, false, false),

		opcodes.JumpAbsoluteA: (*decoder).jumpAbsolute,
		opcodes.JumpForwardA:  (*decoder).jumpForward,

		opcodes.ListAppend:  (*decoder).listAppend,
		opcodes.ListAppendA: (*decoder).listAppend,

		opcodes.LoadAttrA: (*decoder).loadAttr,
		opcodes.LoadConstA: (*decoder).loadConst,
		opcodes.LoadFastA: func(d *decoder) { d.stack.Push(ast.NewName(d.code.VarName(d.operand))) },
		opcodes.LoadGlobalA: func(d *decoder) { d.stack.Push(ast.NewName(d.code.Name(d.operand))) },
		opcodes.LoadLocals:  func(d *decoder) { d.stack.Push(&ast.Locals{}) },
		opcodes.LoadNameA: func(d *decoder) { d.stack.Push(ast.NewName(d.code.Name(d.operand))) },

		opcodes.MakeFunctionA: (*decoder).makeFunction,

		opcodes.PopBlock: (*decoder).popBlockOp,
		opcodes.PopTop:   (*decoder).popTop,

		opcodes.PrintItem:      (*decoder).printItem,
		opcodes.PrintItemTo:    (*decoder).printItemTo,
		opcodes.PrintNewline:   func(d *decoder) { d.appendStmt(&ast.Print{}) },
		opcodes.PrintNewlineTo: (*decoder).printNewlineTo,

		opcodes.RaiseVarargsA: (*decoder).raiseVarargs,
		opcodes.ReturnValue:   (*decoder).returnValue,

		opcodes.RotTwo:   (*decoder).rotTwo,
		opcodes.RotThree: (*decoder).rotThree,
		opcodes.RotFour:  (*decoder).rotFour,

		opcodes.SetupExceptA:  (*decoder).setupExcept,
		opcodes.SetupFinallyA: (*decoder).setupFinally,
		opcodes.SetupLoopA:    (*decoder).setupLoop,

		opcodes.Slice0: sliceOp(0),
		opcodes.Slice1: sliceOp(1),
		opcodes.Slice2: sliceOp(2),
		opcodes.Slice3: sliceOp(3),

		opcodes.StoreAttrA:   (*decoder).storeAttr,
		opcodes.StoreFastA:   (*decoder).storeFast,
		opcodes.StoreGlobalA: (*decoder).storeGlobal,
		opcodes.StoreNameA:   (*decoder).storeName,
		opcodes.StoreSlice0:  storeSliceOp(0),
		opcodes.StoreSlice1:  storeSliceOp(1),
		opcodes.StoreSlice2:  storeSliceOp(2),
		opcodes.StoreSlice3:  storeSliceOp(3),
		opcodes.StoreSubscr:  (*decoder).storeSubscr,

		opcodes.UnaryCall: func(d *decoder) {
			d.stack.Push(&ast.Call{Func: d.stack.Pop()})
		},
		opcodes.UnaryConvert: func(d *decoder) {
			d.stack.Push(&ast.Convert{Value: d.stack.Pop()})
		},

		opcodes.UnpackListA:     (*decoder).unpackSequence,
		opcodes.UnpackTupleA:    (*decoder).unpackSequence,
		opcodes.UnpackSequenceA: (*decoder).unpackSequence,

		opcodes.YieldValue: func(d *decoder) {
			d.appendStmt(&ast.Return{Value: d.stack.Pop(), Ret: ast.RetYield})
		},
	}
}

func binaryOp(op ast.BinOp) handlerFunc {
	return func(d *decoder) {
		right := d.stack.Pop()
		left := d.stack.Pop()
		d.stack.Push(ast.NewBinary(left, right, op))
	}
}

func unaryOp(op ast.UnOp) handlerFunc {
	return func(d *decoder) {
		d.stack.Push(ast.NewUnary(d.stack.Pop(), op))
	}
}

// --- Expression handlers -------------------------------------------------

func (d *decoder) binarySubscr() {
	key := d.stack.Pop()
	src := d.stack.Pop()
	d.stack.Push(&ast.Subscr{Target: src, Key: key})
}

func (d *decoder) compareOp() {
	right := d.stack.Pop()
	left := d.stack.Pop()
	d.stack.Push(ast.NewCompare(left, right, ast.CmpOp(d.operand)))
}

func (d *decoder) buildClass() {
	code := d.stack.Pop()
	bases := d.stack.Pop()
	name := d.stack.Pop()
	d.stack.Push(&ast.Class{Code: code, Bases: bases, Name: name})
}

func (d *decoder) buildList() {
	values := make([]ast.Node, d.operand)
	for i := d.operand - 1; i >= 0; i-- {
		values[i] = d.stack.Pop()
	}
	d.stack.Push(&ast.List{Values: values})
}

func (d *decoder) buildTuple() {
	values := make([]ast.Node, d.operand)
	for i := d.operand - 1; i >= 0; i-- {
		values[i] = d.stack.Pop()
	}
	d.stack.Push(&ast.Tuple{Values: values})
}

// buildSlice assembles x[a:b] and x[a:b:c]. The three-operand form
// nests: the step is spliced onto an outer slice whose left side is the
// start:stop slice.
func (d *decoder) buildSlice() {
	dropNone := func(n ast.Node) ast.Node {
		if obj, ok := n.(*ast.Object); ok && obj.Obj != nil && obj.Obj.Type() == pycfile.TypeNone {
			return nil
		}
		return n
	}
	pushPair := func(start, end ast.Node) {
		switch {
		case start == nil && end == nil:
			d.stack.Push(ast.NewSlice(ast.Slice0, nil, nil))
		case start == nil:
			d.stack.Push(ast.NewSlice(ast.Slice2, start, end))
		case end == nil:
			d.stack.Push(ast.NewSlice(ast.Slice1, start, end))
		default:
			d.stack.Push(ast.NewSlice(ast.Slice3, start, end))
		}
	}

	if d.operand == 2 {
		end := dropNone(d.stack.Pop())
		start := dropNone(d.stack.Pop())
		pushPair(start, end)
	} else if d.operand == 3 {
		step := dropNone(d.stack.Pop())
		end := dropNone(d.stack.Pop())
		start := dropNone(d.stack.Pop())
		pushPair(start, end)

		lhs := d.stack.Pop()
		if step == nil {
			d.stack.Push(ast.NewSlice(ast.Slice1, lhs, step))
		} else {
			d.stack.Push(ast.NewSlice(ast.Slice3, lhs, step))
		}
	}
}

func callFunction(hasVar, hasKW bool) handlerFunc {
	return func(d *decoder) {
		var varNode, kwNode ast.Node
		if hasKW {
			kwNode = d.stack.Pop()
		}
		if hasVar {
			varNode = d.stack.Pop()
		}
		kwCount := (d.operand & 0xFF00) >> 8
		posCount := d.operand & 0xFF

		kwParams := make([]ast.KwArg, kwCount)
		for i := kwCount - 1; i >= 0; i-- {
			val := d.stack.Pop()
			key := d.stack.Pop()
			kwParams[i] = ast.KwArg{Name: key, Value: val}
		}
		pParams := make([]ast.Node, posCount)
		for i := posCount - 1; i >= 0; i-- {
			pParams[i] = d.stack.Pop()
		}
		fn := d.stack.Pop()
		d.stack.Push(&ast.Call{Func: fn, PParams: pParams, KwParams: kwParams, Var: varNode, KW: kwNode})
	}
}

func (d *decoder) loadAttr() {
	name := d.stack.Top()
	if ast.NodeKind(name) != ast.KindImport {
		d.stack.Pop()
		d.stack.Push(ast.NewBinary(name, ast.NewName(d.code.Name(d.operand)), ast.BinAttr))
	}
}

func (d *decoder) loadConst() {
	obj := d.code.Const(d.operand)
	if tup, ok := obj.(*pycfile.Tuple); ok && len(tup.Values) == 0 {
		d.stack.Push(&ast.Tuple{})
	} else if obj != nil && obj.Type() == pycfile.TypeNone {
		d.stack.Push(nil)
	} else {
		d.stack.Push(&ast.Object{Obj: obj})
	}
}

func (d *decoder) makeFunction() {
	code := d.stack.Pop()
	defArgs := make([]ast.Node, d.operand)
	for i := d.operand - 1; i >= 0; i-- {
		defArgs[i] = d.stack.Pop()
	}
	d.stack.Push(&ast.Function{Code: code, DefArgs: defArgs})
}

func (d *decoder) importName() {
	if d.mod.Major == 1 {
		d.stack.Push(&ast.Import{Name: ast.NewName(d.code.Name(d.operand))})
		return
	}
	fromlist := d.stack.Pop()
	if d.mod.AtLeast(2, 5) {
		d.stack.Pop() // relative-import level
	}
	d.stack.Push(&ast.Import{Name: ast.NewName(d.code.Name(d.operand)), FromList: fromlist})
}

func (d *decoder) importStar() {
	imp := d.stack.Pop()
	d.appendStmt(&ast.Store{Src: imp})
}

func (d *decoder) listAppend() {
	value := d.stack.Pop()
	list := d.stack.Top()
	if d.comprehensionFor() != nil {
		d.stack.Push(&ast.Comprehension{Result: value})
	} else {
		d.stack.Push(&ast.Subscr{Target: list, Key: value})
	}
}

func (d *decoder) dupTopTwo() {
	first := d.stack.Pop()
	second := d.stack.Top()
	d.stack.Push(first)
	d.stack.Push(second)
	d.stack.Push(first)
}

func (d *decoder) dupTopx() {
	nodes := make([]ast.Node, d.operand)
	for i := d.operand - 1; i >= 0; i-- {
		nodes[i] = d.stack.Pop()
	}
	for _, n := range nodes {
		d.stack.Push(n)
	}
	for _, n := range nodes {
		d.stack.Push(n)
	}
}

func (d *decoder) rotTwo() {
	one := d.stack.Pop()
	two := d.stack.Pop()
	d.stack.Push(one)
	d.stack.Push(two)
}

func (d *decoder) rotThree() {
	one := d.stack.Pop()
	two := d.stack.Pop()
	three := d.stack.Pop()
	d.stack.Push(one)
	d.stack.Push(three)
	d.stack.Push(two)
}

func (d *decoder) rotFour() {
	one := d.stack.Pop()
	two := d.stack.Pop()
	three := d.stack.Pop()
	four := d.stack.Pop()
	d.stack.Push(one)
	d.stack.Push(four)
	d.stack.Push(three)
	d.stack.Push(two)
}

func sliceOp(kind int) handlerFunc {
	return func(d *decoder) {
		var slice *ast.Slice
		switch kind {
		case 0:
			slice = ast.NewSlice(ast.Slice0, nil, nil)
		case 1:
			lower := d.stack.Pop()
			slice = ast.NewSlice(ast.Slice1, lower, nil)
		case 2:
			upper := d.stack.Pop()
			slice = ast.NewSlice(ast.Slice2, nil, upper)
		case 3:
			upper := d.stack.Pop()
			lower := d.stack.Pop()
			slice = ast.NewSlice(ast.Slice3, lower, upper)
		}
		name := d.stack.Pop()
		d.stack.Push(&ast.Subscr{Target: name, Key: slice})
	}
}

func storeSliceOp(kind int) handlerFunc {
	return func(d *decoder) {
		var slice *ast.Slice
		switch kind {
		case 0:
			slice = ast.NewSlice(ast.Slice0, nil, nil)
		case 1:
			upper := d.stack.Pop()
			slice = ast.NewSlice(ast.Slice1, upper, nil)
		case 2:
			lower := d.stack.Pop()
			slice = ast.NewSlice(ast.Slice2, nil, lower)
		case 3:
			lower := d.stack.Pop()
			upper := d.stack.Pop()
			slice = ast.NewSlice(ast.Slice3, upper, lower)
		}
		dest := d.stack.Pop()
		value := d.stack.Pop()
		d.appendStmt(&ast.Store{Src: value, Dest: &ast.Subscr{Target: dest, Key: slice}})
	}
}

func deleteSliceOp(kind int) handlerFunc {
	return func(d *decoder) {
		var slice *ast.Slice
		switch kind {
		case 0:
			slice = ast.NewSlice(ast.Slice0, nil, nil)
		case 1:
			upper := d.stack.Pop()
			slice = ast.NewSlice(ast.Slice1, upper, nil)
		case 2:
			lower := d.stack.Pop()
			slice = ast.NewSlice(ast.Slice2, nil, lower)
		case 3:
			lower := d.stack.Pop()
			upper := d.stack.Pop()
			slice = ast.NewSlice(ast.Slice3, upper, lower)
		}
		name := d.stack.Pop()
		d.appendStmt(&ast.Delete{Value: &ast.Subscr{Target: name, Key: slice}})
	}
}

// --- Statement handlers --------------------------------------------------

func (d *decoder) breakLoop() {
	d.appendStmt(&ast.Keyword{Word: ast.KwBreak})
}

func (d *decoder) continueLoop() {
	d.appendStmt(&ast.Keyword{Word: ast.KwContinue})
}

func (d *decoder) deleteAttr() {
	name := d.stack.Pop()
	attr := ast.NewBinary(name, ast.NewName(d.code.Name(d.operand)), ast.BinAttr)
	d.appendStmt(&ast.Delete{Value: attr})
}

func (d *decoder) deleteName() {
	varname := d.code.Name(d.operand)
	if isCompTemp(varname) {
		// Deletes of list-comprehension temporaries never appear in source.
		return
	}
	d.appendStmt(&ast.Delete{Value: ast.NewName(varname)})
}

func (d *decoder) deleteFast() {
	varname := d.code.VarName(d.operand)
	if isCompTemp(varname) {
		return
	}
	d.appendStmt(&ast.Delete{Value: ast.NewName(varname)})
}

func (d *decoder) deleteSubscr() {
	key := d.stack.Pop()
	name := d.stack.Pop()
	d.appendStmt(&ast.Delete{Value: &ast.Subscr{Target: name, Key: key}})
}

func (d *decoder) execStmt() {
	locals := d.stack.Pop()
	globals := d.stack.Pop()
	stmt := d.stack.Pop()
	d.appendStmt(&ast.Exec{Stmt: stmt, Globals: globals, Locals: locals})
}

func (d *decoder) printItem() {
	d.appendStmt(&ast.Print{Value: d.stack.Pop()})
}

func (d *decoder) printItemTo() {
	stream := d.stack.Pop()
	d.appendStmt(&ast.Print{Value: d.stack.Pop(), Stream: stream})
}

func (d *decoder) printNewlineTo() {
	d.appendStmt(&ast.Print{Stream: d.stack.Pop()})
}

func (d *decoder) raiseVarargs() {
	params := make([]ast.Node, d.operand)
	for i := d.operand - 1; i >= 0; i-- {
		params[i] = d.stack.Pop()
	}
	d.appendStmt(&ast.Raise{Params: params})
	d.closeAfterReturn()
}

func (d *decoder) returnValue() {
	d.appendStmt(&ast.Return{Value: d.stack.Pop()})
	d.closeAfterReturn()
}

// closeAfterReturn closes an if/else branch that ends in a return or
// raise. From 2.6 the compiler stops emitting the jump that would have
// closed the block, so the block is popped here and the conventionally
// emitted dead instruction after the return is skipped.
func (d *decoder) closeAfterReturn() {
	t := d.curblock().BlockType()
	if (t != ast.BlockIf && t != ast.BlockElse) || d.hist.Len() == 0 {
		return
	}
	if !(d.mod.Major > 2 || (d.mod.Major == 2 && d.mod.Minor >= 6)) {
		return
	}
	d.restoreStack()
	prev := d.popTopBlock()
	d.curblock().Append(prev)

	if !d.cur.AtEnd() {
		if _, _, err := d.cur.Next(); err == nil {
			d.pos = d.cur.Pos()
		}
	}
}

// --- Store handlers ------------------------------------------------------

// isCompTemp reports whether a name is a list-comprehension accumulator
// temporary (the "_[1]" convention).
func isCompTemp(name string) bool {
	return len(name) >= 2 && name[0] == '_' && name[1] == '['
}

func (d *decoder) storeAttr() {
	name := d.stack.Pop()
	value := d.stack.Pop()
	attr := ast.NewBinary(name, ast.NewName(d.code.Name(d.operand)), ast.BinAttr)
	d.appendStmt(&ast.Store{Src: value, Dest: attr})
}

func (d *decoder) storeSubscr() {
	key := d.stack.Pop()
	dest := d.stack.Pop()
	src := d.stack.Pop()
	if m, ok := dest.(*ast.Map); ok {
		m.Add(key, src)
	} else {
		d.appendStmt(&ast.Store{Src: src, Dest: &ast.Subscr{Target: dest, Key: key}})
	}
}

// continueUnpack collects one target of an in-progress sequence unpack.
// It returns the finished target tuple once the last name arrives.
func (d *decoder) continueUnpack(name ast.Node) (*ast.Tuple, bool) {
	top := d.stack.Top()
	if tup, ok := top.(*ast.Tuple); ok {
		d.stack.Pop()
		tup.Add(name)
		d.stack.Push(tup)
	} else {
		log.Errorf("non-tuple on stack during unpack continuation at offset %d", d.curpos)
	}

	d.unpack--
	if d.unpack > 0 {
		return nil, false
	}
	tup, _ := d.stack.Pop().(*ast.Tuple)
	return tup, true
}

func (d *decoder) storeFast() {
	if d.unpack > 0 {
		name := ast.NewName(d.code.VarName(d.operand))
		tup, done := d.continueUnpack(name)
		if done {
			seq := d.stack.Pop()
			d.appendStmt(&ast.Store{Src: seq, Dest: tup})
		}
		return
	}

	value := d.stack.Pop()
	varname := d.code.VarName(d.operand)
	if isCompTemp(varname) {
		// Stores of list-comprehension accumulators never appear in source.
		return
	}
	name := ast.NewName(varname)

	if it, ok := d.curblock().(*ast.IterBlock); ok && it.Inited() == ast.Uninited {
		it.SetIndex(name)
		return
	}
	if d.bindExcept(value, name) {
		return
	}
	d.appendStmt(&ast.Store{Src: value, Dest: name})
}

func (d *decoder) storeGlobal() {
	value := d.stack.Pop()
	name := ast.NewName(d.code.Name(d.operand))
	d.appendStmt(&ast.Store{Src: value, Dest: name})

	// Remember the name so the renderer can emit a global declaration.
	d.code.MarkGlobal(name.Ident)
}

func (d *decoder) storeName() {
	if d.unpack > 0 {
		name := ast.NewName(d.code.Name(d.operand))
		tup, done := d.continueUnpack(name)
		if done {
			seq := d.stack.Pop()
			if it, ok := d.curblock().(*ast.IterBlock); ok && it.Inited() == ast.Uninited {
				it.SetIndex(tup)
			} else {
				d.appendStmt(&ast.Store{Src: seq, Dest: tup})
			}
		}
		return
	}

	value := d.stack.Pop()
	varname := d.code.Name(d.operand)
	if isCompTemp(varname) {
		return
	}
	name := ast.NewName(varname)

	if it, ok := d.curblock().(*ast.IterBlock); ok && it.Inited() == ast.Uninited {
		it.SetIndex(name)
		return
	}
	if imp, ok := d.stack.Top().(*ast.Import); ok {
		imp.AddStore(&ast.Store{Src: value, Dest: name})
		return
	}
	if d.bindExcept(value, name) {
		return
	}
	d.appendStmt(&ast.Store{Src: value, Dest: name})
}

// bindExcept catches the exception-binding store at the head of an
// except handler ("except E, e") so it renders on the except line rather
// than as a bogus assignment.
func (d *decoder) bindExcept(value ast.Node, name ast.Node) bool {
	cb, ok := d.curblock().(*ast.CondBlock)
	if !ok || cb.BlockType() != ast.BlockExcept || cb.Cond == nil || cb.Size() != 0 {
		return false
	}
	if value != nil {
		return false
	}
	cb.Bind = name
	return true
}

func (d *decoder) unpackSequence() {
	d.unpack = d.operand
	d.stack.Push(&ast.Tuple{})
}

// --- Control-flow handlers -----------------------------------------------

func (d *decoder) setupLoop() {
	d.pushBlock(ast.NewCondBlock(ast.BlockWhile, d.pos+d.operand, nil, false))
}

func (d *decoder) setupExcept() {
	if cont, ok := d.curblock().(*ast.ContainerBlock); ok {
		cont.SetExcept(d.pos + d.operand)
	} else {
		d.pushBlock(ast.NewContainerBlock(0, d.pos+d.operand))
	}

	// Store the current stack for the except/finally statements.
	d.hist.Push(d.stack)
	d.pushBlock(ast.NewInitedBlock(ast.BlockTry, d.pos+d.operand))

	d.needTry = false
}

func (d *decoder) setupFinally() {
	d.pushBlock(ast.NewContainerBlock(d.pos+d.operand, 0))
	// The try block is created by the next opcode, unless that opcode is
	// SETUP_EXCEPT and claims the container first.
	d.needTry = true
}

func (d *decoder) forIter() {
	iter := d.stack.Pop()

	comprehension := false
	top := d.curblock()
	if top.BlockType() == ast.BlockWhile {
		d.popTopBlock()
	} else {
		comprehension = true
	}
	forblk := ast.NewIterBlock(top.End(), iter)
	forblk.Comp = comprehension
	d.pushBlock(forblk)

	// Placeholder for the loop variable the iterator will produce.
	d.stack.Push(nil)
}

func (d *decoder) forLoop() {
	curidx := d.stack.Pop()
	iter := d.stack.Pop()

	comprehension := false
	top := d.curblock()
	if top.BlockType() == ast.BlockWhile {
		d.popTopBlock()
	} else {
		comprehension = true
	}
	forblk := ast.NewIterBlock(top.End(), iter)
	forblk.Comp = comprehension
	d.pushBlock(forblk)

	// The interpreter re-pushes the sequence and counter around the item.
	d.stack.Push(iter)
	d.stack.Push(curidx)
	d.stack.Push(nil)
}

// condJump handles every conditional-jump variant. prePop pops the
// condition before the checkpoint, condPop after it (so only the
// fall-through path loses the value); plain variants leave the stack
// alone. relative marks operands measured from the next instruction.
func condJump(neg, prePop, condPop, relative bool) handlerFunc {
	return func(d *decoder) {
		cond := d.stack.Top()
		popped := ast.Uninited

		if prePop {
			d.stack.Pop()
			popped = ast.PrePopped
		}

		// Store the current stack for the else statements.
		d.hist.Push(d.stack)

		if condPop {
			d.stack.Pop()
			popped = ast.Popped
		}

		offs := d.operand
		if relative {
			offs = d.pos + d.operand
		}

		var ifblk *ast.CondBlock
		cur := d.curblock()

		if cmp, ok := cond.(*ast.Compare); ok && cmp.Op == ast.CmpException {
			if cb, ok := cur.(*ast.CondBlock); ok && cb.BlockType() == ast.BlockExcept && cb.Cond == nil {
				d.popTopBlock()
				d.hist.Pop()
			}
			ifblk = ast.NewCondBlock(ast.BlockExcept, offs, cmp.Right, false)
		} else if cur.BlockType() == ast.BlockElse && cur.Size() == 0 {
			// Collapse into an elif.
			d.popTopBlock()
			d.restoreStack()
			ifblk = ast.NewCondBlock(ast.BlockElif, offs, cond, neg)
		} else if cur.Size() == 0 && cur.Inited() == ast.Uninited &&
			cur.BlockType() == ast.BlockWhile {
			// The condition of a pending while loop. Loop conditions do
			// not keep a checkpoint.
			d.popTopBlock()
			ifblk = ast.NewCondBlock(ast.BlockWhile, offs, cond, neg)
			d.hist.Pop()
		} else if cur.Size() == 0 && cur.End() <= offs &&
			(cur.BlockType() == ast.BlockIf || cur.BlockType() == ast.BlockElif ||
				cur.BlockType() == ast.BlockWhile) {
			// Short-circuit: combine with the inherited condition.
			top := cur.(*ast.CondBlock)
			d.popTopBlock()

			if top.BlockType() == ast.BlockWhile {
				d.hist.Pop()
			} else {
				keep := d.hist.Top()
				d.hist.Pop()
				d.hist.Pop()
				d.hist.PushSnapshot(keep)
			}

			var newcond ast.Node
			if top.End() == offs || (top.End() == d.curpos && !top.Negative) {
				newcond = ast.NewBinary(top.Cond, cond, ast.BinLogAnd)
			} else {
				newcond = ast.NewBinary(top.Cond, cond, ast.BinLogOr)
			}
			ifblk = ast.NewCondBlock(top.BlockType(), offs, newcond, neg)
		} else {
			ifblk = ast.NewCondBlock(ast.BlockIf, offs, cond, neg)
		}

		if popped != ast.Uninited {
			ifblk.Init(popped)
		}
		d.pushBlock(ifblk)
	}
}

func (d *decoder) jumpAbsolute() {
	if d.operand < d.pos {
		// Back-edge of a loop.
		if forblk := d.comprehensionFor(); forblk != nil {
			// Fold pending if-clauses into the generator, innermost first.
			for {
				cb, ok := d.curblock().(*ast.CondBlock)
				if !ok || (cb.BlockType() != ast.BlockIf && cb.BlockType() != ast.BlockElif) {
					break
				}
				forblk.AddCond(cb.Cond, cb.Negative)
				d.popTopBlock()
				d.hist.Pop()
			}
			if comp, ok := d.stack.Top().(*ast.Comprehension); ok {
				comp.AddGenerator(forblk)
			}
			d.popTopBlock()
		} else {
			d.appendStmt(&ast.Keyword{Word: ast.KwContinue})
		}
		return
	}

	if cont, ok := d.curblock().(*ast.ContainerBlock); ok {
		if cont.HasExcept() && d.pos < cont.ExceptOff {
			except := ast.NewCondBlock(ast.BlockExcept, 0, nil, false)
			except.Init(ast.Popped)
			d.pushBlock(except)
		}
		return
	}

	d.restoreStack()
	d.unwindJump(0, false)
}

func (d *decoder) jumpForward() {
	target := d.pos + d.operand

	if cont, ok := d.curblock().(*ast.ContainerBlock); ok {
		if cont.HasExcept() {
			d.hist.Push(d.stack)

			cont.SetEnd(target)
			except := ast.NewCondBlock(ast.BlockExcept, target, nil, false)
			except.Init(ast.Popped)
			d.pushBlock(except)
		}
		return
	}

	if d.curblock().BlockType() == ast.BlockWhile && d.curblock().Inited() == ast.Uninited {
		// An unconditional loop: fabricate the "while 1" condition.
		d.stack.Push(&ast.Object{Obj: pycfile.Int{Value: 1}})
		return
	}

	d.restoreStack()
	d.unwindJump(target, true)

	if cb, ok := d.curblock().(*ast.CondBlock); ok && cb.BlockType() == ast.BlockExcept {
		cb.SetEnd(target)
	}
}

// unwindJump pops closed blocks outward, opening the else (or next
// except) each if/elif/except needs. Forward jumps carry the else's end
// in the jump target; absolute jumps take it from the parent block.
func (d *decoder) unwindJump(target int, forward bool) {
	push := true
	prev := d.curblock()

	for prev != nil {
		if len(d.blocks) < 2 {
			break
		}
		d.popTopBlock()
		d.curblock().Append(prev)

		switch prev.BlockType() {
		case ast.BlockIf, ast.BlockElif:
			if forward && d.operand == 0 {
				prev = nil
				continue
			}
			if push {
				d.hist.Push(d.stack)
			}
			end := target
			if !forward {
				end = d.curblock().End()
			}
			next := ast.NewBlock(ast.BlockElse, end)
			if prev.Inited() == ast.PrePopped {
				next.Init(ast.PrePopped)
			}
			d.pushBlock(next)
			prev = nil
		case ast.BlockExcept:
			if forward && d.operand == 0 {
				prev = nil
				continue
			}
			if push {
				d.hist.Push(d.stack)
			}
			end := target
			if !forward {
				end = d.curblock().End()
			}
			next := ast.NewCondBlock(ast.BlockExcept, end, nil, false)
			next.Init(ast.Popped)
			d.pushBlock(next)
			prev = nil
		case ast.BlockElse:
			// An already-materialised else: keep unwinding outward, but
			// never open an else-of-else.
			prev = d.curblock()
			if !push {
				d.restoreStack()
			}
			push = false
		default:
			prev = nil
		}
	}
}

func (d *decoder) popBlockOp() {
	cur := d.curblock()
	if cur.BlockType() == ast.BlockContainer || cur.BlockType() == ast.BlockFinally {
		// Only an END_FINALLY closes these.
		return
	}
	if len(d.blocks) < 2 {
		return
	}

	if nodes := cur.Nodes(); len(nodes) > 0 && ast.NodeKind(nodes[len(nodes)-1]) == ast.KindKeyword {
		// The loop back-edge left a bare continue at the end of the body.
		cur.RemoveLast()
	}

	switch cur.BlockType() {
	case ast.BlockIf, ast.BlockElif, ast.BlockElse,
		ast.BlockTry, ast.BlockExcept, ast.BlockFinally:
		d.restoreStack()
	}

	tmp := d.popTopBlock()
	if !(tmp.BlockType() == ast.BlockElse && tmp.Size() == 0) {
		d.curblock().Append(tmp)
	}

	if tmp.BlockType() == ast.BlockFor && tmp.End() > d.pos {
		// The loop has an else clause covering the remainder.
		d.hist.Push(d.stack)
		d.pushBlock(ast.NewBlock(ast.BlockElse, tmp.End()))
	}

	if d.curblock().BlockType() == ast.BlockTry &&
		tmp.BlockType() != ast.BlockFor && tmp.BlockType() != ast.BlockWhile {
		d.restoreStack()
		tmp = d.popTopBlock()
		if !(tmp.BlockType() == ast.BlockElse && tmp.Size() == 0) {
			d.curblock().Append(tmp)
		}
	}

	if cont, ok := d.curblock().(*ast.ContainerBlock); ok {
		if tmp.BlockType() == ast.BlockElse && !cont.HasFinally() {
			d.popTopBlock()
			d.curblock().Append(cont)
		} else if (tmp.BlockType() == ast.BlockElse && cont.HasFinally()) ||
			(tmp.BlockType() == ast.BlockTry && !cont.HasExcept()) {
			d.hist.Push(d.stack)
			d.pushBlock(ast.NewInitedBlock(ast.BlockFinally, 0))
		}
	}
}

func (d *decoder) endFinally() {
	isFinally := false
	if d.curblock().BlockType() == ast.BlockFinally {
		final := d.popTopBlock()
		d.restoreStack()
		d.curblock().Append(final)
		isFinally = true
	} else if d.curblock().BlockType() == ast.BlockExcept {
		prev := d.popTopBlock()
		if prev.Size() != 0 {
			d.curblock().Append(prev)
		}

		cont, isCont := d.curblock().(*ast.ContainerBlock)
		if d.curblock().End() != d.pos || (isCont && cont.HasFinally()) {
			// Any remaining handler-section statements belong to an else.
			d.pushBlock(ast.NewInitedBlock(ast.BlockElse, prev.End()))
		} else {
			d.restoreStack()
		}
	}

	if cont, ok := d.curblock().(*ast.ContainerBlock); ok {
		if !cont.HasFinally() || isFinally {
			// All sections are complete; fold the scaffold away.
			d.popTopBlock()
			d.curblock().Append(cont)
		}
	}
}

func (d *decoder) popTop() {
	value := d.stack.Pop()
	cur := d.curblock()
	if cur.Inited() == ast.Uninited {
		// The fall-through side of a cond-pop branch consumes the value.
		cur.Init(ast.Popped)
		return
	}
	switch ast.NodeKind(value) {
	case ast.KindInvalid, ast.KindBinary, ast.KindName:
		return
	case ast.KindCompare:
		if value.(*ast.Compare).Op == ast.CmpException {
			return
		}
	}

	d.appendStmt(value)

	if it, ok := cur.(*ast.IterBlock); ok && it.Comp {
		// In a legacy comprehension the only POP_TOP is the call that
		// appends the item to the accumulator.
		if call, ok := value.(*ast.Call); ok && len(call.PParams) > 0 {
			d.stack.Push(&ast.Comprehension{Result: call.PParams[0]})
		}
	}
}
