package ast

// BlockType tags block containers.
type BlockType int

const (
	BlockMain BlockType = iota
	BlockIf
	BlockElse
	BlockElif
	BlockTry
	BlockContainer
	BlockExcept
	BlockFinally
	BlockWhile
	BlockFor
)

var blockTypeStrings = [...]string{
	"", "if", "else", "elif", "try", "", "except", "finally", "while", "for",
}

// Condition pop disciplines for conditional blocks. A block starts
// Uninited; Popped marks an …_OR_POP jump whose fall-through consumed
// the condition, PrePopped a POP_JUMP_IF_* jump.
const (
	Uninited  = 0
	Popped    = 1
	PrePopped = 2
)

// Block is a syntactic container reconstructed from flat bytecode. All
// blocks are also nodes, so they nest.
type Block interface {
	Node
	BlockType() BlockType
	End() int
	SetEnd(end int)
	Nodes() []Node
	Append(n Node)
	RemoveLast()
	Size() int
	Inited() int
	Init(state int)
	TypeStr() string
}

// BaseBlock carries the state shared by every block variant.
type BaseBlock struct {
	typ    BlockType
	end    int
	nodes  []Node
	inited int
}

// NewBlock builds a plain block of the given type.
func NewBlock(typ BlockType, end int) *BaseBlock {
	return &BaseBlock{typ: typ, end: end}
}

// NewInitedBlock builds a plain block already marked initialised, for
// blocks with no pending condition (try bodies, the main block).
func NewInitedBlock(typ BlockType, end int) *BaseBlock {
	return &BaseBlock{typ: typ, end: end, inited: Popped}
}

func (*BaseBlock) Kind() Kind { return KindBlock }

func (b *BaseBlock) BlockType() BlockType { return b.typ }
func (b *BaseBlock) End() int             { return b.end }
func (b *BaseBlock) SetEnd(end int)       { b.end = end }
func (b *BaseBlock) Nodes() []Node        { return b.nodes }
func (b *BaseBlock) Size() int            { return len(b.nodes) }
func (b *BaseBlock) Inited() int          { return b.inited }
func (b *BaseBlock) Init(state int)       { b.inited = state }

// Append adds a statement to the block body.
func (b *BaseBlock) Append(n Node) { b.nodes = append(b.nodes, n) }

// RemoveLast drops the trailing statement.
func (b *BaseBlock) RemoveLast() {
	if len(b.nodes) > 0 {
		b.nodes = b.nodes[:len(b.nodes)-1]
	}
}

// TypeStr returns the block's keyword, empty for main and container
// blocks.
func (b *BaseBlock) TypeStr() string { return blockTypeStrings[b.typ] }

// CondBlock is a conditional block: if, elif, while, or except. Bind is
// the exception binding target of "except Cond, bind".
type CondBlock struct {
	BaseBlock
	Cond     Node
	Negative bool
	Bind     Node
}

// NewCondBlock builds a conditional block.
func NewCondBlock(typ BlockType, end int, cond Node, negative bool) *CondBlock {
	return &CondBlock{
		BaseBlock: BaseBlock{typ: typ, end: end},
		Cond:      cond,
		Negative:  negative,
	}
}

// IfClause is one "if cond" fragment of a comprehension generator.
type IfClause struct {
	Cond     Node
	Negative bool
}

// IterBlock is a for block. Comp marks loops synthesised for a
// list comprehension; Conds collects the comprehension's if-clauses.
type IterBlock struct {
	BaseBlock
	Iter  Node
	Index Node
	Comp  bool
	Conds []IfClause
}

// NewIterBlock builds a for block over iter.
func NewIterBlock(end int, iter Node) *IterBlock {
	return &IterBlock{BaseBlock: BaseBlock{typ: BlockFor, end: end}, Iter: iter}
}

// SetIndex records the loop target and marks the block initialised.
func (b *IterBlock) SetIndex(idx Node) {
	b.Index = idx
	b.Init(Popped)
}

// AddCond prepends an if-clause; clauses fold innermost-first, so
// prepending restores source order.
func (b *IterBlock) AddCond(cond Node, negative bool) {
	b.Conds = append([]IfClause{{Cond: cond, Negative: negative}}, b.Conds...)
}

// ContainerBlock scaffolds a try statement: it carries the offsets of
// the except and finally sections and owns the try/except/else/finally
// blocks appended into it.
type ContainerBlock struct {
	BaseBlock
	ExceptOff  int
	FinallyOff int
}

// NewContainerBlock builds a try scaffold. A zero offset means the
// corresponding section is absent.
func NewContainerBlock(finallyOff, exceptOff int) *ContainerBlock {
	return &ContainerBlock{
		BaseBlock:  BaseBlock{typ: BlockContainer},
		ExceptOff:  exceptOff,
		FinallyOff: finallyOff,
	}
}

// HasExcept reports whether an except section was announced.
func (b *ContainerBlock) HasExcept() bool { return b.ExceptOff != 0 }

// HasFinally reports whether a finally section was announced.
func (b *ContainerBlock) HasFinally() bool { return b.FinallyOff != 0 }

// SetExcept records the except section offset.
func (b *ContainerBlock) SetExcept(off int) { b.ExceptOff = off }
