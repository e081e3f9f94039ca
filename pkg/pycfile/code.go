package pycfile

// Code object flag bits, shared across versions.
const (
	FlagOptimized   = 0x0001
	FlagNewLocals   = 0x0002
	FlagVarArgs     = 0x0004
	FlagVarKeywords = 0x0008
	FlagNested      = 0x0010
	FlagGenerator   = 0x0020
)

// Code is one function's bytecode plus its metadata tables.
type Code struct {
	ArgCnt   int
	KwOnly   int
	Locals   int
	StackSz  int
	CodeFlag int

	CodeBytes []byte

	Consts   *Tuple
	Names    *Tuple
	VarNames *Tuple
	FreeVars *Tuple
	CellVars *Tuple

	FileName  string
	CodeName  string
	FirstLine int
	LNTab     string

	mod *Module

	globals     []string
	globalsSeen map[string]bool
}

func (*Code) Type() ObjectType { return TypeCode }

// Bytes returns the raw instruction stream.
func (c *Code) Bytes() []byte { return c.CodeBytes }

// ArgCount returns the declared positional-argument count.
func (c *Code) ArgCount() int { return c.ArgCnt }

// StackSize returns the compiler's stack-depth hint.
func (c *Code) StackSize() int { return c.StackSz }

// Flags returns the code object's flag bitset.
func (c *Code) Flags() int { return c.CodeFlag }

// Name returns the name-table entry at index i.
func (c *Code) Name(i int) string {
	return tupleString(c.Names, i)
}

// Const returns the constants-pool entry at index i, or nil when the
// index is out of range.
func (c *Code) Const(i int) Object {
	if c.Consts == nil || i < 0 || i >= len(c.Consts.Values) {
		return nil
	}
	return c.Consts.Values[i]
}

// VarName returns the local-variable name at index i. Versions before
// 1.3 have no varname table; the name table stands in for it.
func (c *Code) VarName(i int) string {
	if c.mod != nil && c.mod.Major == 1 && c.mod.Minor < 3 {
		return c.Name(i)
	}
	return tupleString(c.VarNames, i)
}

// MarkGlobal records that the code stored to a module-level name, so the
// renderer can emit a global declaration. Duplicate marks are dropped;
// first-store order is preserved.
func (c *Code) MarkGlobal(name string) {
	if c.globalsSeen == nil {
		c.globalsSeen = make(map[string]bool)
	}
	if c.globalsSeen[name] {
		return
	}
	c.globalsSeen[name] = true
	c.globals = append(c.globals, name)
}

// Globals returns the marked global names in first-store order.
func (c *Code) Globals() []string { return c.globals }

func tupleString(t *Tuple, i int) string {
	if t == nil || i < 0 || i >= len(t.Values) {
		return ""
	}
	return StringValue(t.Values[i])
}
