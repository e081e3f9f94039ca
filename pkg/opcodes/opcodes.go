// Package opcodes maps the numeric instruction bytes of each CPython
// release to a single unified mnemonic set. The decompiler core dispatches
// on mnemonics only; the per-version numbering lives in embedded TOML
// tables (see tables.go).
package opcodes

import "strings"

// Mnemonic identifies one instruction across all supported interpreter
// versions. Mnemonics whose canonical name ends in "_A" carry an operand.
type Mnemonic int

const (
	Invalid Mnemonic = iota

	// Stack manipulation
	StopCode
	PopTop
	RotTwo
	RotThree
	RotFour
	DupTop
	DupTopTwo
	Nop

	// Unary operators
	UnaryPositive
	UnaryNegative
	UnaryNot
	UnaryConvert
	UnaryCall
	UnaryInvert

	// Binary operators
	BinaryPower
	BinaryMultiply
	BinaryDivide
	BinaryModulo
	BinaryAdd
	BinarySubtract
	BinarySubscr
	BinaryCall
	BinaryFloorDivide
	BinaryTrueDivide
	BinaryLShift
	BinaryRShift
	BinaryAnd
	BinaryXor
	BinaryOr

	// Augmented assignment
	InplaceAdd
	InplaceSubtract
	InplaceMultiply
	InplaceDivide
	InplaceModulo
	InplacePower
	InplaceLShift
	InplaceRShift
	InplaceAnd
	InplaceXor
	InplaceOr
	InplaceFloorDivide
	InplaceTrueDivide

	// Legacy slice family (pre-3.0)
	Slice0
	Slice1
	Slice2
	Slice3
	StoreSlice0
	StoreSlice1
	StoreSlice2
	StoreSlice3
	DeleteSlice0
	DeleteSlice1
	DeleteSlice2
	DeleteSlice3

	// Subscripts and maps
	StoreSubscr
	DeleteSubscr
	StoreMap

	// Iteration
	GetIter

	// Print statement family (pre-3.0)
	PrintExpr
	PrintItem
	PrintNewline
	PrintItemTo
	PrintNewlineTo

	// Misc statements
	BreakLoop
	WithCleanup
	LoadLocals
	StoreLocals
	ReturnValue
	ImportStar
	ExecStmt
	YieldValue
	YieldFrom
	PopBlock
	EndFinally
	BuildClass
	LoadBuildClass
	PopExcept
	ListAppend

	// Early-1.x call protocol
	RaiseException
	BuildFunction
	LoadGlobals

	// Operand-taking instructions
	StoreNameA
	DeleteNameA
	UnpackSequenceA
	UnpackTupleA
	UnpackListA
	UnpackArgA
	UnpackVarargA
	UnpackExA
	ForIterA
	ListAppendA
	StoreAttrA
	DeleteAttrA
	StoreGlobalA
	DeleteGlobalA
	DupTopxA
	LoadConstA
	LoadNameA
	BuildTupleA
	BuildListA
	BuildSetA
	BuildMapA
	LoadAttrA
	CompareOpA
	ImportNameA
	ImportFromA
	JumpForwardA
	JumpIfFalseA
	JumpIfTrueA
	JumpIfFalseOrPopA
	JumpIfTrueOrPopA
	JumpAbsoluteA
	PopJumpIfFalseA
	PopJumpIfTrueA
	ForLoopA
	LoadGlobalA
	LoadLocalA
	ContinueLoopA
	SetupLoopA
	SetupExceptA
	SetupFinallyA
	SetupWithA
	ReserveFastA
	LoadFastA
	StoreFastA
	DeleteFastA
	SetLinenoA
	SetFuncArgsA
	RaiseVarargsA
	CallFunctionA
	MakeFunctionA
	BuildSliceA
	MakeClosureA
	LoadClosureA
	LoadDerefA
	StoreDerefA
	DeleteDerefA
	LoadClassDerefA
	CallFunctionVarA
	CallFunctionKwA
	CallFunctionVarKwA
	ExtendedArgA
	SetAddA
	MapAddA
)

// Info provides metadata about a mnemonic.
type Info struct {
	Name    string // canonical name; "_A" suffix marks operand-taking
	Operand bool
	JumpRel bool // operand is an offset relative to the next instruction
	JumpAbs bool // operand is an absolute bytecode offset
}

var mnemonicInfo = map[Mnemonic]Info{
	StopCode:  {Name: "STOP_CODE"},
	PopTop:    {Name: "POP_TOP"},
	RotTwo:    {Name: "ROT_TWO"},
	RotThree:  {Name: "ROT_THREE"},
	RotFour:   {Name: "ROT_FOUR"},
	DupTop:    {Name: "DUP_TOP"},
	DupTopTwo: {Name: "DUP_TOP_TWO"},
	Nop:       {Name: "NOP"},

	UnaryPositive: {Name: "UNARY_POSITIVE"},
	UnaryNegative: {Name: "UNARY_NEGATIVE"},
	UnaryNot:      {Name: "UNARY_NOT"},
	UnaryConvert:  {Name: "UNARY_CONVERT"},
	UnaryCall:     {Name: "UNARY_CALL"},
	UnaryInvert:   {Name: "UNARY_INVERT"},

	BinaryPower:       {Name: "BINARY_POWER"},
	BinaryMultiply:    {Name: "BINARY_MULTIPLY"},
	BinaryDivide:      {Name: "BINARY_DIVIDE"},
	BinaryModulo:      {Name: "BINARY_MODULO"},
	BinaryAdd:         {Name: "BINARY_ADD"},
	BinarySubtract:    {Name: "BINARY_SUBTRACT"},
	BinarySubscr:      {Name: "BINARY_SUBSCR"},
	BinaryCall:        {Name: "BINARY_CALL"},
	BinaryFloorDivide: {Name: "BINARY_FLOOR_DIVIDE"},
	BinaryTrueDivide:  {Name: "BINARY_TRUE_DIVIDE"},
	BinaryLShift:      {Name: "BINARY_LSHIFT"},
	BinaryRShift:      {Name: "BINARY_RSHIFT"},
	BinaryAnd:         {Name: "BINARY_AND"},
	BinaryXor:         {Name: "BINARY_XOR"},
	BinaryOr:          {Name: "BINARY_OR"},

	InplaceAdd:         {Name: "INPLACE_ADD"},
	InplaceSubtract:    {Name: "INPLACE_SUBTRACT"},
	InplaceMultiply:    {Name: "INPLACE_MULTIPLY"},
	InplaceDivide:      {Name: "INPLACE_DIVIDE"},
	InplaceModulo:      {Name: "INPLACE_MODULO"},
	InplacePower:       {Name: "INPLACE_POWER"},
	InplaceLShift:      {Name: "INPLACE_LSHIFT"},
	InplaceRShift:      {Name: "INPLACE_RSHIFT"},
	InplaceAnd:         {Name: "INPLACE_AND"},
	InplaceXor:         {Name: "INPLACE_XOR"},
	InplaceOr:          {Name: "INPLACE_OR"},
	InplaceFloorDivide: {Name: "INPLACE_FLOOR_DIVIDE"},
	InplaceTrueDivide:  {Name: "INPLACE_TRUE_DIVIDE"},

	Slice0:       {Name: "SLICE_0"},
	Slice1:       {Name: "SLICE_1"},
	Slice2:       {Name: "SLICE_2"},
	Slice3:       {Name: "SLICE_3"},
	StoreSlice0:  {Name: "STORE_SLICE_0"},
	StoreSlice1:  {Name: "STORE_SLICE_1"},
	StoreSlice2:  {Name: "STORE_SLICE_2"},
	StoreSlice3:  {Name: "STORE_SLICE_3"},
	DeleteSlice0: {Name: "DELETE_SLICE_0"},
	DeleteSlice1: {Name: "DELETE_SLICE_1"},
	DeleteSlice2: {Name: "DELETE_SLICE_2"},
	DeleteSlice3: {Name: "DELETE_SLICE_3"},

	StoreSubscr:  {Name: "STORE_SUBSCR"},
	DeleteSubscr: {Name: "DELETE_SUBSCR"},
	StoreMap:     {Name: "STORE_MAP"},

	GetIter: {Name: "GET_ITER"},

	PrintExpr:      {Name: "PRINT_EXPR"},
	PrintItem:      {Name: "PRINT_ITEM"},
	PrintNewline:   {Name: "PRINT_NEWLINE"},
	PrintItemTo:    {Name: "PRINT_ITEM_TO"},
	PrintNewlineTo: {Name: "PRINT_NEWLINE_TO"},

	BreakLoop:      {Name: "BREAK_LOOP"},
	WithCleanup:    {Name: "WITH_CLEANUP"},
	LoadLocals:     {Name: "LOAD_LOCALS"},
	StoreLocals:    {Name: "STORE_LOCALS"},
	ReturnValue:    {Name: "RETURN_VALUE"},
	ImportStar:     {Name: "IMPORT_STAR"},
	ExecStmt:       {Name: "EXEC_STMT"},
	YieldValue:     {Name: "YIELD_VALUE"},
	YieldFrom:      {Name: "YIELD_FROM"},
	PopBlock:       {Name: "POP_BLOCK"},
	EndFinally:     {Name: "END_FINALLY"},
	BuildClass:     {Name: "BUILD_CLASS"},
	LoadBuildClass: {Name: "LOAD_BUILD_CLASS"},
	PopExcept:      {Name: "POP_EXCEPT"},
	ListAppend:     {Name: "LIST_APPEND"},

	RaiseException: {Name: "RAISE_EXCEPTION"},
	BuildFunction:  {Name: "BUILD_FUNCTION"},
	LoadGlobals:    {Name: "LOAD_GLOBALS"},

	StoreNameA:         {Name: "STORE_NAME_A", Operand: true},
	DeleteNameA:        {Name: "DELETE_NAME_A", Operand: true},
	UnpackSequenceA:    {Name: "UNPACK_SEQUENCE_A", Operand: true},
	UnpackTupleA:       {Name: "UNPACK_TUPLE_A", Operand: true},
	UnpackListA:        {Name: "UNPACK_LIST_A", Operand: true},
	UnpackArgA:         {Name: "UNPACK_ARG_A", Operand: true},
	UnpackVarargA:      {Name: "UNPACK_VARARG_A", Operand: true},
	UnpackExA:          {Name: "UNPACK_EX_A", Operand: true},
	ForIterA:           {Name: "FOR_ITER_A", Operand: true, JumpRel: true},
	ListAppendA:        {Name: "LIST_APPEND_A", Operand: true},
	StoreAttrA:         {Name: "STORE_ATTR_A", Operand: true},
	DeleteAttrA:        {Name: "DELETE_ATTR_A", Operand: true},
	StoreGlobalA:       {Name: "STORE_GLOBAL_A", Operand: true},
	DeleteGlobalA:      {Name: "DELETE_GLOBAL_A", Operand: true},
	DupTopxA:           {Name: "DUP_TOPX_A", Operand: true},
	LoadConstA:         {Name: "LOAD_CONST_A", Operand: true},
	LoadNameA:          {Name: "LOAD_NAME_A", Operand: true},
	BuildTupleA:        {Name: "BUILD_TUPLE_A", Operand: true},
	BuildListA:         {Name: "BUILD_LIST_A", Operand: true},
	BuildSetA:          {Name: "BUILD_SET_A", Operand: true},
	BuildMapA:          {Name: "BUILD_MAP_A", Operand: true},
	LoadAttrA:          {Name: "LOAD_ATTR_A", Operand: true},
	CompareOpA:         {Name: "COMPARE_OP_A", Operand: true},
	ImportNameA:        {Name: "IMPORT_NAME_A", Operand: true},
	ImportFromA:        {Name: "IMPORT_FROM_A", Operand: true},
	JumpForwardA:       {Name: "JUMP_FORWARD_A", Operand: true, JumpRel: true},
	JumpIfFalseA:       {Name: "JUMP_IF_FALSE_A", Operand: true, JumpRel: true},
	JumpIfTrueA:        {Name: "JUMP_IF_TRUE_A", Operand: true, JumpRel: true},
	JumpIfFalseOrPopA:  {Name: "JUMP_IF_FALSE_OR_POP_A", Operand: true, JumpAbs: true},
	JumpIfTrueOrPopA:   {Name: "JUMP_IF_TRUE_OR_POP_A", Operand: true, JumpAbs: true},
	JumpAbsoluteA:      {Name: "JUMP_ABSOLUTE_A", Operand: true, JumpAbs: true},
	PopJumpIfFalseA:    {Name: "POP_JUMP_IF_FALSE_A", Operand: true, JumpAbs: true},
	PopJumpIfTrueA:     {Name: "POP_JUMP_IF_TRUE_A", Operand: true, JumpAbs: true},
	ForLoopA:           {Name: "FOR_LOOP_A", Operand: true, JumpRel: true},
	LoadGlobalA:        {Name: "LOAD_GLOBAL_A", Operand: true},
	LoadLocalA:         {Name: "LOAD_LOCAL_A", Operand: true},
	ContinueLoopA:      {Name: "CONTINUE_LOOP_A", Operand: true, JumpAbs: true},
	SetupLoopA:         {Name: "SETUP_LOOP_A", Operand: true, JumpRel: true},
	SetupExceptA:       {Name: "SETUP_EXCEPT_A", Operand: true, JumpRel: true},
	SetupFinallyA:      {Name: "SETUP_FINALLY_A", Operand: true, JumpRel: true},
	SetupWithA:         {Name: "SETUP_WITH_A", Operand: true, JumpRel: true},
	ReserveFastA:       {Name: "RESERVE_FAST_A", Operand: true},
	LoadFastA:          {Name: "LOAD_FAST_A", Operand: true},
	StoreFastA:         {Name: "STORE_FAST_A", Operand: true},
	DeleteFastA:        {Name: "DELETE_FAST_A", Operand: true},
	SetLinenoA:         {Name: "SET_LINENO_A", Operand: true},
	SetFuncArgsA:       {Name: "SET_FUNC_ARGS_A", Operand: true},
	RaiseVarargsA:      {Name: "RAISE_VARARGS_A", Operand: true},
	CallFunctionA:      {Name: "CALL_FUNCTION_A", Operand: true},
	MakeFunctionA:      {Name: "MAKE_FUNCTION_A", Operand: true},
	BuildSliceA:        {Name: "BUILD_SLICE_A", Operand: true},
	MakeClosureA:       {Name: "MAKE_CLOSURE_A", Operand: true},
	LoadClosureA:       {Name: "LOAD_CLOSURE_A", Operand: true},
	LoadDerefA:         {Name: "LOAD_DEREF_A", Operand: true},
	StoreDerefA:        {Name: "STORE_DEREF_A", Operand: true},
	DeleteDerefA:       {Name: "DELETE_DEREF_A", Operand: true},
	LoadClassDerefA:    {Name: "LOAD_CLASSDEREF_A", Operand: true},
	CallFunctionVarA:   {Name: "CALL_FUNCTION_VAR_A", Operand: true},
	CallFunctionKwA:    {Name: "CALL_FUNCTION_KW_A", Operand: true},
	CallFunctionVarKwA: {Name: "CALL_FUNCTION_VAR_KW_A", Operand: true},
	ExtendedArgA:       {Name: "EXTENDED_ARG_A", Operand: true},
	SetAddA:            {Name: "SET_ADD_A", Operand: true},
	MapAddA:            {Name: "MAP_ADD_A", Operand: true},
}

// byName maps canonical names (with the "_A" suffix) back to mnemonics.
// Built once; used by the TOML table loader.
var byName = func() map[string]Mnemonic {
	m := make(map[string]Mnemonic, len(mnemonicInfo))
	for mn, info := range mnemonicInfo {
		m[info.Name] = mn
	}
	return m
}()

// GetInfo returns metadata for a mnemonic. Unknown mnemonics report as
// "INVALID" with no operand.
func GetInfo(m Mnemonic) Info {
	if info, ok := mnemonicInfo[m]; ok {
		return info
	}
	return Info{Name: "INVALID"}
}

// String returns the display name of the mnemonic, without the internal
// "_A" operand marker.
func (m Mnemonic) String() string {
	return strings.TrimSuffix(GetInfo(m).Name, "_A")
}

// HasOperand reports whether the instruction carries an operand.
func (m Mnemonic) HasOperand() bool {
	return GetInfo(m).Operand
}

// IsJumpRel reports whether the operand is a forward offset relative to
// the following instruction.
func (m Mnemonic) IsJumpRel() bool {
	return GetInfo(m).JumpRel
}

// IsJumpAbs reports whether the operand is an absolute bytecode offset.
func (m Mnemonic) IsJumpAbs() bool {
	return GetInfo(m).JumpAbs
}

// ByName resolves a canonical mnemonic name (e.g. "LOAD_CONST_A").
func ByName(name string) (Mnemonic, bool) {
	m, ok := byName[name]
	return m, ok
}

// Count returns the number of known mnemonics.
func Count() int {
	return len(mnemonicInfo)
}
