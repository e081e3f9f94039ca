package ast

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/zzkshare/pycdc/pkg/pycfile"
)

// cborEncMode uses canonical options so identical trees always encode
// to identical bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("ast: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// DumpNode is the wire form of one AST node: a kind tag, an optional
// label (identifier, operator, literal), and ordered children.
type DumpNode struct {
	Kind     string      `cbor:"kind"`
	Label    string      `cbor:"label,omitempty"`
	Children []*DumpNode `cbor:"children,omitempty"`
}

// MarshalAST serializes a decoded tree to canonical CBOR.
func MarshalAST(node Node) ([]byte, error) {
	return cborEncMode.Marshal(toDump(node))
}

// UnmarshalDump deserializes a dump produced by MarshalAST.
func UnmarshalDump(data []byte) (*DumpNode, error) {
	var d DumpNode
	if err := cbor.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("ast: unmarshal dump: %w", err)
	}
	return &d, nil
}

var kindNames = map[Kind]string{
	KindInvalid:       "invalid",
	KindNodeList:      "body",
	KindObject:        "const",
	KindUnary:         "unary",
	KindBinary:        "binary",
	KindCompare:       "compare",
	KindSlice:         "slice",
	KindStore:         "store",
	KindReturn:        "return",
	KindName:          "name",
	KindDelete:        "delete",
	KindFunction:      "function",
	KindClass:         "class",
	KindCall:          "call",
	KindKeyword:       "keyword",
	KindPrint:         "print",
	KindConvert:       "convert",
	KindImport:        "import",
	KindTuple:         "tuple",
	KindList:          "list",
	KindMap:           "map",
	KindSubscr:        "subscript",
	KindRaise:         "raise",
	KindExec:          "exec",
	KindBlock:         "block",
	KindComprehension: "comprehension",
	KindLocals:        "locals",
	KindPass:          "pass",
}

func toDump(node Node) *DumpNode {
	if node == nil {
		return &DumpNode{Kind: "none"}
	}
	d := &DumpNode{Kind: kindNames[node.Kind()]}
	switch n := node.(type) {
	case *NodeList:
		for _, child := range n.Nodes {
			d.Children = append(d.Children, toDump(child))
		}
	case *Name:
		d.Label = n.Ident
	case *Object:
		d.Label = objectLabel(n.Obj)
	case *Unary:
		d.Label = n.OpString()
		d.Children = []*DumpNode{toDump(n.Operand)}
	case *Binary:
		d.Label = n.OpString()
		d.Children = []*DumpNode{toDump(n.Left), toDump(n.Right)}
	case *Compare:
		d.Label = n.OpString()
		d.Children = []*DumpNode{toDump(n.Left), toDump(n.Right)}
	case *Slice:
		d.Label = fmt.Sprintf("%d", n.Op)
		d.Children = []*DumpNode{toDump(n.Left), toDump(n.Right)}
	case *Subscr:
		d.Children = []*DumpNode{toDump(n.Target), toDump(n.Key)}
	case *Store:
		d.Children = []*DumpNode{toDump(n.Src), toDump(n.Dest)}
	case *Delete:
		d.Children = []*DumpNode{toDump(n.Value)}
	case *Return:
		if n.Ret == RetYield {
			d.Label = "yield"
		}
		d.Children = []*DumpNode{toDump(n.Value)}
	case *Raise:
		for _, p := range n.Params {
			d.Children = append(d.Children, toDump(p))
		}
	case *Print:
		if n.Stream != nil {
			d.Children = append(d.Children, toDump(n.Stream))
		}
		d.Children = append(d.Children, toDump(n.Value))
	case *Exec:
		d.Children = []*DumpNode{toDump(n.Stmt), toDump(n.Globals), toDump(n.Locals)}
	case *Keyword:
		d.Label = n.WordString()
	case *Convert:
		d.Children = []*DumpNode{toDump(n.Value)}
	case *Call:
		d.Children = append(d.Children, toDump(n.Func))
		for _, p := range n.PParams {
			d.Children = append(d.Children, toDump(p))
		}
		for _, kw := range n.KwParams {
			d.Children = append(d.Children, &DumpNode{
				Kind:     "kwarg",
				Children: []*DumpNode{toDump(kw.Name), toDump(kw.Value)},
			})
		}
		if n.HasVar() {
			d.Children = append(d.Children, &DumpNode{Kind: "starargs", Children: []*DumpNode{toDump(n.Var)}})
		}
		if n.HasKW() {
			d.Children = append(d.Children, &DumpNode{Kind: "kwargs", Children: []*DumpNode{toDump(n.KW)}})
		}
	case *Tuple:
		for _, v := range n.Values {
			d.Children = append(d.Children, toDump(v))
		}
	case *List:
		for _, v := range n.Values {
			d.Children = append(d.Children, toDump(v))
		}
	case *Map:
		for _, e := range n.Entries {
			d.Children = append(d.Children, &DumpNode{
				Kind:     "entry",
				Children: []*DumpNode{toDump(e.Key), toDump(e.Value)},
			})
		}
	case *Comprehension:
		d.Children = append(d.Children, toDump(n.Result))
		for _, g := range n.Generators {
			d.Children = append(d.Children, toDump(g))
		}
	case *Function:
		d.Children = []*DumpNode{toDump(n.Code)}
		for _, def := range n.DefArgs {
			d.Children = append(d.Children, toDump(def))
		}
	case *Class:
		d.Children = []*DumpNode{toDump(n.Name), toDump(n.Bases), toDump(n.Code)}
	case *Import:
		d.Children = []*DumpNode{toDump(n.Name), toDump(n.FromList)}
		for _, s := range n.Stores {
			d.Children = append(d.Children, toDump(s))
		}
	case Block:
		d.Label = n.TypeStr()
		if cond, ok := n.(*CondBlock); ok && cond.Cond != nil {
			d.Children = append(d.Children, &DumpNode{Kind: "cond", Children: []*DumpNode{toDump(cond.Cond)}})
		}
		if iter, ok := n.(*IterBlock); ok {
			d.Children = append(d.Children,
				&DumpNode{Kind: "index", Children: []*DumpNode{toDump(iter.Index)}},
				&DumpNode{Kind: "iter", Children: []*DumpNode{toDump(iter.Iter)}})
		}
		for _, child := range n.Nodes() {
			d.Children = append(d.Children, toDump(child))
		}
	}
	return d
}

func objectLabel(obj pycfile.Object) string {
	if obj == nil {
		return "None"
	}
	switch v := obj.(type) {
	case pycfile.Int:
		return fmt.Sprintf("%d", v.Value)
	case pycfile.Int64:
		return fmt.Sprintf("%d", v.Value)
	case pycfile.Float:
		if v.Text != "" {
			return v.Text
		}
		return fmt.Sprintf("%g", v.Value)
	case *pycfile.String:
		return v.Value
	case *pycfile.Unicode:
		return v.Value
	case *pycfile.Code:
		return v.CodeName
	}
	return fmt.Sprintf("<type %d>", obj.Type())
}
