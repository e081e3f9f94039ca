package decompile

import (
	"bytes"
	"testing"

	"github.com/zzkshare/pycdc/pkg/pycfile"
)

func renderConst(obj pycfile.Object, mod *pycfile.Module) string {
	var buf bytes.Buffer
	r := &RenderContext{w: &buf, mod: mod}
	r.printConst(obj)
	return buf.String()
}

func TestConstScalars(t *testing.T) {
	tests := []struct {
		obj  pycfile.Object
		want string
	}{
		{pycfile.Int{Value: 42}, "42"},
		{pycfile.Int{Value: -1}, "-1"},
		{pycfile.Int64{Value: 1 << 40}, "1099511627776"},
		{pycfile.None, "None"},
		{pycfile.True, "True"},
		{pycfile.False, "False"},
		{pycfile.Ellipsis, "Ellipsis"},
		{pycfile.Float{Value: 1.5}, "1.5"},
		{pycfile.Float{Text: "0.1"}, "0.1"},
	}
	for _, tt := range tests {
		if got := renderConst(tt.obj, mod27); got != tt.want {
			t.Errorf("printConst(%#v) = %q, want %q", tt.obj, got, tt.want)
		}
	}
}

func TestConstStrings(t *testing.T) {
	if got := renderConst(pycfile.NewString("hi"), mod27); got != "'hi'" {
		t.Errorf("2.x string = %q, want 'hi'", got)
	}
	mod3 := &pycfile.Module{Major: 3, Minor: 2}
	if got := renderConst(pycfile.NewString("hi"), mod3); got != "b'hi'" {
		t.Errorf("3.x byte string = %q, want b'hi'", got)
	}
	if got := renderConst(&pycfile.Unicode{Value: "hi"}, mod27); got != "u'hi'" {
		t.Errorf("2.x unicode = %q, want u'hi'", got)
	}
	if got := renderConst(&pycfile.Unicode{Value: "hi"}, mod3); got != "'hi'" {
		t.Errorf("3.x text string = %q, want 'hi'", got)
	}
}

func TestConstStringQuoting(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"it's", `"it's"`},
		{`say "hi"`, `'say "hi"'`},
		{"a\nb", `'a\nb'`},
		{"tab\there", `'tab\there'`},
		{"back\\slash", `'back\\slash'`},
		{"\x01", `'\x01'`},
	}
	for _, tt := range tests {
		if got := renderConst(pycfile.NewString(tt.in), mod27); got != tt.want {
			t.Errorf("quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestConstLong(t *testing.T) {
	// 123456789 = (0x75BCD15): low digit 0x4D15? Use digits computed from
	// 15-bit groups: 123456789 = 0b111010110111100110100010101.
	long := pycfile.Long{Digits: []uint16{0x4D15, 0x0EB7}}
	// 0x0EB7 << 15 | 0x4D15 = 123456789
	if got := renderConst(long, mod27); got != "123456789L" {
		t.Errorf("2.x long = %q, want 123456789L", got)
	}
	mod3 := &pycfile.Module{Major: 3, Minor: 0}
	if got := renderConst(long, mod3); got != "123456789" {
		t.Errorf("3.x long = %q, want 123456789", got)
	}
	neg := pycfile.Long{Negative: true, Digits: []uint16{5}}
	if got := renderConst(neg, mod27); got != "-5L" {
		t.Errorf("negative long = %q, want -5L", got)
	}
}

func TestConstContainers(t *testing.T) {
	tup := &pycfile.Tuple{Values: []pycfile.Object{pycfile.Int{Value: 1}, pycfile.Int{Value: 2}}}
	if got := renderConst(tup, mod27); got != "(1, 2)" {
		t.Errorf("tuple = %q", got)
	}
	one := &pycfile.Tuple{Values: []pycfile.Object{pycfile.Int{Value: 1}}}
	if got := renderConst(one, mod27); got != "(1,)" {
		t.Errorf("1-tuple = %q, want trailing comma", got)
	}
	list := &pycfile.List{Values: []pycfile.Object{pycfile.NewString("x")}}
	if got := renderConst(list, mod27); got != "['x']" {
		t.Errorf("list = %q", got)
	}
	dict := &pycfile.Dict{
		Keys:   []pycfile.Object{pycfile.NewString("k")},
		Values: []pycfile.Object{pycfile.Int{Value: 9}},
	}
	if got := renderConst(dict, mod27); got != "{'k': 9}" {
		t.Errorf("dict = %q", got)
	}
}

func TestDocStringTriple(t *testing.T) {
	var buf bytes.Buffer
	r := &RenderContext{w: &buf, mod: mod27}
	r.printDocString(pycfile.NewString("line one\nline two"))
	got := buf.String()
	if got != "'''line one\nline two'''" {
		t.Errorf("docstring = %q", got)
	}
}
