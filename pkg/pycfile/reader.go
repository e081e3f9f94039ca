package pycfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/datawire/dlib/derror"
)

// Marshal type bytes, per Python/marshal.c.
const (
	typeNull          = '0'
	typeNone          = 'N'
	typeFalse         = 'F'
	typeTrue          = 'T'
	typeStopIter      = 'S'
	typeEllipsis      = '.'
	typeInt           = 'i'
	typeInt64         = 'I'
	typeFloat         = 'f'
	typeBinaryFloat   = 'g'
	typeComplex       = 'x'
	typeBinaryComplex = 'y'
	typeLong          = 'l'
	typeString        = 's'
	typeInterned      = 't'
	typeStringRef     = 'R'
	typeRef           = 'r'
	typeTuple         = '('
	typeList          = '['
	typeDict          = '{'
	typeCode          = 'c'
	typeCodeOld       = 'C'
	typeUnicode       = 'u'
	typeSet           = '<'
	typeFrozenSet     = '>'

	typeAscii              = 'a'
	typeAsciiInterned      = 'A'
	typeSmallTuple         = ')'
	typeShortAscii         = 'z'
	typeShortAsciiInterned = 'Z'

	flagRef = 0x80
)

// Sentinel errors for container-level failures.
var (
	ErrBadMagic  = errors.New("pycfile: unrecognized magic word")
	ErrTruncated = errors.New("pycfile: unexpected end of data")
)

// LoadFile reads and unmarshals a pyc file from disk.
func LoadFile(path string) (*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	mod, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mod, nil
}

// Load reads a pyc stream: magic word, header words, then the top-level
// marshalled code object. The interpreter version is inferred from the
// magic word.
func Load(r io.Reader) (mod *Module, err error) {
	defer func() {
		if _err := derror.PanicToError(recover()); _err != nil {
			err = _err
		}
	}()

	rd := &reader{in: r}
	magic := rd.u32()
	major, minor, ok := versionForMagic(magic)
	if !ok {
		return nil, fmt.Errorf("%w: %#08x", ErrBadMagic, magic)
	}
	return loadBody(rd, major, minor)
}

// LoadVersion reads a pyc stream whose version is forced by the caller,
// bypassing magic-word detection. The header words after the magic are
// still consumed per the given version's layout.
func LoadVersion(r io.Reader, major, minor int) (mod *Module, err error) {
	defer func() {
		if _err := derror.PanicToError(recover()); _err != nil {
			err = _err
		}
	}()

	rd := &reader{in: r}
	rd.u32() // magic, ignored
	return loadBody(rd, major, minor)
}

func loadBody(rd *reader, major, minor int) (*Module, error) {
	mod := &Module{Major: major, Minor: minor}
	rd.mod = mod

	if major > 3 || (major == 3 && minor >= 7) {
		flags := rd.u32()
		_ = flags
		rd.bytes(8) // mtime+size or source hash
	} else {
		rd.u32() // mtime
		if major == 3 && minor >= 3 {
			rd.u32() // source size
		}
	}

	obj := rd.object()
	code, ok := obj.(*Code)
	if !ok {
		return nil, fmt.Errorf("pycfile: top-level object is not code (type %d)", obj.Type())
	}
	mod.Code = code
	return mod, nil
}

// reader walks the marshal stream. Primitive readers panic on short
// reads; the Load entry points convert panics back into errors.
type reader struct {
	in   io.Reader
	mod  *Module
	refs []Object // FLAG_REF / TYPE_REF table
	// interned strings for TYPE_STRINGREF (pre-2.5 interning protocol)
	interned []*String
}

func (r *reader) bytes(n int) []byte {
	if n < 0 {
		panic(fmt.Errorf("pycfile: bad marshal data: negative length %d", n))
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.in, buf); err != nil {
		panic(fmt.Errorf("%w: %v", ErrTruncated, err))
	}
	return buf
}

func (r *reader) byte() byte { return r.bytes(1)[0] }

func (r *reader) u16() uint16 { return binary.LittleEndian.Uint16(r.bytes(2)) }

func (r *reader) u32() uint32 { return binary.LittleEndian.Uint32(r.bytes(4)) }

func (r *reader) i32() int32 { return int32(r.u32()) }

func (r *reader) i64() int64 { return int64(binary.LittleEndian.Uint64(r.bytes(8))) }

func (r *reader) floatStr() (string, float64) {
	n := int(r.byte())
	text := string(r.bytes(n))
	var val float64
	fmt.Sscanf(text, "%g", &val)
	return text, val
}

func (r *reader) floatBin() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(r.bytes(8)))
}

// object reads one marshalled value.
func (r *reader) object() Object {
	typ := r.byte()
	ref := typ&flagRef != 0
	typ &^= flagRef

	var refIdx int
	if ref {
		// Reserve the slot before reading children so self-referential
		// containers resolve.
		refIdx = len(r.refs)
		r.refs = append(r.refs, nil)
	}

	obj := r.value(typ)

	if ref {
		r.refs[refIdx] = obj
	}
	return obj
}

func (r *reader) value(typ byte) Object {
	switch typ {
	case typeNull:
		return nil
	case typeNone:
		return None
	case typeFalse:
		return False
	case typeTrue:
		return True
	case typeStopIter:
		return StopIteration
	case typeEllipsis:
		return Ellipsis

	case typeInt:
		return Int{Value: r.i32()}
	case typeInt64:
		return Int64{Value: r.i64()}

	case typeFloat:
		text, val := r.floatStr()
		return Float{Value: val, Text: text}
	case typeBinaryFloat:
		return Float{Value: r.floatBin()}
	case typeComplex:
		_, real := r.floatStr()
		_, imag := r.floatStr()
		return Complex{Real: real, Imag: imag}
	case typeBinaryComplex:
		real := r.floatBin()
		imag := r.floatBin()
		return Complex{Real: real, Imag: imag}

	case typeLong:
		n := r.i32()
		neg := n < 0
		if neg {
			n = -n
		}
		digits := make([]uint16, n)
		for i := range digits {
			digits[i] = r.u16()
		}
		return Long{Negative: neg, Digits: digits}

	case typeString:
		return NewString(string(r.bytes(int(r.i32()))))
	case typeInterned:
		s := NewInterned(string(r.bytes(int(r.i32()))))
		r.interned = append(r.interned, s)
		return s
	case typeStringRef:
		idx := int(r.i32())
		if idx < 0 || idx >= len(r.interned) {
			panic(fmt.Errorf("pycfile: bad marshal data: string ref %d out of range", idx))
		}
		return r.interned[idx]
	case typeUnicode:
		return &Unicode{Value: string(r.bytes(int(r.i32())))}
	case typeAscii, typeAsciiInterned:
		return &Unicode{Value: string(r.bytes(int(r.i32())))}
	case typeShortAscii, typeShortAsciiInterned:
		return &Unicode{Value: string(r.bytes(int(r.byte())))}

	case typeTuple:
		return &Tuple{Values: r.objects(int(r.i32()))}
	case typeSmallTuple:
		return &Tuple{Values: r.objects(int(r.byte()))}
	case typeList:
		return &List{Values: r.objects(int(r.i32()))}
	case typeSet:
		return &Set{Values: r.objects(int(r.i32()))}
	case typeFrozenSet:
		return &Set{Values: r.objects(int(r.i32())), Frozen: true}

	case typeDict:
		d := &Dict{}
		for {
			key := r.object()
			if key == nil {
				return d
			}
			d.Keys = append(d.Keys, key)
			d.Values = append(d.Values, r.object())
		}

	case typeRef:
		idx := int(r.i32())
		if idx < 0 || idx >= len(r.refs) || r.refs[idx] == nil {
			panic(fmt.Errorf("pycfile: bad marshal data: object ref %d out of range", idx))
		}
		return r.refs[idx]

	case typeCode, typeCodeOld:
		return r.code()

	default:
		panic(fmt.Errorf("pycfile: bad marshal data: unknown type byte %q", typ))
	}
}

func (r *reader) objects(n int) []Object {
	if n < 0 {
		panic(fmt.Errorf("pycfile: bad marshal data: sequence size %d", n))
	}
	vals := make([]Object, n)
	for i := range vals {
		vals[i] = r.object()
	}
	return vals
}

// code reads a code object using the field layout of the module's
// version.
func (r *reader) code() *Code {
	c := &Code{mod: r.mod}
	maj, min := r.mod.Major, r.mod.Minor

	switch {
	case maj > 2 || (maj == 2 && min >= 3):
		c.ArgCnt = int(r.i32())
		if maj == 3 && min >= 8 {
			r.i32() // posonlyargcount
		}
		if maj >= 3 {
			c.KwOnly = int(r.i32())
		}
		c.Locals = int(r.i32())
		c.StackSz = int(r.i32())
		c.CodeFlag = int(r.i32())
	case maj == 2 || (maj == 1 && min >= 5):
		c.ArgCnt = int(r.u16())
		c.Locals = int(r.u16())
		c.StackSz = int(r.u16())
		c.CodeFlag = int(r.u16())
	case maj == 1 && min >= 3:
		c.ArgCnt = int(r.u16())
		c.Locals = int(r.u16())
		c.CodeFlag = int(r.u16())
	}

	c.CodeBytes = []byte(r.stringObject("code"))
	c.Consts = r.tupleObject("consts")
	c.Names = r.tupleObject("names")
	if maj > 1 || min >= 3 {
		c.VarNames = r.tupleObject("varnames")
	}
	if maj > 2 || (maj == 2 && min >= 1) {
		c.FreeVars = r.tupleObject("freevars")
		c.CellVars = r.tupleObject("cellvars")
	}
	c.FileName = r.stringObject("filename")
	c.CodeName = r.stringObject("name")
	if maj > 1 || min >= 5 {
		if maj > 2 || (maj == 2 && min >= 3) {
			c.FirstLine = int(r.i32())
		} else {
			c.FirstLine = int(r.u16())
		}
		c.LNTab = r.stringObject("lnotab")
	}
	return c
}

func (r *reader) stringObject(field string) string {
	obj := r.object()
	if !IsStringLike(obj) {
		panic(fmt.Errorf("pycfile: bad marshal data: code %s is not a string", field))
	}
	return StringValue(obj)
}

func (r *reader) tupleObject(field string) *Tuple {
	obj := r.object()
	if obj == nil || obj.Type() == TypeNone {
		return &Tuple{}
	}
	t, ok := obj.(*Tuple)
	if !ok {
		panic(fmt.Errorf("pycfile: bad marshal data: code %s is not a tuple", field))
	}
	return t
}
