package pycfile

// Module is the version context of a loaded pyc file plus its top-level
// code object.
type Module struct {
	Major int
	Minor int
	Code  *Code
}

// AtLeast reports whether the module's interpreter version is at or
// above major.minor.
func (m *Module) AtLeast(major, minor int) bool {
	if m.Major != major {
		return m.Major > major
	}
	return m.Minor >= minor
}

// magicVersions maps the leading four bytes of a pyc file (read
// little-endian) to the interpreter version that wrote it. The 1.0 and
// 1.1 entries predate the 0x0A0D (\r\n) convention.
var magicVersions = map[uint32][2]int{
	0x00999902: {1, 0},
	0x00999903: {1, 1}, // also 1.2
	0x0A0D2E89: {1, 3},
	0x0A0D1704: {1, 4},
	0x0A0D4E99: {1, 5},
	0x0A0DC4FC: {1, 6},
	0x0A0DC687: {2, 0},
	0x0A0DEB2A: {2, 1},
	0x0A0DED2D: {2, 2},
	0x0A0DF23B: {2, 3},
	0x0A0DF26D: {2, 4},
	0x0A0DF2B3: {2, 5},
	0x0A0DF2D1: {2, 6},
	0x0A0DF303: {2, 7},
	0x0A0D0C3A: {3, 0},
	0x0A0D0C4E: {3, 1},
	0x0A0D0C6C: {3, 2},
	0x0A0D0C9E: {3, 3},
	0x0A0D0CEE: {3, 4},
	0x0A0D0D16: {3, 5},
	0x0A0D0D17: {3, 5}, // 3.5.3+
	0x0A0D0D33: {3, 6},
	0x0A0D0D42: {3, 7},
	0x0A0D0D55: {3, 8},
}

// versionForMagic resolves a magic word to (major, minor).
func versionForMagic(magic uint32) (int, int, bool) {
	v, ok := magicVersions[magic]
	if !ok {
		return 0, 0, false
	}
	return v[0], v[1], true
}
