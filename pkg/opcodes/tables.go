package opcodes

import (
	"embed"
	"fmt"
	"sort"
	"strconv"

	"github.com/BurntSushi/toml"
)

//go:embed tables/*.toml
var tableFS embed.FS

// Table maps the instruction bytes of one interpreter generation to
// mnemonics.
type Table struct {
	Version string
	byCode  map[byte]Mnemonic
}

// Lookup returns the mnemonic for an instruction byte, or Invalid when the
// byte is not part of this generation's instruction set.
func (t *Table) Lookup(b byte) Mnemonic {
	return t.byCode[b]
}

// tableDoc is the on-disk TOML layout of one generation table.
type tableDoc struct {
	Version string            `toml:"version"`
	Major   int               `toml:"major"`
	Minor   int               `toml:"minor"`
	Opcodes map[string]string `toml:"opcodes"`
}

// generation associates a table with the first interpreter version that
// uses it. TableFor selects the newest generation not past the requested
// version.
type generation struct {
	major, minor int
	table        *Table
}

var generations []generation

func init() {
	entries, err := tableFS.ReadDir("tables")
	if err != nil {
		panic(fmt.Sprintf("opcodes: missing embedded tables: %v", err))
	}
	for _, entry := range entries {
		data, err := tableFS.ReadFile("tables/" + entry.Name())
		if err != nil {
			panic(fmt.Sprintf("opcodes: read %s: %v", entry.Name(), err))
		}
		var doc tableDoc
		if err := toml.Unmarshal(data, &doc); err != nil {
			panic(fmt.Sprintf("opcodes: parse %s: %v", entry.Name(), err))
		}
		tbl := &Table{Version: doc.Version, byCode: make(map[byte]Mnemonic, len(doc.Opcodes))}
		for key, name := range doc.Opcodes {
			b, err := strconv.Atoi(key)
			if err != nil || b < 0 || b > 255 {
				panic(fmt.Sprintf("opcodes: %s: bad opcode key %q", entry.Name(), key))
			}
			m, ok := ByName(name)
			if !ok {
				panic(fmt.Sprintf("opcodes: %s: unknown mnemonic %q", entry.Name(), name))
			}
			tbl.byCode[byte(b)] = m
		}
		generations = append(generations, generation{major: doc.Major, minor: doc.Minor, table: tbl})
	}
	sort.Slice(generations, func(i, j int) bool {
		if generations[i].major != generations[j].major {
			return generations[i].major < generations[j].major
		}
		return generations[i].minor < generations[j].minor
	})
}

// TableFor returns the instruction table for the given interpreter
// version: the newest generation at or below (major, minor). Versions
// older than any known generation get the oldest table.
func TableFor(major, minor int) *Table {
	best := generations[0].table
	for _, gen := range generations {
		if gen.major > major || (gen.major == major && gen.minor > minor) {
			break
		}
		best = gen.table
	}
	return best
}

// OperandWidth returns the operand size in bytes for operand-taking
// instructions: two below 3.6, one from 3.6 (wordcode).
func OperandWidth(major, minor int) int {
	if major > 3 || (major == 3 && minor >= 6) {
		return 1
	}
	return 2
}
