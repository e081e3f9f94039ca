// pycdas prints the disassembly of a compiled .pyc file.
//
// Usage:
//
//	pycdas [-v major.minor] file.pyc
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/zzkshare/pycdc/pkg/disasm"
	"github.com/zzkshare/pycdc/pkg/pycfile"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	version := flag.String("v", "", "override the interpreter version (e.g. 2.7), bypassing magic detection")
	verbosity := flag.Int("verbose", 0, "diagnostic verbosity")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [options] file.pyc\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	commonlog.Configure(*verbosity, nil)

	mod, err := loadModule(flag.Arg(0), *version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: error: %v\n", os.Args[0], err)
		os.Exit(1)
	}

	fmt.Printf("; %s (Python %d.%d)\n\n", flag.Arg(0), mod.Major, mod.Minor)
	disasm.Write(os.Stdout, mod.Code, mod)
}

func loadModule(path, version string) (*pycfile.Module, error) {
	if version == "" {
		return pycfile.LoadFile(path)
	}

	var major, minor int
	if _, err := fmt.Sscanf(version, "%d.%d", &major, &minor); err != nil {
		return nil, fmt.Errorf("bad version override %q: %w", version, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return pycfile.LoadVersion(f, major, minor)
}
