// pycdc decompiles a compiled .pyc file back to source text.
//
// Usage:
//
//	pycdc [-v major.minor] [-dump file.cbor] [-verbose n] file.pyc
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/zzkshare/pycdc/pkg/ast"
	"github.com/zzkshare/pycdc/pkg/decompile"
	"github.com/zzkshare/pycdc/pkg/pycfile"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	version := flag.String("v", "", "override the interpreter version (e.g. 2.7), bypassing magic detection")
	dump := flag.String("dump", "", "also write the decoded AST as CBOR to this file")
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

	if *dump != "" {
		if err := dumpAST(mod, *dump); err != nil {
			fmt.Fprintf(os.Stderr, "%s: error: %v\n", os.Args[0], err)
			os.Exit(1)
		}
	}

	fmt.Printf("# Source Generated with Decompyle++\n")
	fmt.Printf("# File: %s (Python %d.%d)\n\n", flag.Arg(0), mod.Major, mod.Minor)
	if err := decompile.Decompile(mod, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: error: %v\n", os.Args[0], err)
		os.Exit(1)
	}
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

func dumpAST(mod *pycfile.Module, path string) error {
	res, err := decompile.BuildFromCode(mod.Code, mod)
	if err != nil {
		return err
	}
	data, err := ast.MarshalAST(res.AST)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
