// Command paramgen generates Go code that builds a parameter tree from a
// YAML layout.
//
// Usage:
//
//	paramgen -layout <file> -output <file> [-package <name>] [-module <path>]
//
// A layout declares enums and a tree of nodes:
//
//	name: Frontend
//	package: layout
//	enums:
//	  - name: acquisition-mode
//	    values: [idle, turn-by-turn]
//	nodes:
//	  - name: frontend
//	    type: dir
//	    children:
//	      - name: gain
//	        type: int32
//	        default: -20
//	        min: -80
//	        max: 0
//	        flags: [persistent]
//
// The output declares a struct with one tree.Node per declared node and a
// Build function creating them below a parent. Command nodes are bound to
// the functions of a Handlers struct.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/tools/imports"
)

const defaultModule = "github.com/bpmctl/paramtree"

func main() {
	layoutPath := flag.String("layout", "", "Layout YAML file")
	outputPath := flag.String("output", "", "Generated Go file")
	pkg := flag.String("package", "", "Package name (overrides the layout)")
	module := flag.String("module", defaultModule, "Import path of the paramtree module")
	flag.Parse()

	if *layoutPath == "" || *outputPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: paramgen -layout <file> -output <file> [-package <name>] [-module <path>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(*layoutPath, *outputPath, *pkg, *module); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(layoutPath, outputPath, pkg, module string) error {
	l, err := LoadLayout(layoutPath)
	if err != nil {
		return fmt.Errorf("loading layout: %w", err)
	}
	if pkg != "" {
		l.Package = pkg
	}

	code, err := Generate(l, GenerateOptions{Module: module, Source: filepath.Base(layoutPath)})
	if err != nil {
		return fmt.Errorf("generating %s: %w", l.Name, err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := writeFormatted(outputPath, code); err != nil {
		return err
	}
	fmt.Printf("  generated %s\n", outputPath)
	return nil
}

// writeFormatted formats Go source code with goimports and writes it to a file.
func writeFormatted(path string, code string) error {
	formatted, err := imports.Process(path, []byte(code), nil)
	if err != nil {
		// Keep the raw output for debugging the generator.
		_ = os.WriteFile(path+".broken", []byte(code), 0o644)
		return fmt.Errorf("goimports %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, formatted, 0o644)
}
