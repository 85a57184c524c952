// Command player-ifgen generates the interface-code table of package wire
// from its YAML definition.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/tools/imports"
)

func main() {
	input := flag.String("input", "", "Path to interfaces.yaml")
	output := flag.String("output", "", "Output path for the generated Go file")
	pkg := flag.String("package", "wire", "Package name of the generated file")
	flag.Parse()

	if *input == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "Usage: player-ifgen -input <yaml> -output <go file> [-package <name>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(*input, *output, *pkg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(input, output, pkg string) error {
	table, err := LoadInterfaceTable(input)
	if err != nil {
		return fmt.Errorf("loading interfaces: %w", err)
	}
	if err := table.Validate(); err != nil {
		return err
	}

	code, err := GenerateInterfaces(table, pkg)
	if err != nil {
		return fmt.Errorf("generating interfaces: %w", err)
	}
	if err := writeFormatted(output, code); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(output), err)
	}
	fmt.Printf("  generated %s (%d interfaces)\n", output, len(table.Interfaces))
	return nil
}

// writeFormatted formats Go source code with goimports and writes it to a file.
func writeFormatted(path string, code string) error {
	formatted, err := imports.Process(path, []byte(code), nil)
	if err != nil {
		// Write unformatted so you can debug the generator output
		_ = os.WriteFile(path+".broken", []byte(code), 0o644)
		return fmt.Errorf("goimports %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, formatted, 0o644)
}
