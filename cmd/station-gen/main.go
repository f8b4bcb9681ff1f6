// station-gen turns an instrument definition YAML into a Go source file
// containing the driver catalog, so driver authors do not hand-maintain
// large parameter literals. The output is regenerated, not committed.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/tools/imports"
)

func main() {
	defPath := flag.String("def", "", "Path to the instrument definition YAML")
	pkgName := flag.String("package", "instruments", "Package name for the generated file")
	output := flag.String("output", "", "Output path for the generated Go file")
	helper := flag.Bool("helper", false, "Also emit a catalog-to-metadata helper")
	flag.Parse()

	if *defPath == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "Usage: station-gen -def <path> -output <path> [-package <name>] [-helper]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(*defPath, *pkgName, *output, *helper); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(defPath, pkgName, output string, helper bool) error {
	def, err := LoadInstrumentDef(defPath)
	if err != nil {
		return fmt.Errorf("loading definition: %w", err)
	}

	code, err := GenerateCatalog(def, pkgName, helper)
	if err != nil {
		return fmt.Errorf("generating %s: %w", def.Type, err)
	}

	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}
	if err := writeFormatted(output, code); err != nil {
		return err
	}
	fmt.Printf("  generated %s\n", output)
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
