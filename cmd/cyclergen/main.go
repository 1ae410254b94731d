// Command cyclergen reads a node manifest, runs it through the catalog
// builder, and renders one generated Go source file per cycler instance.
//
// Resolving a manifest's field paths against real Go struct shapes
// requires the deployment's output/parameter root types to be registered
// with a dictionary.Dictionary before Build runs; a project wires its own
// roots by importing its generated-types package for side effects and
// assigning RegisterRoots below (left nil here, since this repository
// ships the generator, not a concrete robot's output types).
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldcore/cyclerd/catalog"
	"github.com/fieldcore/cyclerd/codegen"
	"github.com/fieldcore/cyclerd/config"
	"github.com/fieldcore/cyclerd/dictionary"
)

// RegisterRoots is the deployment-supplied hook that registers every
// cycler's main-output struct (and the shared parameter tree) with the
// dictionary before catalog.Build resolves manifest paths against it. A
// real cyclerd deployment sets this from its own package init.
var RegisterRoots func(*dictionary.Dictionary)

func main() {
	manifestPath := flag.String("manifest", "manifest.yaml", "path to the node manifest YAML file")
	outDir := flag.String("out", "internal/generated", "root directory for generated cycler packages")
	flag.Parse()

	if err := run(*manifestPath, *outDir); err != nil {
		fmt.Fprintln(os.Stderr, "cyclergen:", err)
		os.Exit(1)
	}
}

func run(manifestPath, outDir string) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	manifest, err := config.ParseManifest(data)
	if err != nil {
		return err
	}

	decls, err := manifest.ToNodeDecls()
	if err != nil {
		return fmt.Errorf("convert manifest: %w", err)
	}

	dict := dictionary.New()
	if RegisterRoots != nil {
		RegisterRoots(dict)
	}

	graph, err := catalog.Build(decls, dict)
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}

	templatesDir := filepath.Join(filepath.Dir(manifestPath), "templates")
	if _, err := os.Stat(templatesDir); err != nil {
		templatesDir = "templates"
	}
	tmpl, err := codegen.LoadTemplates(templatesDir)
	if err != nil {
		return err
	}

	for name := range graph.Cyclers {
		spec, err := codegen.FromGraph(graph, name, name, manifest.KindOf(name))
		if err != nil {
			return err
		}

		src, err := codegen.Generate(tmpl, spec)
		if err != nil {
			return fmt.Errorf("generate %s: %w", name, err)
		}

		dir := filepath.Join(outDir, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}

		path := filepath.Join(dir, "cycler_gen.go")
		if err := os.WriteFile(path, src, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Println("wrote", path)
	}

	return nil
}
