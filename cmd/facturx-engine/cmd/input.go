package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rezonia/facturx-engine/internal/config"
	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/parser"
)

// stdinArg reads input from standard input
const stdinArg = "-"

var stdin io.Reader = os.Stdin

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		if arg == stdinArg {
			files = append(files, arg)
			continue
		}

		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
		}

		if len(matches) == 0 {
			info, err := os.Stat(arg)
			if err != nil {
				return nil, fmt.Errorf("file not found: %s", arg)
			}
			if !info.IsDir() {
				files = append(files, arg)
				continue
			}
			matches = []string{arg}
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				continue
			}
			if !info.IsDir() {
				if isSupportedFile(match) {
					files = append(files, match)
				}
				continue
			}
			err = filepath.Walk(match, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isSupportedFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}

	return files, nil
}

func isSupportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".xml":
		return true
	default:
		return false
	}
}

func readInput(path string) ([]byte, error) {
	if path == stdinArg {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// sourceInvoice is an invoice together with the file it came from
type sourceInvoice struct {
	File    string
	Invoice *model.Invoice
}

// readInvoices decodes every invoice held by the given files
func readInvoices(ctx context.Context, args []string) ([]sourceInvoice, error) {
	files, err := collectFiles(args)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no invoice files found")
	}

	registry := parser.NewRegistry()
	var out []sourceInvoice
	for _, file := range files {
		printVerbose("Reading: %s\n", file)

		data, err := readInput(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		invoices, err := registry.ParseAll(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		for _, inv := range invoices {
			if inv.SourceFile == "" && file != stdinArg {
				inv.SourceFile = filepath.Base(file)
			}
			out = append(out, sourceInvoice{File: file, Invoice: inv})
		}
	}
	return out, nil
}

func invoicesOf(items []sourceInvoice) []*model.Invoice {
	out := make([]*model.Invoice, len(items))
	for i := range items {
		out[i] = items[i].Invoice
	}
	return out
}

func loadCatalog() (*config.Catalog, error) {
	if appConfig == nil {
		return &config.Catalog{}, nil
	}
	return config.LoadCatalog(appConfig.Data)
}

// writeOutput writes data to path, or to w when path is empty
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	printVerbose("Wrote %s\n", path)
	return nil
}
