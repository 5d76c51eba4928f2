// Package outwriter renders reports and tables for the terminal and for
// machine-readable files.
package outwriter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format selects how results are written.
type Format string

const (
	TextOut Format = "text"
	CSVOut  Format = "csv"
	JSONOut Format = "json"
	XLSXOut Format = "xlsx"
)

// ParseFormat accepts the names above, case-insensitively. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return TextOut, nil
	case TextOut, CSVOut, JSONOut, XLSXOut:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, csv, json or xlsx)", s)
	}
}

// Options controls a single write.
type Options struct {
	Format     Format
	OutputFile string // empty writes to stdout
	Precision  int
	Color      string // yes, no or auto
}

// UseColor resolves the color setting. Auto enables color only when stdout
// is a terminal and output is not redirected to a file.
func (o Options) UseColor() bool {
	switch strings.ToLower(o.Color) {
	case "yes", "true", "always":
		return true
	case "no", "false", "never":
		return false
	default:
		return o.OutputFile == "" && term.IsTerminal(int(os.Stdout.Fd()))
	}
}

func (o Options) precision() int {
	if o.Precision < 0 {
		return 0
	}
	return o.Precision
}

// writeWithFile opens the destination, runs writer against it and closes it.
func writeWithFile(outputFile string, writer func(io.Writer) error, successMsg string) error {
	file, err := selectOutputFile(outputFile)
	if err != nil {
		return err
	}
	if file != os.Stdout {
		defer func() { _ = file.Close() }()
	}

	if err := writer(file); err != nil {
		return err
	}

	if file != os.Stdout {
		fmt.Fprintf(os.Stderr, "%s to %s\n", successMsg, outputFile)
	}
	return nil
}

func selectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

func createFormatter(precision int) func(float64) string {
	return func(v float64) string {
		return fmt.Sprintf("%.*f", precision, v)
	}
}
