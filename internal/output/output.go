// Package output writes stack reports as text, JSON, CBOR or DOT.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fxamacker/cbor/v2"
	"github.com/zboralski/lattice/render"

	"armstack/internal/callgraph"
	"armstack/internal/report"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("output: unknown format")

// Format selects a report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
	FormatDOT  Format = "dot"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatCBOR, FormatDOT}

// ParseFormat validates a format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatText, nil
	}
	for _, f := range Formats {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Document is the serialized form of a report.
type Document struct {
	Tool    string         `json:"tool"`
	Summary report.Summary `json:"summary"`
	*report.Report
}

// NewDocument wraps r with its summary.
func NewDocument(r *report.Report) Document {
	return Document{Tool: "armstack", Summary: r.Summary(), Report: r}
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("output: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Write encodes r to w in format f.
func Write(w io.Writer, r *report.Report, f Format) error {
	switch f {
	case FormatText, "":
		return WriteText(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatCBOR:
		return WriteCBOR(w, r)
	case FormatDOT:
		return WriteDOT(w, r)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// WriteFile writes r to path, creating parent directories.
func WriteFile(path string, r *report.Report, f Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	if err := Write(out, r, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *report.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(r)); err != nil {
		return fmt.Errorf("output: encode json: %w", err)
	}
	return nil
}

// WriteCBOR writes r as canonical CBOR.
func WriteCBOR(w io.Writer, r *report.Report) error {
	data, err := cborEncMode.Marshal(NewDocument(r))
	if err != nil {
		return fmt.Errorf("output: encode cbor: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ReadDocument decodes a report written by WriteJSON or WriteCBOR. The
// encoding is detected from the first byte.
func ReadDocument(data []byte) (*Document, error) {
	doc := &Document{Report: &report.Report{}}
	trimmed := strings.TrimLeft(string(data[:min(len(data), 64)]), " \t\r\n")
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("output: decode json: %w", err)
		}
		return doc, nil
	}
	if err := cbor.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("output: decode cbor: %w", err)
	}
	return doc, nil
}

// WriteDOT writes the call graph of r through the lattice renderer.
func WriteDOT(w io.Writer, r *report.Report) error {
	dot := render.DOT(callgraph.BuildCallGraph(r), "callgraph "+r.Profile)
	_, err := io.WriteString(w, dot)
	return err
}

// WriteText writes an aligned table of per-function results, followed by
// warnings and diagnostics.
func WriteText(w io.Writer, r *report.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tOWN\tINCL\tMARK\tFUNCTION\tFLAGS")
	for _, f := range r.Functions {
		marks := ""
		if f.Recursive {
			marks += "R"
		}
		if f.Unknown {
			marks += "?"
		}
		if f.NoReturn {
			marks += "!"
		}
		flags := ""
		if f.Usage.Flags != 0 {
			flags = f.Usage.Flags.String()
		}
		fmt.Fprintf(tw, "0x%08x\t%d\t%d\t%s\t%s\t%s\n", f.Addr, f.Usage.MaxDepth, f.Inclusive, marks, f.Name, flags)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("output: write text: %w", err)
	}

	var b strings.Builder
	for _, f := range r.Functions {
		for _, warn := range f.Usage.Warnings {
			fmt.Fprintf(&b, "%s: %s\n", f.Name, warn)
		}
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(&b, "%s\n", d)
	}
	s := r.Summary()
	fmt.Fprintf(&b, "%d functions, %d with errors, %d with warnings, max inclusive depth %d\n",
		s.Functions, s.Errors, s.Warnings, s.MaxDepth)
	_, err := io.WriteString(w, b.String())
	return err
}
