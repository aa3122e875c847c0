package powerbi

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Field kinds found in report layouts.
const (
	FieldMeasure     = "Measure"
	FieldColumn      = "Column"
	FieldAggregation = "Aggregation"
)

// ErrNoLayout is returned when a .pbix archive has no Report/Layout entry.
var ErrNoLayout = errors.New("powerbi: no Report/Layout entry in archive")

// ReportField is one model field referenced by a visual in a report.
type ReportField struct {
	Section string
	Visual  string
	Table   string
	Field   string
	Kind    string
}

type reportLayout struct {
	Sections []struct {
		DisplayName      string `json:"displayName"`
		VisualContainers []struct {
			Config string `json:"config"`
		} `json:"visualContainers"`
	} `json:"sections"`
}

type visualConfig struct {
	Name         string `json:"name"`
	SingleVisual struct {
		PrototypeQuery struct {
			Select []selectCommand `json:"Select"`
		} `json:"prototypeQuery"`
	} `json:"singleVisual"`
}

type selectCommand struct {
	Name        string          `json:"Name"`
	Measure     json.RawMessage `json:"Measure"`
	Column      json.RawMessage `json:"Column"`
	Aggregation json.RawMessage `json:"Aggregation"`
}

// ExtractReportFields reads a .pbix file and lists the measures, columns
// and aggregations its visuals reference.
func ExtractReportFields(path string) ([]ReportField, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening report: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("opening report: %w", err)
	}
	return ExtractReportFieldsFromReader(file, info.Size())
}

// ExtractReportFieldsFromReader extracts report fields from in-memory or
// streamed .pbix content.
func ExtractReportFieldsFromReader(r io.ReaderAt, size int64) ([]ReportField, error) {
	archive, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("reading report archive: %w", err)
	}

	layout, err := readLayout(archive)
	if err != nil {
		return nil, err
	}

	// Visuals with hand-edited or unexpected configs are skipped rather
	// than failing the whole extraction.
	fields := make([]ReportField, 0)
	for _, section := range layout.Sections {
		for _, container := range section.VisualContainers {
			var config visualConfig
			if err := json.Unmarshal([]byte(container.Config), &config); err != nil {
				continue
			}
			for _, command := range config.SingleVisual.PrototypeQuery.Select {
				field, ok := classify(command)
				if !ok {
					continue
				}
				field.Section = section.DisplayName
				field.Visual = config.Name
				fields = append(fields, field)
			}
		}
	}
	return fields, nil
}

// readLayout finds the Report/Layout entry and decodes it from UTF-16LE.
func readLayout(archive *zip.Reader) (*reportLayout, error) {
	for _, entry := range archive.File {
		if entry.Name != "Report/Layout" {
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("opening layout: %w", err)
		}
		defer rc.Close()

		decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		raw, err := io.ReadAll(transform.NewReader(rc, decoder))
		if err != nil {
			return nil, fmt.Errorf("decoding layout: %w", err)
		}

		var layout reportLayout
		if err := json.Unmarshal(raw, &layout); err != nil {
			return nil, fmt.Errorf("parsing layout: %w", err)
		}
		return &layout, nil
	}
	return nil, ErrNoLayout
}

// classify maps a select command to a report field. Aggregation names wrap
// the table.field reference in a function call, e.g. "Sum(Sales.Amount)".
func classify(command selectCommand) (ReportField, bool) {
	var kind, ref string
	switch {
	case command.Measure != nil:
		kind, ref = FieldMeasure, command.Name
	case command.Column != nil:
		kind, ref = FieldColumn, command.Name
	case command.Aggregation != nil:
		kind = FieldAggregation
		open := strings.Index(command.Name, "(")
		end := strings.Index(command.Name, ")")
		if open < 0 || end < open {
			return ReportField{}, false
		}
		ref = command.Name[open+1 : end]
	default:
		return ReportField{}, false
	}

	table, field, ok := strings.Cut(ref, ".")
	if !ok {
		return ReportField{}, false
	}
	return ReportField{Table: table, Field: field, Kind: kind}, true
}
