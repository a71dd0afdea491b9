// Package codec converts documents to and from their wire and authoring forms.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/docgate/docgate/internal/core"
)

// Format identifies a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned for unsupported input formats.
var ErrUnknownFormat = errors.New("unknown document format")

// Encode renders a document as two-space indented JSON with snake_case keys.
func Encode(doc *core.Document) ([]byte, error) {
	if doc == nil {
		return nil, errors.New("document is required")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, value)
	}
}

// FormatForPath picks a format from the file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode reads a single document. Unknown JSON fields are rejected.
func Decode(data []byte, format Format) (*core.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("document is empty")
	}

	doc := &core.Document{}
	switch format {
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(doc); err != nil {
			return nil, fmt.Errorf("decode json document: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(doc); err != nil {
			return nil, fmt.Errorf("decode yaml document: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return doc, nil
}

// DecodeFile loads a document from disk, choosing the format by extension.
func DecodeFile(path string) (*core.Document, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path supplied by operator
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}
	doc, err := Decode(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
