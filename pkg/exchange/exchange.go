// Package exchange encodes and decodes outlines for bulk import and export.
package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/aretw0/outline/pkg/domain"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Format is the serialization of a Document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown exchange format %q", s)
}

// FormatFromPath picks the format by file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	if f, err := ParseFormat(filepath.Ext(path)); err == nil {
		return f
	}
	return FormatJSON
}

// Document is the exchange representation of an outline.
// Meta is informational on import: only the name is applied.
type Document struct {
	Meta  *domain.Meta  `json:"meta,omitempty" yaml:"meta,omitempty"`
	Nodes []domain.Node `json:"nodes" yaml:"nodes" validate:"required,dive"`
	Edges []domain.Edge `json:"edges" yaml:"edges" validate:"required,dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Decode parses and validates a document. Every failure is a
// *domain.ValidationError. Computed codes in the input are discarded.
func Decode(data []byte, format Format) (*Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("malformed %s: %v", format, err)}
	}

	if err := ValidateStruct(&doc); err != nil {
		return nil, err
	}
	if err := domain.Validate(doc.Nodes, doc.Edges); err != nil {
		return nil, err
	}

	for i := range doc.Nodes {
		n, err := SanitizeNode(doc.Nodes[i])
		if err != nil {
			return nil, err
		}
		n.ComputedCode = ""
		doc.Nodes[i] = n
	}
	if doc.Meta != nil {
		name, err := SanitizeText(doc.Meta.Name)
		if err != nil {
			return nil, &domain.ValidationError{Field: "meta.name", Reason: err.Error()}
		}
		doc.Meta.Name = name
	}
	return &doc, nil
}

// Encode exports the snapshot with computed codes filled in for readability.
func Encode(snap *domain.Snapshot, format Format) ([]byte, error) {
	annotated := snap.Annotated()
	doc := Document{Meta: &annotated.Meta, Nodes: annotated.Nodes, Edges: annotated.Edges}
	if doc.Nodes == nil {
		doc.Nodes = []domain.Node{}
	}
	if doc.Edges == nil {
		doc.Edges = []domain.Edge{}
	}

	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	default:
		return json.MarshalIndent(doc, "", "  ")
	}
}

// Name returns the imported project name, or "" to keep the current one.
func (d *Document) Name() string {
	if d.Meta == nil {
		return ""
	}
	return d.Meta.Name
}

// ValidateStruct checks the validate tags of v. The first failing field is
// reported as a *domain.ValidationError named after its JSON path.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fromValidator(err)
	}
	return nil
}

func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &domain.ValidationError{Reason: err.Error()}
	}
	e := verrs[0]
	field := e.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch e.Tag() {
	case "required":
		return &domain.ValidationError{Field: field, Reason: "is required"}
	case "oneof":
		return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("must be one of: %s", e.Param())}
	default:
		return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("failed %q check", e.Tag())}
	}
}
