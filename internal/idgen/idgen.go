// Package idgen generates identifiers for documents written by migrations,
// using a text/template-based generator so the id shape can be configured
// per deployment without a code change.
package idgen

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"text/template"

	"github.com/google/uuid"
)

var documentGenerator *IDGenerator

func init() {
	documentGenerator, _ = NewIDGenerator("{{uuidv4}}")
}

// IDGenerator generates IDs based on a template.
type IDGenerator struct {
	template *template.Template
	prefix   string
}

// NewIDGenerator creates a new ID generator with the given template string.
func NewIDGenerator(templateStr string) (*IDGenerator, error) {
	if templateStr == "" {
		templateStr = "{{uuidv4}}"
	}

	tmpl := template.New("id").Funcs(template.FuncMap{
		"uuidv4": func() string {
			return uuid.New().String()
		},
		"uuidv7": func() string {
			id, err := uuid.NewV7()
			if err != nil {
				return uuid.New().String()
			}
			return id.String()
		},
		"nanoid": func() string {
			return generateNanoid(21)
		},
	})

	parsed, err := tmpl.Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ID template: %w", err)
	}

	return &IDGenerator{template: parsed}, nil
}

// Generate generates a new ID using the template, applying the configured
// prefix if any.
func (g *IDGenerator) Generate() (string, error) {
	var buf bytes.Buffer
	if err := g.template.Execute(&buf, nil); err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}
	if g.prefix == "" {
		return buf.String(), nil
	}
	return g.prefix + "_" + buf.String(), nil
}

// generateNanoid generates a nanoid-like ID using a URL-safe alphabet.
func generateNanoid(size int) string {
	const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}

	result := make([]byte, size)
	for i := 0; i < size; i++ {
		result[i] = alphabet[int(b[i])%len(alphabet)]
	}

	return string(result)
}

// IDGenConfig selects the template used by the package-level Document
// generator.
type IDGenConfig struct {
	// Type is one of "uuidv4", "uuidv7", "nanoid". Empty defaults to uuidv4.
	Type string
	// DocumentPrefix, if set, is prepended to every generated id as "<prefix>_<id>".
	DocumentPrefix string
}

var typeTemplates = map[string]string{
	"":       "{{uuidv4}}",
	"uuidv4": "{{uuidv4}}",
	"uuidv7": "{{uuidv7}}",
	"nanoid": "{{nanoid}}",
}

// Configure configures the package-level Document generator. Call once at
// application startup before any concurrent usage.
func Configure(cfg IDGenConfig) error {
	templateStr, ok := typeTemplates[cfg.Type]
	if !ok {
		return fmt.Errorf("idgen: unknown id type %q", cfg.Type)
	}

	gen, err := NewIDGenerator(templateStr)
	if err != nil {
		return fmt.Errorf("failed to configure document ID generator: %w", err)
	}
	gen.prefix = cfg.DocumentPrefix
	documentGenerator = gen

	return nil
}

// Document generates a document ID using the configured generator. Defaults
// to UUID v4 if Configure has not been called.
func Document() string {
	id, err := documentGenerator.Generate()
	if err != nil {
		return uuid.New().String()
	}

	return id
}
