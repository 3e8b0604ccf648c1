package vocabulary

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
)

//go:embed labels.yaml
var labelsFS embed.FS

// used when the embedded YAML cannot be decoded
var fallbackLabels = map[string]string{
	SchemaName:              "title",
	SchemaDescription:       "description",
	SchemaURL:               "url",
	SchemaProvider:          "provider",
	SchemaTeaches:           "teaches",
	SchemaEducationalLevel:  "educationalLevel",
	EduCORRequiresKnowledge: "requires",
}

type labelFile struct {
	Labels map[string]string `yaml:"labels"`
}

// Labels maps predicate IRIs to attribute names. The zero value and nil
// receiver are usable and fall back to local names.
type Labels struct {
	byIRI map[string]string
}

// NewLabels builds a label map from an explicit IRI → label mapping.
func NewLabels(m map[string]string) *Labels {
	out := make(map[string]string, len(m))
	for k, v := range m {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return &Labels{byIRI: out}
}

// DefaultLabels returns the embedded label map.
func DefaultLabels() *Labels {
	raw, err := labelsFS.ReadFile("labels.yaml")
	if err != nil {
		return NewLabels(fallbackLabels)
	}
	l, err := ParseLabels(raw)
	if err != nil {
		return NewLabels(fallbackLabels)
	}
	return l
}

// ParseLabels decodes a YAML label file.
func ParseLabels(raw []byte) (*Labels, error) {
	var f labelFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("vocabulary: decode labels: %w", err)
	}
	if len(f.Labels) == 0 {
		return nil, fmt.Errorf("vocabulary: label file has no labels")
	}
	return NewLabels(f.Labels), nil
}

// LoadLabels reads an override label file when path is set, merging it over
// the embedded defaults. Failures are logged and the defaults are kept.
func LoadLabels(path string, log *logger.Logger) *Labels {
	base := DefaultLabels()
	path = strings.TrimSpace(path)
	if path == "" {
		return base
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if log != nil {
			log.Warn("vocabulary label override unreadable; using defaults", "path", path, "error", err)
		}
		return base
	}
	override, err := ParseLabels(raw)
	if err != nil {
		if log != nil {
			log.Warn("vocabulary label override invalid; using defaults", "path", path, "error", err)
		}
		return base
	}
	merged := make(map[string]string, len(base.byIRI)+len(override.byIRI))
	for k, v := range base.byIRI {
		merged[k] = v
	}
	for k, v := range override.byIRI {
		merged[k] = v
	}
	return &Labels{byIRI: merged}
}

// Label returns the attribute name for a predicate IRI.
func (l *Labels) Label(predicate string) string {
	if l != nil {
		if v, ok := l.byIRI[predicate]; ok {
			return v
		}
	}
	return LocalName(predicate)
}

// Len reports how many explicit labels are configured.
func (l *Labels) Len() int {
	if l == nil {
		return 0
	}
	return len(l.byIRI)
}
