// Package loader parses an N-Triples catalogue file into an immutable
// FactBase.
package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/catalogue"
)

// FactBase is the ordered, immutable statement set of one catalogue load.
// It is safe for concurrent reads.
type FactBase struct {
	source      string
	fingerprint string
	statements  []catalogue.Statement
	parseErrors []ParseError
	loadErr     error
	loadedAt    time.Time
}

// NewFactBase wraps statements built in memory. The fingerprint is derived
// from their N-Triples rendering.
func NewFactBase(source string, statements []catalogue.Statement) *FactBase {
	h := sha256.New()
	for _, s := range statements {
		h.Write([]byte(s.String()))
		h.Write([]byte{'\n'})
	}
	return &FactBase{
		source:      source,
		fingerprint: hex.EncodeToString(h.Sum(nil)),
		statements:  append([]catalogue.Statement(nil), statements...),
		loadedAt:    time.Now().UTC(),
	}
}

// Empty is the stand-in used when the catalogue could not be loaded. cause is
// kept so status reporting can show it.
func Empty(source string, cause error) *FactBase {
	return &FactBase{source: source, loadErr: cause, loadedAt: time.Now().UTC()}
}

func (fb *FactBase) Source() string {
	if fb == nil {
		return ""
	}
	return fb.source
}

// Fingerprint is the hex SHA-256 of the source bytes.
func (fb *FactBase) Fingerprint() string {
	if fb == nil {
		return ""
	}
	return fb.fingerprint
}

func (fb *FactBase) Len() int {
	if fb == nil {
		return 0
	}
	return len(fb.statements)
}

// At returns the i-th statement in file order.
func (fb *FactBase) At(i int) catalogue.Statement { return fb.statements[i] }

// Statements returns a copy of all statements in file order.
func (fb *FactBase) Statements() []catalogue.Statement {
	if fb == nil {
		return nil
	}
	return append([]catalogue.Statement(nil), fb.statements...)
}

func (fb *FactBase) ParseErrors() []ParseError {
	if fb == nil {
		return nil
	}
	return append([]ParseError(nil), fb.parseErrors...)
}

func (fb *FactBase) LoadErr() error {
	if fb == nil {
		return nil
	}
	return fb.loadErr
}

// LoadFailed reports whether the catalogue could not be read at all.
func (fb *FactBase) LoadFailed() bool { return fb == nil || fb.loadErr != nil }

// Degraded reports a failed load or a load that skipped malformed lines.
func (fb *FactBase) Degraded() bool { return fb.LoadFailed() || len(fb.parseErrors) > 0 }

func (fb *FactBase) LoadedAt() time.Time {
	if fb == nil {
		return time.Time{}
	}
	return fb.loadedAt
}
