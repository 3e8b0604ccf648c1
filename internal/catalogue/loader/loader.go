package loader

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/catalogue"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/faults"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
)

// ParsePolicy decides what happens on a malformed line.
type ParsePolicy string

const (
	// PolicyCollect skips malformed lines and records them on the FactBase.
	PolicyCollect ParsePolicy = "collect"
	// PolicyAbort fails the load on the first malformed line.
	PolicyAbort ParsePolicy = "abort"
)

// ParsePolicyFrom parses a policy name. Empty means PolicyCollect.
func ParsePolicyFrom(raw string) (ParsePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(PolicyCollect):
		return PolicyCollect, nil
	case string(PolicyAbort):
		return PolicyAbort, nil
	default:
		return "", fmt.Errorf("unknown parse policy %q", raw)
	}
}

type Options struct {
	Policy ParsePolicy
	Log    *logger.Logger
	// Source names the input in errors and stats. Load sets it to the path.
	Source string
	// MaxLineBytes bounds one statement line; longer lines are malformed.
	// Zero means 16 MiB.
	MaxLineBytes int
}

// ParseError describes one malformed line.
type ParseError struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

const (
	maxLineBytes      = 16 * 1024 * 1024
	readBufferBytes   = 64 * 1024
	cancelCheckEvery  = 4096
	maxLoggedMalforms = 20
	maxErrorTextBytes = 200
)

// Load reads and parses the catalogue file at path.
func Load(ctx context.Context, path string, opts Options) (*FactBase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, faults.New(faults.CodeLoad, "load_catalogue", fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()
	if opts.Source == "" {
		opts.Source = path
	}
	return Parse(ctx, f, opts)
}

// Parse reads N-Triples from r. Statements keep file order and duplicates.
func Parse(ctx context.Context, r io.Reader, opts Options) (*FactBase, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("service", "CatalogueLoader")
	policy := opts.Policy
	if policy == "" {
		policy = PolicyCollect
	}

	maxLine := opts.MaxLineBytes
	if maxLine <= 0 {
		maxLine = maxLineBytes
	}

	start := time.Now()
	h := sha256.New()
	lr := &lineReader{r: bufio.NewReaderSize(io.TeeReader(r, h), readBufferBytes), max: maxLine}

	var (
		stmts    []catalogue.Statement
		malforms []ParseError
		lineNo   int
	)
	for {
		raw, oversized, err := lr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, faults.New(faults.CodeLoad, "load_catalogue", fmt.Sprintf("read line %d", lineNo+1), err)
		}
		lineNo++
		if lineNo%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("load catalogue: %w", err)
			}
		}
		line := string(raw)
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		var stmt catalogue.Statement
		ok := false
		if oversized {
			err = fmt.Errorf("line longer than %d bytes", maxLine)
		} else {
			stmt, ok, err = parseLine(line)
		}
		if err != nil {
			pe := ParseError{Line: lineNo, Text: clip(line), Reason: err.Error()}
			if policy == PolicyAbort {
				return nil, faults.New(faults.CodeParse, "load_catalogue", pe.Error(), &pe)
			}
			if len(malforms) < maxLoggedMalforms {
				log.Warn("skipping malformed statement", "line", lineNo, "reason", pe.Reason)
			}
			malforms = append(malforms, pe)
			continue
		}
		if !ok {
			continue
		}
		stmt.Line = lineNo
		stmts = append(stmts, stmt)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load catalogue: %w", err)
	}

	fb := &FactBase{
		source:      opts.Source,
		fingerprint: hex.EncodeToString(h.Sum(nil)),
		statements:  stmts,
		parseErrors: malforms,
		loadedAt:    time.Now().UTC(),
	}
	log.Info("catalogue loaded",
		"source", fb.source,
		"statements", len(stmts),
		"parse_errors", len(malforms),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return fb, nil
}

// lineReader splits input on newlines without a hard line limit. Lines over
// max bytes are drained and reported as oversized with only a prefix kept.
type lineReader struct {
	r   *bufio.Reader
	max int
	buf []byte
}

func (lr *lineReader) next() ([]byte, bool, error) {
	lr.buf = lr.buf[:0]
	oversized := false
	for {
		chunk, err := lr.r.ReadSlice('\n')
		if !oversized {
			lr.buf = append(lr.buf, chunk...)
			if len(trimEOL(lr.buf)) > lr.max {
				oversized = true
				lr.buf = lr.buf[:min(len(lr.buf), maxErrorTextBytes)]
			}
		}
		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF:
			if len(lr.buf) == 0 && !oversized {
				return nil, false, io.EOF
			}
			return trimEOL(lr.buf), oversized, nil
		case err != nil:
			return nil, false, err
		}
		return trimEOL(lr.buf), oversized, nil
	}
}

func trimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\n"))
	return bytes.TrimSuffix(b, []byte("\r"))
}

func clip(s string) string {
	if len(s) <= maxErrorTextBytes {
		return s
	}
	return strings.ToValidUTF8(s[:maxErrorTextBytes], "")
}
