// Package dataset reads labeled FFM examples from libffm-style text.
//
// Each line is
//
//	label field:token[:value] field:token[:value] ...
//
// label is 0 or 1 (any positive number counts as 1), field is a
// non-negative integer, token is hashed into the model's feature space and
// value defaults to 1. Blank lines and lines starting with '#' are skipped.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/born-ml/ffm/internal/ffm"
	"github.com/born-ml/ffm/internal/hashing"
)

// Common errors.
var (
	ErrEmptyExample = errors.New("example has no features")
	ErrSyntax       = errors.New("malformed example")
)

// maxLineSize bounds a single input line.
const maxLineSize = 16 << 20

// Example is one labeled, hashed example ready for the kernel.
type Example struct {
	Label    float32
	Features []ffm.Feature
	Norm     float32
}

// Options controls how lines are turned into examples.
type Options struct {
	// SortByField stably orders features by ascending field id. Restricted
	// models stop pairing early at high field ids and expect this order.
	SortByField bool
	// Normalize sets Norm to the sum of squared feature values instead of 1.
	Normalize bool
}

// ParseError reports the line an error occurred on.
type ParseError struct {
	Line int
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reader yields examples from a text stream.
type Reader struct {
	sc     *bufio.Scanner
	hasher *hashing.Hasher
	opts   Options
	line   int
}

// NewReader creates a reader hashing tokens with h.
func NewReader(r io.Reader, h *hashing.Hasher, opts Options) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Reader{sc: sc, hasher: h, opts: opts}
}

// Next returns the next example, or io.EOF when the stream is exhausted.
func (r *Reader) Next() (Example, error) {
	for r.sc.Scan() {
		r.line++
		line := strings.TrimSpace(r.sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		ex, err := Parse(line, r.hasher, r.opts)
		if err != nil {
			return Example{}, &ParseError{Line: r.line, Err: err}
		}
		return ex, nil
	}
	if err := r.sc.Err(); err != nil {
		return Example{}, fmt.Errorf("read line %d: %w", r.line+1, err)
	}
	return Example{}, io.EOF
}

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int {
	return r.line
}

// ReadAll drains the reader.
func (r *Reader) ReadAll() ([]Example, error) {
	var out []Example
	for {
		ex, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, ex)
	}
}

// Parse turns one non-empty line into an example.
func Parse(line string, h *hashing.Hasher, opts Options) (Example, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Example{}, ErrEmptyExample
	}

	label, err := strconv.ParseFloat(fields[0], 32)
	if err != nil {
		return Example{}, fmt.Errorf("%w: label %q", ErrSyntax, fields[0])
	}

	type parsed struct {
		field int
		ffm.Feature
	}
	items := make([]parsed, 0, len(fields)-1)
	for _, tok := range fields[1:] {
		fieldStr, rest, ok := strings.Cut(tok, ":")
		if !ok || rest == "" {
			return Example{}, fmt.Errorf("%w: token %q", ErrSyntax, tok)
		}
		field, err := strconv.Atoi(fieldStr)
		if err != nil {
			return Example{}, fmt.Errorf("%w: field in %q", ErrSyntax, tok)
		}

		name, valueStr, hasValue := strings.Cut(rest, ":")
		value := float32(1)
		if hasValue {
			v, err := strconv.ParseFloat(valueStr, 32)
			if err != nil {
				return Example{}, fmt.Errorf("%w: value in %q", ErrSyntax, tok)
			}
			value = float32(v)
		}

		idx, err := h.Index(field, name)
		if err != nil {
			return Example{}, fmt.Errorf("token %q: %w", tok, err)
		}
		items = append(items, parsed{field: field, Feature: ffm.Feature{Index: idx, Value: value}})
	}

	if len(items) == 0 {
		return Example{}, ErrEmptyExample
	}

	if opts.SortByField {
		slices.SortStableFunc(items, func(a, b parsed) int { return a.field - b.field })
	}

	ex := Example{
		Label:    0,
		Features: lo.Map(items, func(p parsed, _ int) ffm.Feature { return p.Feature }),
		Norm:     1,
	}
	if label > 0 {
		ex.Label = 1
	}
	if opts.Normalize {
		if sq := lo.SumBy(ex.Features, func(f ffm.Feature) float32 { return f.Value * f.Value }); sq > 0 {
			ex.Norm = sq
		}
	}

	return ex, nil
}
