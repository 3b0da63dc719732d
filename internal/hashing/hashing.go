// Package hashing maps (field, token) pairs to combined FFM feature indices.
package hashing

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/born-ml/ffm/internal/ffm"
)

// ErrFieldRange is returned for a field id outside [0, fields).
var ErrFieldRange = errors.New("field out of range")

// Hasher hashes tokens into the low HashBits bits of a combined index.
type Hasher struct {
	layout ffm.Layout
}

// New creates a hasher for models with the given hash bits and field count.
func New(hashBits uint, fields int) *Hasher {
	return &Hasher{layout: ffm.Layout{HashBits: hashBits, Fields: fields}}
}

// ForModel creates a hasher matching the layout of m.
func ForModel(m *ffm.Model) *Hasher {
	return &Hasher{layout: m.Layout()}
}

// Feature returns the hashed feature id of token.
func (h *Hasher) Feature(token string) uint32 {
	return uint32(xxhash.Sum64String(token)) & h.layout.HashMask()
}

// Index returns the combined index of token within field.
func (h *Hasher) Index(field int, token string) (uint32, error) {
	if field < 0 || field >= h.layout.Fields {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrFieldRange, field, h.layout.Fields)
	}
	return h.layout.Encode(uint32(field), h.Feature(token)), nil
}

// Decode splits a combined index into its field id and hashed feature id.
func (h *Hasher) Decode(index uint32) (field int, feature uint32) {
	feature, f := h.layout.Decode(index)
	return int(f), feature
}
