package ffm

// Model shape constants.
const (
	// LatentDim is the number of meaningful latent factors per interaction block.
	LatentDim = 14

	// AlignedDim is LatentDim rounded up to a multiple of 8 so blocks stay 64-byte aligned.
	// Lanes [LatentDim, AlignedDim) are zero padding.
	AlignedDim = ((LatentDim-1)/8 + 1) * 8

	// BlockStride is the number of scalars in one interaction block:
	// AlignedDim weights followed by AlignedDim AdaGrad accumulators.
	BlockStride = 2 * AlignedDim
)

// Feature is one real-valued occurrence of a hashed feature within a field.
type Feature struct {
	Index uint32  // (field << HashBits) | feature
	Value float32 // feature value
}

// Layout maps combined indices to offsets inside the weight tensor.
//
// The tensor is a flat [features][fields][BlockStride] array of float32.
type Layout struct {
	HashBits uint // number of low bits holding the hashed feature id
	Fields   int  // number of fields
}

// Features returns the number of distinct hashed feature ids.
func (l Layout) Features() int {
	return 1 << l.HashBits
}

// HashMask returns the mask selecting the feature id from a combined index.
func (l Layout) HashMask() uint32 {
	return uint32(1)<<l.HashBits - 1
}

// Encode packs a field id and a hashed feature id into a combined index.
// feature must be below 1<<HashBits.
func (l Layout) Encode(field, feature uint32) uint32 {
	return field<<l.HashBits | feature
}

// Decode splits a combined index into its feature id and field id.
func (l Layout) Decode(index uint32) (feature, field uint32) {
	return index & l.HashMask(), index >> l.HashBits
}

// BlockOffset returns the offset of the interaction block that feature uses
// when paired with a member of field.
func (l Layout) BlockOffset(feature, field uint32) int {
	return int(feature)*l.indexStride() + int(field)*BlockStride
}

// WeightCount returns the size of the interaction weight tensor in scalars.
func (l Layout) WeightCount() int {
	return l.Features() * l.indexStride()
}

// LinearCount returns the size of the linear table in scalars.
func (l Layout) LinearCount() int {
	return 2 * l.Features()
}

func (l Layout) indexStride() int {
	return l.Fields * BlockStride
}
