// Package ffm implements the parameter store and math kernel of a
// field-aware factorization machine trained online with AdaGrad.
//
// The model scores one example at a time. An example is an ordered list of
// Features, each carrying a combined index (field id in the high bits,
// hashed feature id in the low HashBits bits) and a real value:
//
//	score = bias
//	      + Σ value·w_lin[feature] / len(features)
//	      + Σ_{b<a} (value_a·value_b / norm) · <W[feature_a, field_b], W[feature_b, field_a]>
//
// Which pairs take part is decided by the field restriction policy and by a
// caller supplied dropout mask. Predict and Update walk pairs in the same
// order and advance the mask counter the same way, so a mask produced for an
// example gates the forward and backward passes identically. Callers must
// pass the same features, norm and mask to both.
//
// The kernel does not validate its inputs and takes no locks. Building with
// the ffmdebug tag enables assertions on feature count and mask length.
package ffm
