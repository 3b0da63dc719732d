package ffm

// Predict returns the raw score (logit) of an example.
//
// The linear term is divided by the number of features; every interaction
// term is scaled by value_a*value_b/norm. mask gates pairs as described in
// the package documentation. Predict has no side effects and does not
// allocate.
func (m *Model) Predict(features []Feature, norm float32, mask []uint64) float32 {
	assertExample(m, features, mask)

	var linearTotal, interaction float32
	linearNorm := float32(len(features))

	i := 0
	for a, fa := range features {
		indexA, fieldA := m.layout.Decode(fa.Index)
		valueA := fa.Value

		linearTotal += valueA * m.linear[indexA*2] / linearNorm

		if fieldA < m.minAField {
			continue
		}

		for b := 0; b < a; b, i = b+1, i+1 {
			fb := features[b]
			indexB, fieldB := m.layout.Decode(fb.Index)

			if fieldB > m.maxBField {
				break
			}
			if !maskBit(mask, i) {
				continue
			}

			wa := m.Block(indexA, fieldB)[:LatentDim]
			wb := m.Block(indexB, fieldA)[:LatentDim]

			var dot float32
			for d := range wa {
				dot += wa[d] * wb[d]
			}
			interaction += dot * (valueA * fb.Value / norm)
		}
	}

	return m.biasW + linearTotal + interaction
}
