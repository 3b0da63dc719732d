package ffm

// Update applies one AdaGrad step for an example.
//
// kappa is the derivative of the loss with respect to the score returned by
// Predict for the same features, norm and mask. Linear weights, every
// enabled interaction pair (both directions, from pre-update values) and the
// bias are updated in place.
func (m *Model) Update(features []Feature, norm, kappa float32, mask []uint64) {
	assertExample(m, features, mask)

	linearNorm := float32(len(features))

	i := 0
	for a, fa := range features {
		indexA, fieldA := m.layout.Decode(fa.Index)
		valueA := fa.Value

		m.opt.Step(&m.linear[indexA*2], &m.linear[indexA*2+1], kappa*valueA/linearNorm)

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

			m.opt.StepPair(m.Block(indexA, fieldB), m.Block(indexB, fieldA),
				LatentDim, AlignedDim, kappa*valueA*fb.Value/norm)
		}
	}

	m.opt.StepBias(&m.biasW, &m.biasG, kappa)
}
