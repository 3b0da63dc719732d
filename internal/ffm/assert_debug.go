//go:build ffmdebug

package ffm

import "fmt"

// assertExample checks the caller contract of Predict and Update.
func assertExample(m *Model, features []Feature, mask []uint64) {
	if len(features) == 0 {
		panic("ffm: empty feature list")
	}
	if need := MaskWords(m.PairCount(features)); len(mask) < need {
		panic(fmt.Sprintf("ffm: mask has %d words, example needs %d", len(mask), need))
	}
}
