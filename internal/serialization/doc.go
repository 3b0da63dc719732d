// Package serialization saves and restores FFM model state in the .ffm
// checkpoint format.
//
//	Format Structure:
//	  [4 bytes: Magic "FFMK"]
//	  [4 bytes: Version (uint32 LE)]
//	  [4 bytes: Flags (uint32 LE)]
//	  [4 bytes: Reserved]
//	  [8 bytes: Header Size (uint64 LE)]
//	  [8 bytes: Data Size (uint64 LE)]
//	  [32 bytes: SHA-256 of the data section]
//	  [Header: JSON metadata]
//	  [Tensor data: little-endian float32, 64-byte aligned]
//
// A checkpoint holds three tensors: "weights" (interaction blocks including
// their AdaGrad accumulators), "linear" (weight, accumulator pairs) and
// "bias". The JSON header records the construction parameters, so Load can
// rebuild a model without outside configuration.
//
// Example usage:
//
//	if err := serialization.Save("model.ffm", model, serialization.WriteOptions{}); err != nil {
//	    log.Fatal(err)
//	}
//
//	model, header, err := serialization.Load("model.ffm", logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer model.Close()
package serialization
