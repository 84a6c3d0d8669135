// Package encoding provides the primitive codecs shared by the S2 block and stream layers:
// LEB128 varints, used for block lengths and index fields, and the masked CRC-32C
// checksum carried by every data chunk.
//
// Decoding functions never panic on malformed input. They report errs.ErrCorrupt
// instead, which lets callers feed them untrusted bytes directly.
package encoding
