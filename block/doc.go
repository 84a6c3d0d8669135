// Package block implements the S2 block format, a superset of the Snappy
// block format.
//
// A block is a uvarint holding the decoded length followed by a sequence of
// literal and copy tags. S2 adds repeat tags, which reuse the previous copy
// offset, and copies that may reach into a dictionary preceding the block.
//
// Three encoder levels trade speed for ratio:
//
//	block.Encode(dst, src)       // single hash table
//	block.EncodeBetter(dst, src) // long and short hash tables
//	block.EncodeBest(dst, src)   // scored candidates from two-entry tables
//
// Every level produces blocks that the S2 reference decoder accepts, and
// EncodeSnappy produces blocks that Snappy decoders accept. Decode accepts
// both formats.
//
// Blocks are limited to 4 GiB - 1 decoded bytes. Encoding a block has no
// framing and no checksum; see package stream for that.
package block
