// Package stream implements the framed S2 stream format.
//
// A stream is a sequence of chunks, each a type byte, a 24-bit little-endian
// length and a body:
//
//	0xff  stream identifier   "S2sTwO" (or "sNaPpY")
//	0x00  compressed block    [crc32c of data][S2 block]
//	0x01  uncompressed block  [crc32c of data][data]
//	0x80-0xfd skippable       ignored by readers, 0x99 holds the seek index
//	0xfe  padding
//
// Writer frames blocks on the calling goroutine. ConcurrentWriter compresses
// blocks in parallel and writes exactly the same bytes:
//
//	w, err := stream.NewConcurrentWriter(f, stream.WithLevel(format.LevelBetter), stream.WithIndex(true))
//	if err != nil {
//	    return err
//	}
//	if _, err := io.Copy(w, src); err != nil {
//	    return err
//	}
//	return w.Close()
//
// Reader decodes S2 and Snappy streams and verifies every checksum. With a
// seek index, Reader.ReadSeeker gives random access to the decoded data.
package stream
