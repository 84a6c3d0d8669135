package stream

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/s2x/block"
	"github.com/arloliu/s2x/endian"
	"github.com/arloliu/s2x/errs"
	"github.com/arloliu/s2x/format"
)

var testWords = []string{
	"sensor", "temperature", "humidity", "device-17", "device-42", "zone", "eu-west",
	"ts", "value", "ok", "warn", "lorem", "ipsum", "dolor", "sit", "amet",
	"{\"id\":", "\"tags\":", "[]", "null", "98.6", "1700000000",
}

func textData(n int, seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))
	var sb strings.Builder
	sb.Grow(n + 16)
	for sb.Len() < n {
		sb.WriteString(testWords[rng.Intn(len(testWords))])
		sb.WriteByte(' ')
	}

	return []byte(sb.String()[:n])
}

func randomData(n int, seed int64) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)

	return b
}

func streamInputs() map[string][]byte {
	return map[string][]byte{
		"empty":        {},
		"short":        []byte("hello, stream"),
		"one block":    textData(64<<10, 1),
		"block plus 1": textData(64<<10+1, 2),
		"several":      textData(300_000, 3),
		"random":       randomData(200_000, 4),
		"zeros":        make([]byte, 150_000),
		"mixed": append(append(textData(70_000, 5), randomData(70_000, 6)...),
			textData(70_000, 5)...),
	}
}

func compress(t testing.TB, data []byte, opts ...WriterOption) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, opts...)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func decompress(t testing.TB, stream []byte, opts ...ReaderOption) []byte {
	t.Helper()
	r, err := NewReader(bytes.NewReader(stream), opts...)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)

	return out
}

type rawChunk struct {
	typ  format.ChunkType
	body []byte
}

// splitChunks parses a stream into its chunks.
func splitChunks(t testing.TB, stream []byte) []rawChunk {
	t.Helper()
	var chunks []rawChunk
	for len(stream) > 0 {
		require.GreaterOrEqual(t, len(stream), format.ChunkHeaderSize)
		n := int(endian.Uint24(stream[1:]))
		require.GreaterOrEqual(t, len(stream), format.ChunkHeaderSize+n)
		chunks = append(chunks, rawChunk{
			typ:  format.ChunkType(stream[0]),
			body: stream[format.ChunkHeaderSize : format.ChunkHeaderSize+n],
		})
		stream = stream[format.ChunkHeaderSize+n:]
	}

	return chunks
}

func TestStreamRoundTrip(t *testing.T) {
	levels := []format.Level{format.LevelUncompressed, format.LevelFast, format.LevelBetter, format.LevelBest}
	for name, data := range streamInputs() {
		for _, level := range levels {
			t.Run(name+"/"+level.String(), func(t *testing.T) {
				stream := compress(t, data, WithLevel(level), WithBlockSize(64<<10))
				require.Equal(t, format.MagicChunk, string(stream[:len(format.MagicChunk)]))
				require.True(t, bytes.Equal(data, decompress(t, stream)), "decoded stream differs")
			})
		}
	}
}

func TestWriterEmpty(t *testing.T) {
	stream := compress(t, nil)
	require.Equal(t, format.MagicChunk, string(stream))
	require.Empty(t, decompress(t, stream))
}

func TestWriterChunkLayout(t *testing.T) {
	data := append(textData(100_000, 7), randomData(50_000, 8)...)
	stream := compress(t, data, WithBlockSize(50_000))

	chunks := splitChunks(t, stream)
	require.Len(t, chunks, 4)
	require.Equal(t, format.ChunkTypeStreamIdentifier, chunks[0].typ)
	require.Equal(t, format.ChunkTypeCompressedData, chunks[1].typ)
	require.Equal(t, format.ChunkTypeCompressedData, chunks[2].typ)
	require.Equal(t, format.ChunkTypeUncompressedData, chunks[3].typ, "random data is stored")
	require.Equal(t, data[100_000:], chunks[3].body[format.ChecksumSize:])

	t.Run("uncompressed level", func(t *testing.T) {
		stream := compress(t, textData(100_000, 9), WithBlockSize(32<<10), WithLevel(format.LevelUncompressed))
		for _, c := range splitChunks(t, stream)[1:] {
			require.Equal(t, format.ChunkTypeUncompressedData, c.typ)
		}
	})
}

func TestWriterWriteSplitting(t *testing.T) {
	data := textData(200_000, 10)
	want := compress(t, data, WithBlockSize(16<<10))

	for _, step := range []int{1, 7, 4096, 16 << 10, 50_000} {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, WithBlockSize(16<<10))
		require.NoError(t, err)
		for p := data; len(p) > 0; {
			n := min(step, len(p))
			written, err := w.Write(p[:n])
			require.NoError(t, err)
			require.Equal(t, n, written)
			p = p[n:]
		}
		require.NoError(t, w.Close())
		require.Equal(t, want, buf.Bytes(), "step %d", step)
	}
}

func TestWriterReadFrom(t *testing.T) {
	data := textData(150_000, 11)
	want := compress(t, data, WithBlockSize(32<<10))

	var buf bytes.Buffer
	w, err := NewWriter(&buf, WithBlockSize(32<<10))
	require.NoError(t, err)
	n, err := w.ReadFrom(iotest.HalfReader(bytes.NewReader(data)))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.NoError(t, w.Close())
	require.Equal(t, want, buf.Bytes())
}

func TestWriterFlush(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)

	_, err = w.Write([]byte("first part "))
	require.NoError(t, err)
	require.Zero(t, buf.Len(), "nothing is written before a block is full")

	require.NoError(t, w.Flush())
	require.Equal(t, []byte("first part "), decompress(t, buf.Bytes()))

	_, err = w.Write([]byte("second part"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.Equal(t, []byte("first part second part"), decompress(t, buf.Bytes()))

	compressed, uncompressed := w.Written()
	require.Equal(t, int64(buf.Len()), compressed)
	require.Equal(t, int64(22), uncompressed)
}

func TestWriterClose(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	size := buf.Len()

	require.NoError(t, w.Close(), "second Close")
	require.Equal(t, size, buf.Len())

	_, err = w.Write([]byte("more"))
	require.ErrorIs(t, err, errs.ErrClosed)
	require.ErrorIs(t, w.Flush(), errs.ErrClosed)
	_, err = w.ReadFrom(strings.NewReader("more"))
	require.ErrorIs(t, err, errs.ErrClosed)
}

func TestWriterReset(t *testing.T) {
	w, err := NewWriter(io.Discard, WithBlockSize(8<<10))
	require.NoError(t, err)

	for i, data := range [][]byte{textData(40_000, 12), []byte("short"), randomData(9000, 13)} {
		var buf bytes.Buffer
		w.Reset(&buf)
		_, err := w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		require.Equal(t, compress(t, data, WithBlockSize(8<<10)), buf.Bytes(), "stream %d", i)
	}
}

type failingWriter struct {
	budget int
	err    error
}

var errSink = errors.New("sink failed")

func (f *failingWriter) Write(p []byte) (int, error) {
	if len(p) > f.budget {
		n := f.budget
		f.budget = 0

		return n, f.err
	}
	f.budget -= len(p)

	return len(p), nil
}

func TestWriterStickyError(t *testing.T) {
	sink := &failingWriter{budget: 20, err: errSink}
	w, err := NewWriter(sink, WithBlockSize(4<<10))
	require.NoError(t, err)

	_, err = w.Write(textData(10_000, 14))
	require.ErrorIs(t, err, errSink)

	sink.budget = 1 << 20
	_, err = w.Write([]byte("x"))
	require.ErrorIs(t, err, errSink)
	require.ErrorIs(t, w.Flush(), errSink)
	require.ErrorIs(t, w.Close(), errSink)

	t.Run("short write", func(t *testing.T) {
		w, err := NewWriter(&failingWriter{budget: 5})
		require.NoError(t, err)
		_, err = w.Write([]byte("data"))
		require.NoError(t, err)
		require.ErrorIs(t, w.Close(), io.ErrShortWrite)
	})

	t.Run("reset clears", func(t *testing.T) {
		var buf bytes.Buffer
		w.Reset(&buf)
		_, err := w.Write([]byte("again"))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.Equal(t, []byte("again"), decompress(t, buf.Bytes()))
	})
}

func TestWriterOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  WriterOption
	}{
		{"block size too small", WithBlockSize(format.MinBlockSize - 1)},
		{"block size too large", WithBlockSize(format.MaxBlockSize + 1)},
		{"unknown level", WithLevel(format.Level(9))},
		{"padding too large", WithPadding(format.MaxBlockSize + 1)},
		{"nil padding source", WithPaddingSource(nil)},
		{"zero concurrency", WithConcurrency(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWriter(io.Discard, tt.opt)
			require.ErrorIs(t, err, errs.ErrInvalidInput)
			_, err = NewConcurrentWriter(io.Discard, tt.opt)
			require.ErrorIs(t, err, errs.ErrInvalidInput)
		})
	}

	cfg, err := newWriterConfig(WithSnappyCompat(), WithBlockSize(1<<20))
	require.NoError(t, err)
	require.Equal(t, format.SnappyBlockSize, cfg.BlockSize())
	require.Equal(t, format.LevelFast, cfg.Level())
	require.Positive(t, cfg.Concurrency())
}

func TestWriterPadding(t *testing.T) {
	for _, pad := range []int{2, 3, 512, 4096, 64 << 10} {
		for _, withIndex := range []bool{false, true} {
			for name, data := range map[string][]byte{"empty": nil, "text": textData(90_000, 15), "random": randomData(30_000, 16)} {
				stream := compress(t, data, WithPadding(pad), WithIndex(withIndex), WithBlockSize(32<<10))
				require.Zero(t, len(stream)%pad, "pad %d index %v %s: %d bytes", pad, withIndex, name, len(stream))
				require.True(t, bytes.Equal(data, decompress(t, stream)))
			}
		}
	}

	t.Run("zero bytes by default", func(t *testing.T) {
		stream := compress(t, []byte("pad me"), WithPadding(1024))
		chunks := splitChunks(t, stream)
		last := chunks[len(chunks)-1]
		require.Equal(t, format.ChunkTypePadding, last.typ)
		require.Equal(t, make([]byte, len(last.body)), last.body)
	})

	t.Run("padding source", func(t *testing.T) {
		src := bytes.NewReader(bytes.Repeat([]byte{0xab}, 4096))
		stream := compress(t, []byte("pad me"), WithPadding(1024), WithPaddingSource(src))
		chunks := splitChunks(t, stream)
		last := chunks[len(chunks)-1]
		require.Equal(t, bytes.Repeat([]byte{0xab}, len(last.body)), last.body)
	})

	t.Run("short padding source", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, WithPadding(1024), WithPaddingSource(strings.NewReader("xy")))
		require.NoError(t, err)
		require.Error(t, w.Close())
	})

	t.Run("padding size", func(t *testing.T) {
		tests := []struct {
			written, multiple int64
			want              int
		}{
			{0, 16, 0},
			{16, 16, 0},
			{10, 16, 6},
			{14, 16, 18},
			{15, 16, 17},
			{13, 16, 19},
			{12, 16, 4},
			{7, 2, 5},
			{100, 1, 0},
		}
		for _, tt := range tests {
			require.Equal(t, tt.want, paddingSize(tt.written, tt.multiple), "%d %% %d", tt.written, tt.multiple)
		}
	})
}

func TestWriterSkippableBlock(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)

	_, err = w.Write([]byte("before "))
	require.NoError(t, err)
	require.NoError(t, w.AddSkippableBlock(0x80, []byte("meta-1")))
	_, err = w.Write([]byte("after"))
	require.NoError(t, err)
	require.NoError(t, w.AddSkippableBlock(0xbf, nil))
	for _, id := range []format.ChunkType{0x7f, 0xc0, format.ChunkTypeIndex, format.ChunkTypePadding, 0x00} {
		require.ErrorIs(t, w.AddSkippableBlock(id, nil), errs.ErrInvalidInput, "id %#x", byte(id))
	}
	require.NoError(t, w.Close())

	chunks := splitChunks(t, buf.Bytes())
	types := make([]format.ChunkType, 0, len(chunks))
	for _, c := range chunks {
		types = append(types, c.typ)
	}
	require.Equal(t, []format.ChunkType{
		format.ChunkTypeStreamIdentifier, format.ChunkTypeUncompressedData, 0x80,
		format.ChunkTypeUncompressedData, 0xbf,
	}, types)
	require.Equal(t, []byte("meta-1"), chunks[2].body)
	require.Equal(t, []byte("before after"), decompress(t, buf.Bytes()))

	t.Run("concurrent writer rejects reserved types", func(t *testing.T) {
		var buf bytes.Buffer
		cw, err := NewConcurrentWriter(&buf, WithIndex(true))
		require.NoError(t, err)
		_, err = cw.Write([]byte("payload"))
		require.NoError(t, err)
		for _, id := range []format.ChunkType{format.ChunkTypeIndex, format.ChunkTypePadding, 0xc0} {
			require.ErrorIs(t, cw.AddSkippableBlock(id, []byte("x")), errs.ErrInvalidInput, "id %#x", byte(id))
		}
		require.NoError(t, cw.AddSkippableBlock(0x98, []byte("x")))
		require.NoError(t, cw.Close())

		chunks := splitChunks(t, buf.Bytes())
		indexChunks := 0
		for _, c := range chunks {
			if c.typ == format.ChunkTypeIndex {
				indexChunks++
			}
		}
		require.Equal(t, 1, indexChunks, "only the writer's own index uses the index type")
		require.Equal(t, []byte("payload"), decompress(t, buf.Bytes()))
	})
}

func TestWriterDict(t *testing.T) {
	dictData := textData(32<<10, 17)
	d, err := block.MakeDict(dictData, dictData[:16])
	require.NoError(t, err)

	data := append(append([]byte{}, dictData[1000:9000]...), textData(100_000, 18)...)
	plain := compress(t, data, WithBlockSize(16<<10))
	seeded := compress(t, data, WithBlockSize(16<<10), WithDict(d))
	require.Less(t, len(seeded), len(plain))

	require.True(t, bytes.Equal(data, decompress(t, seeded, WithReaderDict(d))))

	r, err := NewReader(bytes.NewReader(seeded))
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	require.ErrorIs(t, err, errs.ErrCorrupt, "dictionary copies are out of range without it")

	_, err = NewWriter(io.Discard, WithDict(d), WithSnappyCompat())
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestWriterSnappyCompat(t *testing.T) {
	data := textData(200_000, 19)
	stream := compress(t, data, WithSnappyCompat(), WithBlockSize(1<<20))
	require.Equal(t, format.MagicChunkSnap, string(stream[:len(format.MagicChunkSnap)]))

	for _, c := range splitChunks(t, stream)[1:] {
		if c.typ == format.ChunkTypeCompressedData {
			n, err := block.DecodedLen(c.body[format.ChecksumSize:])
			require.NoError(t, err)
			require.LessOrEqual(t, n, format.SnappyBlockSize)
		}
	}
	require.True(t, bytes.Equal(data, decompress(t, stream)))
}

func BenchmarkWriter(b *testing.B) {
	data := textData(4<<20, 20)
	for _, level := range []format.Level{format.LevelFast, format.LevelBetter, format.LevelBest} {
		b.Run(level.String(), func(b *testing.B) {
			w, err := NewWriter(io.Discard, WithLevel(level))
			require.NoError(b, err)
			b.SetBytes(int64(len(data)))
			b.ResetTimer()
			for b.Loop() {
				w.Reset(io.Discard)
				_, _ = w.Write(data)
				_ = w.Close()
			}
		})
	}
}
