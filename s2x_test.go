package s2x

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/s2"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/s2x/errs"
	"github.com/arloliu/s2x/format"
	"github.com/arloliu/s2x/stream"
)

func sampleText(n int) []byte {
	words := []string{"GET", "/api/v1/metrics", "200", "host=server-01", "latency_ms=12", "user-agent", "curl/8.0"}
	rng := rand.New(rand.NewSource(int64(n)))
	var sb strings.Builder
	for sb.Len() < n {
		sb.WriteString(words[rng.Intn(len(words))])
		sb.WriteByte(' ')
	}

	return []byte(sb.String()[:n])
}

func TestBlockWrappers(t *testing.T) {
	data := sampleText(200_000)

	tests := []struct {
		name   string
		encode func(dst, src []byte) []byte
	}{
		{"Encode", Encode},
		{"EncodeBetter", EncodeBetter},
		{"EncodeBest", EncodeBest},
		{"EncodeSnappy", EncodeSnappy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed := tt.encode(nil, data)
			require.LessOrEqual(t, len(compressed), MaxEncodedLen(len(data)))
			require.Less(t, len(compressed), len(data)/2)

			n, err := DecodedLen(compressed)
			require.NoError(t, err)
			require.Equal(t, len(data), n)

			decoded, err := Decode(nil, compressed)
			require.NoError(t, err)
			require.Equal(t, data, decoded)

			decoded, err = s2.Decode(nil, compressed)
			require.NoError(t, err)
			require.Equal(t, data, decoded)
		})
	}

	_, err := Decode(nil, []byte{0x10, 0xff})
	require.ErrorIs(t, err, errs.ErrCorrupt)
}

func TestCompressStream(t *testing.T) {
	data := append(sampleText(3<<20), sampleText(1000)...)

	var compressed bytes.Buffer
	n, err := CompressStream(&compressed, bytes.NewReader(data), stream.WithBlockSize(256<<10), stream.WithConcurrency(4))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)

	var out bytes.Buffer
	n, err = DecompressStream(&out, bytes.NewReader(compressed.Bytes()))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.True(t, bytes.Equal(data, out.Bytes()))

	t.Run("matches the serial writer", func(t *testing.T) {
		var serial bytes.Buffer
		w, err := NewWriter(&serial, stream.WithBlockSize(256<<10))
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.Equal(t, serial.Bytes(), compressed.Bytes())
	})

	t.Run("source error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := CompressStream(io.Discard, iotest.ErrReader(boom))
		require.ErrorIs(t, err, boom)
	})

	t.Run("invalid option", func(t *testing.T) {
		_, err := CompressStream(io.Discard, bytes.NewReader(data), stream.WithBlockSize(1))
		require.ErrorIs(t, err, errs.ErrInvalidInput)
	})

	t.Run("corrupt stream", func(t *testing.T) {
		damaged := bytes.Clone(compressed.Bytes())
		damaged[len(damaged)/2] ^= 0x40
		_, err := DecompressStream(io.Discard, bytes.NewReader(damaged))
		require.ErrorIs(t, err, errs.ErrCorrupt)
	})
}

func TestNewArchiveWriter(t *testing.T) {
	data := sampleText(6 << 20)

	t.Run("appends an index", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := NewArchiveWriter(&buf)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		require.Equal(t, buf.Bytes(), compressBest(t, data), "archive output equals a serial Best writer with an index")

		r, err := NewReader(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		rs, err := r.ReadSeeker(nil)
		require.NoError(t, err)
		require.Equal(t, 2, rs.Index().Len())

		_, err = rs.Seek(5<<20, io.SeekStart)
		require.NoError(t, err)
		got := make([]byte, 100)
		_, err = io.ReadFull(rs, got)
		require.NoError(t, err)
		require.Equal(t, data[5<<20:5<<20+100], got)
	})

	t.Run("options override the preset", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := NewArchiveWriter(&buf, stream.WithIndex(false))
		require.NoError(t, err)
		_, err = w.Write(data[:100_000])
		require.NoError(t, err)
		require.NoError(t, w.Close())

		r, err := NewReader(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		_, err = r.ReadSeeker(nil)
		require.ErrorIs(t, err, errs.ErrUnsupported)
	})
}

func compressBest(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := NewWriter(&buf, stream.WithLevel(format.LevelBest), stream.WithBlockSize(format.MaxBlockSize), stream.WithIndex(true))
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func TestNewSnappyWriter(t *testing.T) {
	data := sampleText(500_000)

	var buf bytes.Buffer
	w, err := NewSnappyWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte(format.MagicChunkSnap)))

	out, err := io.ReadAll(snappy.NewReader(bytes.NewReader(buf.Bytes())))
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, out))

	_, err = NewSnappyWriter(io.Discard, stream.WithDict(nil))
	require.NoError(t, err, "a nil dictionary is no dictionary")
}
