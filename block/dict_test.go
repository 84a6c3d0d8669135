package block

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/klauspost/compress/s2"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/s2x/errs"
	"github.com/arloliu/s2x/format"
)

func testDict(t testing.TB) *Dict {
	t.Helper()
	data := textData(20_000, 30)
	d, err := MakeDict(data, data[1000:1016])
	require.NoError(t, err)

	return d
}

// dictInput returns input that shares long runs with the dictionary data.
func dictInput(d *Dict) []byte {
	data := d.Data()
	src := append([]byte{}, data[5000:6000]...)
	src = append(src, textData(500, 31)...)
	src = append(src, data[100:900]...)

	return append(src, data[len(data)-300:]...)
}

func dictEncoders(d *Dict) map[string]func(dst, src []byte) []byte {
	return map[string]func(dst, src []byte) []byte{
		"fast":   d.Encode,
		"better": d.EncodeBetter,
		"best":   d.EncodeBest,
	}
}

func TestDictRoundTrip(t *testing.T) {
	d := testDict(t)
	inputs := map[string][]byte{
		"empty":      {},
		"short":      []byte("cpu usage"),
		"similar":    dictInput(d),
		"dict twice": append(append([]byte{}, d.Data()...), d.Data()...),
		"random":     randomData(10_000, 32),
		"large text": textData(300_000, 33),
		"dict prefix": append(append([]byte{}, d.Data()[:40]...),
			bytes.Repeat(d.Data()[:2000], 40)...),
	}

	for inName, src := range inputs {
		for levelName, enc := range dictEncoders(d) {
			t.Run(inName+"/"+levelName, func(t *testing.T) {
				encoded := enc(nil, src)
				require.LessOrEqual(t, len(encoded), MaxEncodedLen(len(src)))

				decoded, err := d.Decode(nil, encoded)
				require.NoError(t, err)
				require.True(t, bytes.Equal(src, decoded), "decoded output differs")

				dst := make([]byte, len(src))
				n, err := d.DecodeInto(dst, encoded)
				require.NoError(t, err)
				require.Equal(t, len(src), n)
			})
		}
	}
}

func TestDictImprovesCompression(t *testing.T) {
	d := testDict(t)
	src := dictInput(d)

	for levelName, enc := range dictEncoders(d) {
		t.Run(levelName, func(t *testing.T) {
			with := enc(nil, src)
			without := EncodeLevel(nil, src, map[string]format.Level{
				"fast": format.LevelFast, "better": format.LevelBetter, "best": format.LevelBest,
			}[levelName])
			require.Less(t, len(with), len(without))
		})
	}
}

func TestDictDecodeWithoutDict(t *testing.T) {
	d := testDict(t)
	encoded := d.Encode(nil, dictInput(d))

	// Copies that reach into the dictionary are out of range without it.
	_, err := Decode(nil, encoded)
	require.ErrorIs(t, err, errs.ErrCorrupt)
}

func TestDictInteropKlauspost(t *testing.T) {
	d := testDict(t)
	ref := s2.NewDict(d.Bytes())
	require.NotNil(t, ref)

	inputs := [][]byte{
		dictInput(d),
		textData(200_000, 34),
		append(bytes.Repeat(d.Data()[:5000], 30), d.Data()...),
	}
	for i, src := range inputs {
		t.Run(fmt.Sprintf("input %d", i), func(t *testing.T) {
			for levelName, enc := range dictEncoders(d) {
				decoded, err := ref.Decode(nil, enc(nil, src))
				require.NoError(t, err, "reference decode of %s block", levelName)
				require.True(t, bytes.Equal(src, decoded), "reference decode of %s block differs", levelName)
			}

			for name, enc := range map[string]func(dst, src []byte) []byte{
				"Encode":       ref.Encode,
				"EncodeBetter": ref.EncodeBetter,
				"EncodeBest":   ref.EncodeBest,
			} {
				decoded, err := d.Decode(nil, enc(nil, src))
				require.NoError(t, err, name)
				require.True(t, bytes.Equal(src, decoded), "decode of reference %s block differs", name)
			}
		})
	}
}

func TestMakeDict(t *testing.T) {
	data := append(bytes.Repeat([]byte{'x'}, 100), "HELLOWORLD"...)
	data = append(data, bytes.Repeat([]byte{'y'}, 50)...)

	tests := []struct {
		name        string
		searchStart string
		repeat      int
	}{
		{"exact", "HELLOWORLD", 100},
		{"longest prefix", "HELLOthere", 100},
		{"last occurrence", "xxxx", 96},
		{"not found", "ABCD", 0},
		{"too short", "HEL", 0},
		{"none", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := MakeDict(data, []byte(tt.searchStart))
			require.NoError(t, err)
			require.Equal(t, tt.repeat, d.Repeat())
			require.Equal(t, data, d.Data())
		})
	}

	t.Run("needs eight trailing bytes", func(t *testing.T) {
		data := append(bytes.Repeat([]byte{'x'}, 28), "WXYZ"...)
		d, err := MakeDict(data, []byte("WXYZ"))
		require.NoError(t, err)
		require.Equal(t, 0, d.Repeat())
	})

	t.Run("last occurrence too close to the end", func(t *testing.T) {
		// ABCDE occurs at 10 and at 35; the later one leaves 7 bytes, so no
		// prefix is accepted and an earlier occurrence is not used instead.
		data := append(bytes.Repeat([]byte{'x'}, 10), "ABCDE"...)
		data = append(data, bytes.Repeat([]byte{'x'}, 20)...)
		data = append(data, "ABCDEzz"...)
		d, err := MakeDict(data, []byte("ABCDE"))
		require.NoError(t, err)
		require.Equal(t, 0, d.Repeat())
		require.Equal(t, s2.MakeDict(data, []byte("ABCDE")).Bytes(), d.Bytes())
	})

	t.Run("matches klauspost", func(t *testing.T) {
		for _, search := range []string{"HELLOWORLD", "HELLOthere", "xxxxxxxx", "yyyyyyyyyy", "ABCDEFGH"} {
			d, err := MakeDict(data, []byte(search))
			require.NoError(t, err)
			require.Equal(t, s2.MakeDict(data, []byte(search)).Bytes(), d.Bytes(), "search %q", search)
		}
	})

	t.Run("keeps the last 64KiB", func(t *testing.T) {
		data := textData(100_000, 35)
		d, err := MakeDict(data, nil)
		require.NoError(t, err)
		require.Equal(t, format.MaxDictSize, d.Len())
		require.Equal(t, data[len(data)-format.MaxDictSize:], d.Data())
	})

	t.Run("too small", func(t *testing.T) {
		_, err := MakeDict(make([]byte, format.MinDictSize-1), nil)
		require.ErrorIs(t, err, errs.ErrInvalidInput)
	})

	t.Run("copies data", func(t *testing.T) {
		data := textData(100, 36)
		d, err := MakeDict(data, nil)
		require.NoError(t, err)
		data[0] ^= 0xff
		require.NotEqual(t, data[0], d.Data()[0])
	})
}

func TestMakeDictManual(t *testing.T) {
	data := textData(100, 37)

	d, err := MakeDictManual(data, 92)
	require.NoError(t, err)
	require.Equal(t, 92, d.Repeat())

	for _, idx := range []int{-1, 93, 100} {
		_, err := MakeDictManual(data, idx)
		require.ErrorIs(t, err, errs.ErrInvalidInput, "index %d", idx)
	}

	_, err = MakeDictManual(make([]byte, format.MaxDictSize+1), 0)
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestDictWireForm(t *testing.T) {
	d := testDict(t)

	parsed, err := NewDict(d.Bytes())
	require.NoError(t, err)
	require.Equal(t, d.Data(), parsed.Data())
	require.Equal(t, d.Repeat(), parsed.Repeat())
	require.Equal(t, d.ID(), parsed.ID())

	// The reference implementation reads the same form.
	ref := s2.NewDict(d.Bytes())
	require.NotNil(t, ref)

	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"too short", append([]byte{0}, make([]byte, format.MinDictSize-1)...)},
		{"too long", append([]byte{0}, make([]byte, format.MaxDictSize+1)...)},
		{"repeat past end", append([]byte{20}, make([]byte, 20)...)},
		{"bad varint", []byte{0x80, 0x80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDict(tt.raw)
			require.ErrorIs(t, err, errs.ErrCorrupt)
		})
	}
}

func TestDictMarshalBinary(t *testing.T) {
	d := testDict(t)
	b, err := d.MarshalBinary()
	require.NoError(t, err)

	loaded, err := UnmarshalDict(b)
	require.NoError(t, err)
	require.Equal(t, d.Data(), loaded.Data())
	require.Equal(t, d.Repeat(), loaded.Repeat())
	require.Equal(t, d.ID(), loaded.ID())

	t.Run("content changed", func(t *testing.T) {
		bad := append([]byte{}, b...)
		bad[len(bad)-1] ^= 1
		_, err := UnmarshalDict(bad)
		require.ErrorIs(t, err, errs.ErrDictMismatch)
		require.ErrorIs(t, err, errs.ErrCorrupt)
	})

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"truncated", func(b []byte) []byte { return b[:len(b)-1] }},
		{"trailing byte", func(b []byte) []byte { return append(b, 0) }},
		{"bad magic", func(b []byte) []byte { b[0] = 'x'; return b }},
		{"unknown version", func(b []byte) []byte { b[4] = 2; return b }},
		{"header only", func(b []byte) []byte { return b[:5] }},
		{"empty", func([]byte) []byte { return nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalDict(tt.mutate(append([]byte{}, b...)))
			require.ErrorIs(t, err, errs.ErrCorrupt)
		})
	}
}

func TestDictConcurrentUse(t *testing.T) {
	d := testDict(t)
	src := dictInput(d)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for levelName, enc := range dictEncoders(d) {
				decoded, err := d.Decode(nil, enc(nil, src))
				if err != nil {
					return err
				}
				if !bytes.Equal(src, decoded) {
					return fmt.Errorf("%s: decoded output differs", levelName)
				}
			}

			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func BenchmarkDictEncode(b *testing.B) {
	d := testDict(b)
	src := dictInput(d)
	for levelName, enc := range dictEncoders(d) {
		b.Run(levelName, func(b *testing.B) {
			dst := make([]byte, MaxEncodedLen(len(src)))
			b.SetBytes(int64(len(src)))
			b.ResetTimer()
			for b.Loop() {
				enc(dst, src)
			}
		})
	}
}
