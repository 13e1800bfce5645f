package codec

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rcerr "gorc/internal/errors"
)

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	random := make([]byte, 64*1024)
	for i := range random {
		random[i] = byte('a' + rng.Intn(26))
	}

	texts := map[string]string{
		"empty":   "",
		"command": "echo hi\n",
		"output":  "hi\n",
		"unicode": "grüße, 世界 ✓\n",
		"large":   strings.Repeat("total 0\ndrwxr-xr-x 2 root root 4096 .\n", 2000),
		"random":  string(random),
	}
	levels := []Level{LevelNone, LevelSpeed, LevelDefault, LevelBest}

	for name, text := range texts {
		for _, level := range levels {
			t.Run(name+"/"+level.String(), func(t *testing.T) {
				payload, err := New(level).Compress(text)
				require.NoError(t, err)

				// Decoding never depends on the sender's level.
				got, err := New(LevelDefault).Decompress(payload)
				require.NoError(t, err)
				assert.Equal(t, text, got)
			})
		}
	}
}

func TestCompress_ShrinksRepetitiveText(t *testing.T) {
	text := strings.Repeat("no such file or directory\n", 200)
	payload, err := New(LevelBest).Compress(text)
	require.NoError(t, err)
	assert.Less(t, len(payload), len(text)/10)
}

func TestDecompress_Corrupt(t *testing.T) {
	valid, err := New(LevelDefault).Compress(strings.Repeat("abc", 100))
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("definitely not zlib"),
		"truncated": valid[:len(valid)/2],
		"bad sum":   append(append([]byte{}, valid[:len(valid)-1]...), valid[len(valid)-1]^0xFF),
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			out, err := New(LevelDefault).Decompress(payload)
			require.Error(t, err)
			assert.Empty(t, out)

			var ce *rcerr.CodecError
			assert.ErrorAs(t, err, &ce)
			assert.True(t, rcerr.IsSessionTerminal(err))
		})
	}
}

func TestDecompress_RejectsInvalidUTF8(t *testing.T) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write([]byte{0xff, 0xfe, 'h', 'i'})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = New(LevelDefault).Decompress(buf.Bytes())
	var ce *rcerr.CodecError
	require.ErrorAs(t, err, &ce)
}

func TestCompressBytes_SanitisesOutput(t *testing.T) {
	c := New(LevelDefault)
	payload, err := c.CompressBytes([]byte{'o', 'k', 0xff, '\n'})
	require.NoError(t, err)

	got, err := c.Decompress(payload)
	require.NoError(t, err)
	assert.Equal(t, "ok�\n", got)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"", LevelDefault, false},
		{"default", LevelDefault, false},
		{"best", LevelBest, false},
		{"MAX", LevelBest, false},
		{"speed", LevelSpeed, false},
		{"none", LevelNone, false},
		{"6", Level(6), false},
		{"10", 0, true},
		{"-2", 0, true},
		{"ultra", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
