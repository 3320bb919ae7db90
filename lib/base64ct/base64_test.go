package base64ct

import (
	"bytes"
	"encoding/base64"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(r *rand.Rand, n int) []byte {
	b := make([]byte, n)
	r.Read(b)
	return b
}

func TestEncodeDecodeBijection(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	for n := 0; n < 120; n++ {
		src := randomBytes(r, n)

		enc := Encode(src)
		assert.Equal(t, EncodedLen(n), len(enc), "unpadded length")

		dec, err := Decode(enc)
		require.NoError(t, err, "ct decode of ct encode")
		assert.True(t, bytes.Equal(src, dec), "ct round trip for n=%d", n)

		fast, err := DecodeFast(enc)
		require.NoError(t, err, "fast decode of ct encode")
		assert.True(t, bytes.Equal(src, fast), "fast round trip for n=%d", n)
	}
}

func TestReferenceInterop(t *testing.T) {
	r := rand.New(rand.NewSource(2))

	for n := 0; n < 120; n++ {
		src := randomBytes(r, n)

		assert.Equal(t, base64.StdEncoding.EncodeToString(src), EncodePadded(src),
			"padded encode matches encoding/base64")
		assert.Equal(t, base64.RawStdEncoding.EncodeToString(src), Encode(src),
			"unpadded encode matches encoding/base64")

		stripped := strings.TrimRight(base64.StdEncoding.EncodeToString(src), "=")
		dec, err := Decode(stripped)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(src, dec), "ct decode of reference encode")
	}
}

func TestDecodeInvalid(t *testing.T) {
	cases := []string{
		"!!invalid!!",
		"A",       // lone trailing symbol
		"AAAAA",   // 4k+1 symbols
		"AB=",     // padding is not part of the unpadded alphabet
		"QUJD\n",  // whitespace is invalid
		"QQ==",    // padded input on the unpadded decoder
		"\x00\x00",
	}
	for _, in := range cases {
		_, err := Decode(in)
		assert.ErrorIs(t, err, ErrInvalidEncoding, "Decode(%q)", in)
		_, err = DecodeFast(in)
		assert.ErrorIs(t, err, ErrInvalidEncoding, "DecodeFast(%q)", in)
	}
}

func TestDecodeRejectsNonCanonicalTail(t *testing.T) {
	// "QQ" decodes to one byte; the low four bits of the second symbol
	// must be zero. "QR" carries leftover bits.
	_, err := Decode("QQ")
	assert.NoError(t, err)
	_, err = Decode("QR")
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestTrailingGroups(t *testing.T) {
	one, err := Decode("QQ") // "A"
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), one)

	two, err := Decode("QUI") // "AB"
	require.NoError(t, err)
	assert.Equal(t, []byte("AB"), two)
}

// Timing sanity only: a same-length invalid input must not be an order of
// magnitude faster than a valid one. Statistical certification is out of
// scope.
func TestDecodeTimingSanity(t *testing.T) {
	if testing.Short() {
		t.Skip("timing check skipped in short mode")
	}
	valid := strings.Repeat("QUJD", 256)
	invalid := strings.Repeat("!!!!", 256)

	measure := func(in string) time.Duration {
		start := time.Now()
		for i := 0; i < 2000; i++ {
			_, _ = Decode(in)
		}
		return time.Since(start)
	}

	// Warm up, then measure.
	measure(valid)
	tv := measure(valid)
	ti := measure(invalid)

	ratio := float64(ti) / float64(tv)
	assert.Greater(t, ratio, 0.1, "invalid input decoded suspiciously fast")
	assert.Less(t, ratio, 10.0, "invalid input decoded suspiciously slow")
}

func TestLengths(t *testing.T) {
	assert.Equal(t, 0, EncodedLen(0))
	assert.Equal(t, 2, EncodedLen(1))
	assert.Equal(t, 3, EncodedLen(2))
	assert.Equal(t, 4, EncodedLen(3))
	assert.Equal(t, 6, EncodedLen(4))
	assert.Equal(t, 4, PaddedLen(1))
	assert.Equal(t, 8, PaddedLen(4))
	assert.Equal(t, 1, DecodedLen(2))
	assert.Equal(t, 2, DecodedLen(3))
	assert.Equal(t, 3, DecodedLen(4))
}
