package cryptoutil

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	key := make([]byte, keySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestAESGCMSealer_RoundTrip(t *testing.T) {
	s, err := NewAESGCMSealer(testKey())
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("refresh-token"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "v1:"))
	assert.NotContains(t, sealed, "refresh-token")

	again, err := s.Seal([]byte("refresh-token"))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonces must differ")

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("refresh-token"), opened)
}

func TestAESGCMSealer_RejectsForeignValues(t *testing.T) {
	s, err := NewAESGCMSealer(testKey())
	require.NoError(t, err)

	_, err = s.Open("refresh-token")
	require.ErrorIs(t, err, ErrUnsealed)

	_, err = s.Open("v1:!!!")
	require.Error(t, err)

	_, err = s.Open("v1:" + base64.StdEncoding.EncodeToString([]byte("short")))
	require.Error(t, err)

	other := testKey()
	other[0] = 0xff
	s2, err := NewAESGCMSealer(other)
	require.NoError(t, err)
	sealed, err := s2.Seal([]byte("x"))
	require.NoError(t, err)
	_, err = s.Open(sealed)
	require.Error(t, err)
}

func TestNewAESGCMSealer_KeySize(t *testing.T) {
	_, err := NewAESGCMSealer([]byte("too short"))
	require.Error(t, err)
}

func TestParseKey(t *testing.T) {
	key := testKey()

	got, err := ParseKey(hex.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	got, err = ParseKey(" " + base64.StdEncoding.EncodeToString(key) + "\n")
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = ParseKey("abcd")
	require.Error(t, err)
}

func TestPlainSealer(t *testing.T) {
	sealed, err := PlainSealer{}.Seal([]byte("value"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "plain:"))

	opened, err := PlainSealer{}.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), opened)

	_, err = PlainSealer{}.Open("v1:abc")
	require.Error(t, err)
}
