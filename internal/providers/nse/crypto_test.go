package nse

import (
	"crypto/aes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	for _, plain := range []string{
		"",
		"x",
		`{"symbol":"NIFTY 50"}`,
		strings.Repeat("block-aligned-16", 4),
	} {
		sealed, err := sealPayload([]byte(plain))
		require.NoError(t, err)

		opened, err := openPayload(sealed)
		require.NoError(t, err)
		assert.Equal(t, plain, string(opened))
	}
}

func TestSealedPayloadIsBlockAligned(t *testing.T) {
	sealed, err := sealPayload([]byte(`{"symbol":"INDIA VIX"}`))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	assert.Zero(t, len(raw)%aes.BlockSize)
}

func TestOpenPayloadRejectsGarbage(t *testing.T) {
	_, err := openPayload("not base64 !!!")
	assert.Error(t, err)

	// Valid base64 but not block aligned.
	_, err = openPayload(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)

	_, err = openPayload("")
	assert.Error(t, err)
}

func TestPkcs7PadAlwaysAppends(t *testing.T) {
	// Exact multiples get a full extra block, so unpad is never ambiguous.
	padded := pkcs7Pad(make([]byte, aes.BlockSize), aes.BlockSize)
	assert.Len(t, padded, 2*aes.BlockSize)
	assert.Equal(t, byte(aes.BlockSize), padded[len(padded)-1])
}
