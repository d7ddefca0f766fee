package cache

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompress_RoundTrip(t *testing.T) {
	cfg := DefaultCompressionConfig()
	payload := []byte(strings.Repeat(`{"pair":"BTC/USDT","rate":0.0012}`, 100))

	result, err := compress(cfg, payload)
	require.NoError(t, err)
	require.NotNil(t, result.envelope)

	decoded, err := decompress(result.envelope)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, decoded))
}

func TestCompress_SkipsBelowThreshold(t *testing.T) {
	cfg := DefaultCompressionConfig()
	result, err := compress(cfg, []byte("small"))
	require.NoError(t, err)
	assert.Nil(t, result.envelope)
	assert.Equal(t, SkipBelowThreshold, result.skipReason)
}

func TestCompress_SkipsAlreadyCompressed(t *testing.T) {
	cfg := DefaultCompressionConfig()
	payload := append([]byte{0x1f, 0x8b}, bytes.Repeat([]byte{0xAB}, 2000)...)
	result, err := compress(cfg, payload)
	require.NoError(t, err)
	assert.Nil(t, result.envelope)
	assert.Equal(t, SkipAlreadyCompressed, result.skipReason)
}

func TestCompress_SkipsBinary(t *testing.T) {
	cfg := DefaultCompressionConfig()
	payload := make([]byte, 2000)
	for i := range payload {
		payload[i] = byte(i % 256)
	}
	// Ensure it doesn't parse as UTF-8 text or JSON: fill with invalid UTF-8 continuation bytes.
	for i := 0; i < len(payload); i += 2 {
		payload[i] = 0xFF
		payload[i+1] = 0xFE
	}
	result, err := compress(cfg, payload)
	require.NoError(t, err)
	assert.Nil(t, result.envelope)
	assert.Equal(t, SkipBinary, result.skipReason)
}

func TestDecompress_ChecksumMismatchFails(t *testing.T) {
	cfg := DefaultCompressionConfig()
	payload := []byte(strings.Repeat("a", 2000))

	result, err := compress(cfg, payload)
	require.NoError(t, err)
	require.NotNil(t, result.envelope)

	result.envelope.Checksum = "tampered"
	_, err = decompress(result.envelope)
	require.Error(t, err)
}

func TestCompressionConfig_Validate(t *testing.T) {
	cfg := DefaultCompressionConfig()
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.MaxCompressionRatio = 0
	assert.Error(t, bad.Validate())
}

func TestAnalyzeContent_JSON(t *testing.T) {
	assert.Equal(t, ContentJSON, analyzeContent([]byte(`{"a":1}`)))
	assert.Equal(t, ContentJSON, analyzeContent([]byte(`[1,2,3]`)))
}

func TestAnalyzeContent_Text(t *testing.T) {
	assert.Equal(t, ContentText, analyzeContent([]byte("plain text payload")))
}
