package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"

	"github.com/aristath/arbitrage-platform/internal/apperr"
)

// CompressionConfig governs the compression middleware's behavior. It
// follows the platform-wide convention of Default/HighThroughput/
// HighReliability presets plus Validate.
type CompressionConfig struct {
	Level             int
	SizeThresholdBytes int
	MaxCompressionRatio float64
}

// DefaultCompressionConfig matches the thresholds observed in the original
// implementation: compress at gzip level 6, only above 1 KiB, and only if
// the result is smaller than 90% of the original.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		Level:               gzip.DefaultCompression,
		SizeThresholdBytes:  1024,
		MaxCompressionRatio: 0.9,
	}
}

// HighThroughputCompressionConfig trades ratio for speed: a lower gzip
// level and a higher size threshold so small, latency-sensitive payloads
// skip the compressor entirely.
func HighThroughputCompressionConfig() CompressionConfig {
	return CompressionConfig{
		Level:               gzip.BestSpeed,
		SizeThresholdBytes:  4096,
		MaxCompressionRatio: 0.95,
	}
}

// HighReliabilityCompressionConfig favors maximum space savings, accepting
// more CPU time, and is stricter about rejecting ineffective compression.
func HighReliabilityCompressionConfig() CompressionConfig {
	return CompressionConfig{
		Level:               gzip.BestCompression,
		SizeThresholdBytes:  512,
		MaxCompressionRatio: 0.85,
	}
}

// Validate returns a structured error for nonsensical configuration.
func (c CompressionConfig) Validate() error {
	if c.Level < gzip.HuffmanOnly || c.Level > gzip.BestCompression {
		return apperr.New(apperr.ConfigError, "cache.CompressionConfig.Validate", fmt.Errorf("compression level %d out of range", c.Level))
	}
	if c.SizeThresholdBytes < 0 {
		return apperr.New(apperr.ConfigError, "cache.CompressionConfig.Validate", fmt.Errorf("size threshold must be non-negative"))
	}
	if c.MaxCompressionRatio <= 0 || c.MaxCompressionRatio > 1 {
		return apperr.New(apperr.ConfigError, "cache.CompressionConfig.Validate", fmt.Errorf("max compression ratio must be in (0, 1]"))
	}
	return nil
}

// gzipMagic is the two-byte header that identifies an already-gzipped
// payload, used by the content analyzer to avoid double compression.
var gzipMagic = []byte{0x1f, 0x8b}

// knownCompressedMagics disqualify a payload from compression: it is
// already in a dense binary format.
var knownCompressedMagics = [][]byte{
	gzipMagic,
	{0x50, 0x4b, 0x03, 0x04}, // zip/jar/docx etc.
	{0x89, 0x50, 0x4e, 0x47}, // png
	{0xff, 0xd8, 0xff},       // jpeg
	{0x42, 0x5a, 0x68},       // bzip2
}

// analyzeContent classifies a payload so compress() can decide whether
// attempting compression is worthwhile.
func analyzeContent(data []byte) ContentKind {
	for _, magic := range knownCompressedMagics {
		if len(data) >= len(magic) && bytes.Equal(data[:len(magic)], magic) {
			return ContentAlreadyCompressed
		}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var js json.RawMessage
		if json.Unmarshal(trimmed, &js) == nil {
			return ContentJSON
		}
	}

	if utf8.Valid(data) {
		return ContentText
	}

	return ContentBinary
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// compressResult is the outcome of attempting to compress a payload.
type compressResult struct {
	envelope   *Envelope // nil when compression was skipped
	skipReason SkipReason
	effective  bool
}

// compress applies the size and content-kind heuristics, then gzip at the
// configured level; it rejects the result if the ratio does not clear
// MaxCompressionRatio, reporting why the attempt was skipped or ineffective.
func compress(cfg CompressionConfig, data []byte) (compressResult, error) {
	if len(data) < cfg.SizeThresholdBytes {
		return compressResult{skipReason: SkipBelowThreshold}, nil
	}

	kind := analyzeContent(data)
	if kind == ContentAlreadyCompressed {
		return compressResult{skipReason: SkipAlreadyCompressed}, nil
	}
	if kind == ContentBinary {
		return compressResult{skipReason: SkipBinary}, nil
	}

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, cfg.Level)
	if err != nil {
		return compressResult{}, apperr.New(apperr.Internal, "cache.compress", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return compressResult{}, apperr.New(apperr.Internal, "cache.compress", err)
	}
	if err := w.Close(); err != nil {
		return compressResult{}, apperr.New(apperr.Internal, "cache.compress", err)
	}

	compressed := buf.Bytes()
	ratio := float64(len(compressed)) / float64(len(data))
	if ratio > cfg.MaxCompressionRatio {
		return compressResult{skipReason: SkipRatioExceeded}, nil
	}

	return compressResult{
		envelope: &Envelope{
			Algorithm:      AlgorithmGzip,
			OriginalSize:   len(data),
			CompressedData: compressed,
			Checksum:       checksum(compressed),
		},
		effective: true,
	}, nil
}

// decompress reverses compress, verifying the checksum first so a bit-flip
// in storage is caught before gzip ever sees the bytes.
func decompress(env *Envelope) ([]byte, error) {
	if checksum(env.CompressedData) != env.Checksum {
		return nil, apperr.New(apperr.IntegrityError, "cache.decompress", fmt.Errorf("checksum mismatch"))
	}

	r, err := gzip.NewReader(bytes.NewReader(env.CompressedData))
	if err != nil {
		return nil, apperr.New(apperr.IntegrityError, "cache.decompress", err)
	}
	defer r.Close()

	out := make([]byte, 0, env.OriginalSize)
	buf := bytes.NewBuffer(out)
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, apperr.New(apperr.IntegrityError, "cache.decompress", err)
	}
	return buf.Bytes(), nil
}

// encodeEnvelope and decodeEnvelope provide the JSON wire format for the
// envelope so a Store only ever sees opaque bytes.
func encodeEnvelope(env *Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func decodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Algorithm == "" || env.Checksum == "" {
		return nil, fmt.Errorf("not an envelope")
	}
	return &env, nil
}
