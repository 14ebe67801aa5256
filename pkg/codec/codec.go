// Package codec implements the payload codecs applied to message and blob
// content before hashing, storage, and send: none, whitespace normalization,
// JSON minimization, auto (shortest-of), and lossless_auto (size-adaptive
// compression with an integrity tag).
package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/klauspost/compress/flate"
)

// Mode names one of the codecs a caller may request.
type Mode string

const (
	ModeNone         Mode = "none"
	ModeWhitespace   Mode = "whitespace"
	ModeJSON         Mode = "json"
	ModeAuto         Mode = "auto"
	ModeLosslessAuto Mode = "lossless_auto"
)

// losslessAutoTag marks stored_value produced by ModeLosslessAuto.
const losslessAutoTag = "flate+b64"

// losslessAutoGainMargin is the minimum fractional size reduction required
// before lossless_auto will keep the compressed form over the raw input.
const losslessAutoGainMargin = 0.10

// BlobHash returns the hex sha256 digest of value, the key protocol blobs
// are stored and deduplicated under. Hashing happens over the stored
// (post-codec) bytes so identical codec outputs dedupe regardless of the
// codec's own internal framing.
func BlobHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}

// Result is the return contract for every codec invocation.
type Result struct {
	StoredValue string  `json:"stored_value"`
	CodecUsed   Mode    `json:"codec_used"`
	Applied     bool    `json:"applied"`
	Lossless    bool    `json:"lossless"`
	GainPct     float64 `json:"gain_pct"`
}

// Encode applies mode to in and returns the stored form plus bookkeeping
// about what happened.
func Encode(in string, mode Mode) (Result, error) {
	switch mode {
	case "", ModeNone:
		return Result{StoredValue: in, CodecUsed: ModeNone, Applied: false, Lossless: true, GainPct: 0}, nil
	case ModeWhitespace:
		return encodeWhitespace(in), nil
	case ModeJSON:
		return encodeJSON(in), nil
	case ModeAuto:
		return encodeAuto(in), nil
	case ModeLosslessAuto:
		return encodeLosslessAuto(in)
	default:
		return Result{}, fmt.Errorf("codec: unknown mode %q", mode)
	}
}

func gainPct(inLen, outLen int) float64 {
	if inLen == 0 {
		return 0
	}
	pct := 100 * float64(inLen-outLen) / float64(inLen)
	return roundTo2(pct)
}

func roundTo2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func collapseWhitespace(in string) string {
	fields := strings.Fields(in)
	return strings.Join(fields, " ")
}

func encodeWhitespace(in string) Result {
	out := collapseWhitespace(in)
	return Result{
		StoredValue: out,
		CodecUsed:   ModeWhitespace,
		Applied:     out != in,
		Lossless:    false,
		GainPct:     gainPct(len(in), len(out)),
	}
}

func minifyJSON(in string) (string, bool) {
	var v interface{}
	if err := json.Unmarshal([]byte(in), &v); err != nil {
		return in, false
	}
	out, err := canonicalMarshal(v)
	if err != nil {
		return in, false
	}
	return string(out), true
}

// canonicalMarshal re-encodes v with object keys sorted, matching
// encoding/json's default map-key ordering but applied recursively.
func canonicalMarshal(v interface{}) ([]byte, error) {
	return json.Marshal(sortedValue(v))
}

func sortedValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		// encoding/json already marshals map[string]interface{} keys sorted.
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = sortedValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = sortedValue(val)
		}
		return out
	default:
		return v
	}
}

func encodeJSON(in string) Result {
	out, ok := minifyJSON(in)
	return Result{
		StoredValue: out,
		CodecUsed:   ModeJSON,
		Applied:     ok && out != in,
		Lossless:    false,
		GainPct:     gainPct(len(in), len(out)),
	}
}

// encodeAuto picks the shortest of {raw, json, whitespace}; ties prefer raw.
func encodeAuto(in string) Result {
	jsonOut, jsonOK := minifyJSON(in)
	wsOut := collapseWhitespace(in)

	best := in
	used := ModeNone
	bestLen := len(in)

	if jsonOK && len(jsonOut) < bestLen {
		best, used, bestLen = jsonOut, ModeJSON, len(jsonOut)
	}
	if len(wsOut) < bestLen {
		best, used, bestLen = wsOut, ModeWhitespace, len(wsOut)
	}

	return Result{
		StoredValue: best,
		CodecUsed:   ModeAuto,
		Applied:     used != ModeNone,
		Lossless:    used == ModeNone,
		GainPct:     gainPct(len(in), bestLen),
	}
}

func encodeLosslessAuto(in string) (Result, error) {
	digest := sha256.Sum256([]byte(in))

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return Result{}, fmt.Errorf("codec: opening flate writer: %w", err)
	}
	if _, err := w.Write([]byte(in)); err != nil {
		return Result{}, fmt.Errorf("codec: compressing: %w", err)
	}
	if err := w.Close(); err != nil {
		return Result{}, fmt.Errorf("codec: closing flate writer: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	tagged := fmt.Sprintf("%s:%x:%s", losslessAutoTag, digest, encoded)

	if len(in) == 0 || float64(len(in)-len(tagged)) < losslessAutoGainMargin*float64(len(in)) {
		return Result{
			StoredValue: in,
			CodecUsed:   ModeLosslessAuto,
			Applied:     false,
			Lossless:    true,
			GainPct:     0,
		}, nil
	}

	return Result{
		StoredValue: tagged,
		CodecUsed:   ModeLosslessAuto,
		Applied:     true,
		Lossless:    true,
		GainPct:     gainPct(len(in), len(tagged)),
	}, nil
}

// Decoded is the outcome of decoding a stored value back to its original
// bytes, alongside whether the stored integrity digest checked out and
// which codec the stored value was tagged with.
type Decoded struct {
	Value       string
	IntegrityOK bool
	Codec       Mode
}

// Decode reverses Encode for codecs where that is possible (none and
// lossless_auto). whitespace, json, and auto are lossy and have no decode.
func Decode(stored string) (Decoded, error) {
	if !strings.HasPrefix(stored, losslessAutoTag+":") {
		return Decoded{Value: stored, IntegrityOK: true, Codec: ModeNone}, nil
	}

	rest := strings.TrimPrefix(stored, losslessAutoTag+":")
	sepIdx := strings.IndexByte(rest, ':')
	if sepIdx < 0 {
		return Decoded{}, fmt.Errorf("codec: malformed lossless_auto payload")
	}
	hexDigest := rest[:sepIdx]
	encoded := rest[sepIdx+1:]

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Decoded{}, fmt.Errorf("codec: base64 decode: %w", err)
	}

	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		return Decoded{}, fmt.Errorf("codec: flate decode: %w", err)
	}

	digest := sha256.Sum256(out.Bytes())
	ok := fmt.Sprintf("%x", digest) == hexDigest

	return Decoded{Value: out.String(), IntegrityOK: ok, Codec: ModeLosslessAuto}, nil
}
