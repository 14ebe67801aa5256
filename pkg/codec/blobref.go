package codec

import "encoding/json"

// blobRefEnvelope mirrors types.BlobRefEnvelope; duplicated here (rather than
// importing pkg/types) to keep the codec package dependency-free of the
// domain model it serializes for.
type blobRefEnvelope struct {
	Type          string `json:"type"`
	Hash          string `json:"hash"`
	DeclaredChars int    `json:"declared_chars"`
}

const blobRefType = "caep-blob-ref"

// MakeBlobRef serializes a blob-ref envelope referencing hash, declaring
// declaredChars as the original payload's character count.
func MakeBlobRef(hash string, declaredChars int) (string, error) {
	out, err := json.Marshal(blobRefEnvelope{
		Type:          blobRefType,
		Hash:          hash,
		DeclaredChars: declaredChars,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ParseBlobRef attempts to parse s as a blob-ref envelope. It returns
// ok=false (not an error) when s does not parse as one, since message
// content is ordinarily free-form text.
func ParseBlobRef(s string) (hash string, declaredChars int, ok bool) {
	var env blobRefEnvelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return "", 0, false
	}
	if env.Type != blobRefType || env.Hash == "" {
		return "", 0, false
	}
	return env.Hash, env.DeclaredChars, true
}
