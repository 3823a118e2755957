package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/matzehuels/linkcard/pkg/card"
)

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// fingerprintInput is serialized with encoding/json, which sorts map keys,
// so equal inputs always produce equal bytes.
type fingerprintInput struct {
	Template  string             `json:"template"`
	Options   card.RenderOptions `json:"options"`
	Props     map[string]any     `json:"props"`
	Namespace string             `json:"namespace"`
}

// Fingerprint derives the image cache key for a render. Changing the
// template content, any render option, any prop or the namespace version
// produces a different fingerprint.
func Fingerprint(templateHash string, opts card.RenderOptions, props map[string]any, namespace string) string {
	data, err := json.Marshal(fingerprintInput{
		Template:  templateHash,
		Options:   opts,
		Props:     props,
		Namespace: namespace,
	})
	if err != nil {
		// Props that cannot be encoded cannot be cached either; hash the
		// error so such renders never share a key with a valid one.
		data = []byte("unencodable:" + err.Error())
	}
	return Hash(data)
}
