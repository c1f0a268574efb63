package schema

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"
)

// Fingerprint returns a short, stable hash of the document's steps. Two
// plans with the same steps share a fingerprint regardless of metadata
// such as usage.
func Fingerprint(doc Document) string {
	data, err := json.Marshal(doc[KeySteps])
	if err != nil {
		data = []byte(err.Error())
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
