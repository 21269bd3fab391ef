package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// hashLen is the length of the short commit token, like an abbreviated git
// object id.
const hashLen = 8

// commitHash derives the short commit token from content plus lineage. The
// sequence number guarantees two commits with byte-identical staged content
// still hash differently within one chain.
func commitHash(parent, message string, ops []Operation, seq uint64) string {
	payload, err := json.Marshal(struct {
		Parent  string      `json:"parent"`
		Message string      `json:"message"`
		Ops     []Operation `json:"ops"`
		Seq     uint64      `json:"seq"`
	}{parent, message, ops, seq})
	if err != nil {
		// Operations are maps of JSON-safe values; marshal cannot fail for
		// the shapes this package stages.
		panic(err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:hashLen]
}
