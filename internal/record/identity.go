package record

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

var eftaRe = regexp.MustCompile(`\bEFTA\d{8}\b`)

// ResolveDocID returns the document id for b. An EFTA identifier wins when
// found in the header, then the metadata filename, then the body. Otherwise
// the id is derived from the header and the originating file path.
func ResolveDocID(b Block, filePath string) string {
	for _, s := range []string{b.HeaderLine, b.MetadataFilename, b.Body} {
		if id := eftaRe.FindString(s); id != "" {
			return id
		}
	}
	return "doc_" + SHA256Hex(b.HeaderLine+"|"+filePath)
}

// SHA256Hex returns the lowercase hex SHA-256 of s.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
