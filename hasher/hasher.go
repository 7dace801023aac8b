package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/zeebo/xxh3"
)

// Size is the length in bytes of a Digest.
const Size = sha256.Size

// Digest is a sha256 content fingerprint. It is the only identity a cache entry has.
type Digest [Size]byte

// Child pairs a directory entry name with its fingerprint.
type Child struct {
	Name   string
	Digest Digest
}

var (
	fileDomain = []byte("file\x00")
	dirDomain  = []byte("dir\x00")
	separator  = []byte{0}
)

// Fingerprint returns the digest of raw file bytes.
func Fingerprint(content []byte) Digest {
	h := sha256.New()
	_, _ = h.Write(fileDomain)
	_, _ = h.Write(content)

	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// FingerprintReader streams r through the file hash. Read errors are returned as-is.
func FingerprintReader(r io.Reader) (Digest, error) {
	h := sha256.New()
	_, _ = h.Write(fileDomain)
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, err
	}

	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// FingerprintOfChildren combines child identities into a directory digest.
// Children are sorted by name first, so listing order never matters.
func FingerprintOfChildren(children []Child) Digest {
	sorted := make([]Child, len(children))
	copy(sorted, children)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := sha256.New()
	_, _ = h.Write(dirDomain)
	for _, child := range sorted {
		_, _ = io.WriteString(h, child.Name)
		_, _ = h.Write(separator)
		_, _ = h.Write(child.Digest[:])
		_, _ = h.Write(separator)
	}

	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// String returns the lowercase hex form used as the cache key.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 8 hex characters, for log lines.
func (d Digest) Short() string {
	return d.String()[:8]
}

// IsZero reports whether d was never assigned.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest parses the hex form produced by String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != Size*2 {
		return d, fmt.Errorf("invalid digest length %d", len(s))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	return d, nil
}

// LineChecksum is a fast non-cryptographic checksum of one README line.
// It only detects hand edits, identity is never derived from it.
func LineChecksum(line string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(line))
}
