package release

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ID identifies a release. The catalog normally sends a string but numeric
// identifiers are accepted too.
type ID string

// UnmarshalJSON accepts both JSON strings and numbers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*id = ID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}

	*id = ID(n.String())

	return nil
}

// Release is one published version of a catalog item as returned by the catalog.
// It is consumed read-only for the duration of a single pass.
type Release struct {
	// ID is the release identifier.
	ID ID `json:"id"`
	// Name is the human readable release name.
	Name string `json:"name,omitempty"`
	// ReleaseDate is the publication date (YYYY-MM-DD).
	ReleaseDate string `json:"releaseDate,omitempty"`
	// ArchiveFileURL points to the primary archive.
	ArchiveFileURL string `json:"archiveFileUrl,omitempty"`
	// ArchiveFileName is the file name of the primary archive.
	ArchiveFileName string `json:"archiveFileName,omitempty"`
	// ArchiveFileSizeBytes is the advertised archive size, zero when unknown.
	ArchiveFileSizeBytes int64 `json:"archiveFileSizeBytes,omitempty"`
	// ChecksumFileURL points to the optional checksum companion.
	ChecksumFileURL string `json:"checksumFileUrl,omitempty"`
	// ChecksumFileName is the file name of the checksum companion.
	ChecksumFileName string `json:"checksumFileName,omitempty"`
	// SignatureFileURL points to the optional signature companion.
	SignatureFileURL string `json:"signatureFileUrl,omitempty"`
	// SignatureFileName is the file name of the signature companion.
	SignatureFileName string `json:"signatureFileName,omitempty"`
	// PublicKeyFileURL points to the key the signature was made with.
	PublicKeyFileURL string `json:"publicKeyFileUrl,omitempty"`
	// PublicKeyID identifies the signing key.
	PublicKeyID ID `json:"publicKeyId,omitempty"`
}

// HasArchive reports whether the release carries a primary archive.
func (r *Release) HasArchive() bool {
	return present(r.ArchiveFileURL, r.ArchiveFileName)
}

// HasChecksum reports whether the release carries a checksum companion.
func (r *Release) HasChecksum() bool {
	return present(r.ChecksumFileURL, r.ChecksumFileName)
}

// HasSignature reports whether the release carries a signature companion.
func (r *Release) HasSignature() bool {
	return present(r.SignatureFileURL, r.SignatureFileName)
}

func present(url, name string) bool {
	return strings.TrimSpace(url) != "" && strings.TrimSpace(name) != ""
}
