package models

// BlobRef identifies one object in the blob store: its storage key and the
// public URL under which it is served.
type BlobRef struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// BlobHolder is implemented by records that carry at most one public blob
// reference and have a single owning user.
type BlobHolder interface {
	BlobURL() string
	SetBlobURL(url string)
	OwnerID() uint
}

var (
	_ BlobHolder = (*Post)(nil)
	_ BlobHolder = (*User)(nil)
)
