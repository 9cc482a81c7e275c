package models

import "time"

// PhotoStatus is the lifecycle status of a photo record. Transitions are
// forward-only: Exists -> Trashed, Exists -> Deleted, Trashed -> Deleted.
type PhotoStatus string

const (
	PhotoStatusExists  PhotoStatus = "EXISTS"
	PhotoStatusTrashed PhotoStatus = "TRASHED"
	PhotoStatusDeleted PhotoStatus = "DELETED"
)

// PhotoItemType distinguishes still photos from video items.
type PhotoItemType string

const (
	PhotoItemTypePhoto PhotoItemType = "PHOTO"
	PhotoItemTypeVideo PhotoItemType = "VIDEO"
)

// Preview describes one derived preview held in the blob network.
type Preview struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
	FileID string `json:"fileId"`
	Type   string `json:"type"`
}

// Photo is a metadata record pointing at encrypted blobs in the external
// content-addressed network. The triple (UserID, Name, TakenAt) identifies a
// logical photo; Hash is a client-supplied fingerprint that may be corrected
// in place after upload.
type Photo struct {
	ID              string
	UserID          string
	DeviceID        string
	Name            string
	Type            string
	Hash            string
	TakenAt         time.Time
	Size            int64
	Width           int
	Height          int
	Duration        *float64
	ItemType        PhotoItemType
	FileID          string
	PreviewID       string
	Previews        []Preview
	Status          PhotoStatus
	StatusChangedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PurgeCandidate is the slice of a Deleted photo record the purge pipeline
// needs: the record key plus every blob reference that must be removed from
// the network before the record itself may go.
type PurgeCandidate struct {
	PhotoID        string
	FileID         string
	PreviewID      string
	PreviewFileIDs []string
}

// BlobRefs returns the flat list of blob references belonging to the
// candidate: the primary file, the main preview (if any) and every derived
// preview.
func (c *PurgeCandidate) BlobRefs() []string {
	refs := make([]string, 0, 2+len(c.PreviewFileIDs))
	refs = append(refs, c.FileID)
	if c.PreviewID != "" {
		refs = append(refs, c.PreviewID)
	}
	refs = append(refs, c.PreviewFileIDs...)
	return refs
}
