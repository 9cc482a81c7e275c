package models

import "time"

// User is the account consumed by the photo core. GalleryUsage and
// TrashUsage are running byte counters over the user's records in the
// Exists and Trashed status respectively; Deleted records count for neither.
type User struct {
	ID           string
	UUID         string
	BucketID     string
	GalleryUsage int64
	TrashUsage   int64
	CreatedAt    time.Time
}
