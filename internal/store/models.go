package store

import "time"

// WriteRecord is one entry of the central write log. Rejected writes are
// recorded too so that stale pushes from lagging clients can be spotted.
type WriteRecord struct {
	ID          int64     `json:"id"`
	LastUpdated int64     `json:"lastUpdated"`
	Accepted    bool      `json:"accepted"`
	WrittenAt   time.Time `json:"writtenAt"`
}
