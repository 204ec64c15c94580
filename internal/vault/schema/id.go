package schema

import "github.com/google/uuid"

// NewID returns a new time-ordered 128-bit identifier in canonical grouped
// hex form (UUIDv7). Time-ordering lets identifier order stand in for an
// approximate creation-order index without a separate sequence counter.
//
// The remote store honors client-supplied ids, so ids are minted locally
// even while offline.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does; fall back to v4
		// rather than returning an empty id.
		return uuid.NewString()
	}
	return id.String()
}
