package worker

import (
	"sync"

	"github.com/google/uuid"
)

var (
	issuedMu  sync.Mutex
	issuedIDs = map[string]bool{}
)

// newID returns a UUID guaranteed not to have been handed out earlier in
// this process, mirroring the original's issued_uuids dedup list.
func newID() string {
	issuedMu.Lock()
	defer issuedMu.Unlock()
	for {
		id := uuid.NewString()
		if !issuedIDs[id] {
			issuedIDs[id] = true
			return id
		}
	}
}
