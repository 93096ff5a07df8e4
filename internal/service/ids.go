package service

import "github.com/google/uuid"

func newDocID() string {
	return uuid.NewString()
}

// newPointID returns a UUID; qdrant only accepts UUIDs or integers as
// point ids, so every backend uses the same format.
func newPointID() string {
	return uuid.NewString()
}
