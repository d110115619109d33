package model

import "time"

// ReleaseJob asks the compensation workers to release a reservation
// whose synchronous release failed.
type ReleaseJob struct {
	Key        GrantKey
	GrantID    string
	Attempt    int
	Reason     string
	EnqueuedAt time.Time
}
