package session

import "time"

// Impersonation records an active bypass. At most one exists per session;
// removing it restores the session to its original subject in one step.
type Impersonation struct {
	OriginalSubjectID int64     `json:"original_subject_id"`
	ActingSubjectID   int64     `json:"acting_subject_id"`
	IssuedAt          time.Time `json:"issued_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}
