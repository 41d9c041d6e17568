package domain

import "time"

// Progress tracks which experiences one guest has completed for one event.
// Completion marks are monotone: an experience id is never removed.
type Progress struct {
	EventID               string    `json:"eventId"`
	GuestID               string    `json:"guestId"`
	CompletedExperiences  []string  `json:"completedExperiences,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// Completed reports whether the guest has completed the given experience.
func (p Progress) Completed(experienceID string) bool {
	for _, completed := range p.CompletedExperiences {
		if completed == experienceID {
			return true
		}
	}
	return false
}

// Experience is one workspace catalog entry. The flow router consults the
// catalog to decide whether a configured stage is actually runnable.
type Experience struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Name        string    `json:"name"`
	StepCount   int       `json:"stepCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
