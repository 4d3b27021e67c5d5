package domain

import "time"

// ModelRecord is the stored form of the model loaded in a session.
// Text is always the canonical text encoding, whatever the original source was.
type ModelRecord struct {
	SessionID string    `json:"session_id"`
	Source    string    `json:"source"`
	Text      string    `json:"text"`
	Nodes     int       `json:"nodes"`
	SavedAt   time.Time `json:"saved_at"`
	// Sealed holds the encrypted Text when the store encrypts models at rest.
	Sealed string `json:"sealed,omitempty"`
}
