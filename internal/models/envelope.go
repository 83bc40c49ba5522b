package models

import (
	"slices"
	"time"
)

// SharedEntry is one entry inside an envelope, encrypted under the
// envelope's ephemeral key.
type SharedEntry struct {
	OriginID string      `json:"origin_id"`
	Fields   EntryFields `json:"fields"`
}

// ShareEnvelope carries entries from a sender to a recipient. SealedKey is
// the ephemeral key sealed to the recipient's share identity.
type ShareEnvelope struct {
	ID          string        `json:"id"`
	SenderID    string        `json:"sender_id"`
	RecipientID string        `json:"recipient_id"`
	SealedKey   string        `json:"sealed_key"`
	Entries     []SharedEntry `json:"entries"`
	Accepted    []string      `json:"accepted"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (e *ShareEnvelope) IsAccepted(originID string) bool {
	return slices.Contains(e.Accepted, originID)
}

// MarkAccepted adds ids to the acceptance set. The set stays sorted and
// free of duplicates, so repeating a call changes nothing.
func (e *ShareEnvelope) MarkAccepted(ids ...string) {
	for _, id := range ids {
		if !e.IsAccepted(id) {
			e.Accepted = append(e.Accepted, id)
		}
	}
	slices.Sort(e.Accepted)
}

// Pending returns the entries not yet accepted.
func (e *ShareEnvelope) Pending() []SharedEntry {
	var out []SharedEntry
	for _, se := range e.Entries {
		if !e.IsAccepted(se.OriginID) {
			out = append(out, se)
		}
	}
	return out
}
