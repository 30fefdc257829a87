package model

import "time"

// BottleStatus controls whether a bottle takes part in exchanges.
type BottleStatus string

const (
	StatusActive   BottleStatus = "active"
	StatusReported BottleStatus = "reported"
)

// Bottle is a single anonymous message thrown into the river.
type Bottle struct {
	ID             string           // UUID
	SequenceNumber int64            // Assigned by the store, strictly increasing
	Message        string           // Trimmed, 15-300 runes
	Nickname       string           // Empty when absent
	Country        string           // Empty when absent
	OriginAddress  string           // Possibly sealed; never exposed publicly
	Status         BottleStatus     // Only active bottles are sampled
	ReactionCounts map[string]int64 // emoji -> count, zero entries pruned
	ReportCount    int64            // Monotonic
	CreatedAt      time.Time
}

// FalsePositiveReport is a user's claim that moderation rejected a harmless message.
// It is written once and never enters the exchange pool.
type FalsePositiveReport struct {
	ID            string // UUID
	Message       string
	Nickname      string
	Country       string
	OriginAddress string
	CreatedAt     time.Time
}

// Stats summarises the contents of the store.
type Stats struct {
	ActiveBottles        int64
	ReportedBottles      int64
	FalsePositiveReports int64
	LastSequenceNumber   int64
}

// PublicBottle is the projection of a Bottle that may be shown to other users.
type PublicBottle struct {
	ID             string           `json:"id"`
	SequenceNumber int64            `json:"sequenceNumber"`
	Message        string           `json:"message"`
	Nickname       *string          `json:"nickname"`
	Country        *string          `json:"country"`
	ReactionCounts map[string]int64 `json:"reactionCounts"`
	ReportCount    int64            `json:"reportCount"`
}

// Public strips the private fields from a bottle.
func (b *Bottle) Public() PublicBottle {
	counts := make(map[string]int64, len(b.ReactionCounts))
	for emoji, n := range b.ReactionCounts {
		if n > 0 {
			counts[emoji] = n
		}
	}
	return PublicBottle{
		ID:             b.ID,
		SequenceNumber: b.SequenceNumber,
		Message:        b.Message,
		Nickname:       optional(b.Nickname),
		Country:        optional(b.Country),
		ReactionCounts: counts,
		ReportCount:    b.ReportCount,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
