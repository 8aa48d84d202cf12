package domain

import "time"

// Book is a shared book posting. Only the fields the search proxy needs are
// modelled here; the rest of the posting (comments, likes, photos) lives
// outside this core.
type Book struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// Candidate is a book eligible for semantic ranking: its id plus the text
// blob the ranking service sees.
type Candidate struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Candidate builds the (id, text) pair submitted for ranking.
func (b Book) Candidate() Candidate {
	text := b.Title
	if b.Summary != "" {
		text += " - " + b.Summary
	}
	return Candidate{ID: b.ID, Text: text}
}

// RankedBook is a candidate that survived ranking: relevance order is its
// position in the result slice, Reason is the upstream's one-line
// justification.
type RankedBook struct {
	Candidate
	Reason string `json:"reason"`
}
