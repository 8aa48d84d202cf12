package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bookery-social/bookery/internal/domain"
	"github.com/bookery-social/bookery/internal/rate"
	"github.com/bookery-social/bookery/internal/store"
	"github.com/bookery-social/bookery/pkg/slogx"
)

const (
	// defaultCandidateLimit bounds how many recent books are offered for
	// ranking, which in turn bounds the prompt size.
	defaultCandidateLimit = 50

	// defaultReason annotates results whose upstream justification was
	// missing or not a string.
	defaultReason = "Relevant to your search"
)

// RateLimitedError is returned when a caller exhausted its search window.
// It unwraps to ErrRateLimited and carries how long to back off.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("service: rate limited, retry in %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// Completer produces a text completion for a prompt. Satisfied by the
// ranking client.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SearchService ranks recent book postings against a free-text query using
// an external model. Admission is rate limited per user because every call
// costs money upstream.
type SearchService struct {
	books     store.Books
	limiter   rate.Limiter
	completer Completer

	candidateLimit int
}

func NewSearchService(books store.Books, limiter rate.Limiter, completer Completer) *SearchService {
	return &SearchService{
		books:          books,
		limiter:        limiter,
		completer:      completer,
		candidateLimit: defaultCandidateLimit,
	}
}

// Search returns the recent books relevant to query, most relevant first,
// each annotated with the model's justification. A garbled upstream response
// degrades to an empty result, never an error; upstream transport failures
// do propagate, distinguished by kind.
func (s *SearchService) Search(ctx context.Context, userID, query string) ([]domain.RankedBook, error) {
	res, err := s.limiter.Allow(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		return nil, &RateLimitedError{RetryAfter: res.RetryAfter}
	}

	books, err := s.books.ListRecent(ctx, s.candidateLimit)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(books))
	for _, b := range books {
		candidates = append(candidates, b.Candidate())
	}
	if len(candidates) == 0 {
		return []domain.RankedBook{}, nil
	}

	raw, err := s.completer.Complete(ctx, buildRankingPrompt(query, candidates))
	if err != nil {
		return nil, err
	}

	ranking := parseRanking(raw)
	if len(ranking) == 0 {
		slogx.FromContext(ctx).Info("ranking yielded no matches", "user_id", userID, "candidates", len(candidates))
		return []domain.RankedBook{}, nil
	}

	return reorder(candidates, ranking), nil
}

// buildRankingPrompt embeds the query and every candidate into a single
// instruction. The response contract is spelled out explicitly because the
// parser on the other side is deliberately unforgiving about shape.
func buildRankingPrompt(query string, candidates []domain.Candidate) string {
	var b strings.Builder
	b.WriteString("You rank book postings by relevance to a reader's search query.\n")
	b.WriteString("Query: ")
	b.WriteString(query)
	b.WriteString("\n\nCandidates:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- id: %s, text: %s\n", c.ID, c.Text)
	}
	b.WriteString("\nRespond with ONLY a JSON array of objects {\"id\": string, \"reason\": string}, ")
	b.WriteString("ordered most relevant first. Include only relevant candidates and keep each ")
	b.WriteString("reason to one short sentence. Respond with [] if nothing is relevant.")
	return b.String()
}

type rankingEntry struct {
	id     string
	reason string
}

// parseRanking extracts the ordered (id, reason) list from the model's raw
// output. Any shape surprise degrades to zero matches: a confused model must
// read as "no results", never crash the request.
func parseRanking(raw string) []rankingEntry {
	cleaned := stripCodeFence(raw)

	var items []map[string]any
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil
	}

	entries := make([]rankingEntry, 0, len(items))
	for _, item := range items {
		id, ok := item["id"].(string)
		if !ok || id == "" {
			continue
		}
		reason, ok := item["reason"].(string)
		if !ok || reason == "" {
			reason = defaultReason
		}
		entries = append(entries, rankingEntry{id: id, reason: reason})
	}
	return entries
}

// stripCodeFence unwraps ```json ... ``` style markdown fencing that models
// add despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// reorder filters candidates down to the ranked ids and sorts them by
// ranking position. Candidates the model did not mention are dropped; ids
// the model invented have nothing to match and vanish.
func reorder(candidates []domain.Candidate, ranking []rankingEntry) []domain.RankedBook {
	position := make(map[string]int, len(ranking))
	reasons := make(map[string]string, len(ranking))
	for _, e := range ranking {
		if _, seen := position[e.id]; seen {
			continue // first mention wins
		}
		position[e.id] = len(position)
		reasons[e.id] = e.reason
	}

	out := make([]domain.RankedBook, len(position))
	matched := 0
	for _, c := range candidates {
		pos, ok := position[c.ID]
		if !ok {
			continue
		}
		out[pos] = domain.RankedBook{Candidate: c, Reason: reasons[c.ID]}
		matched++
	}

	// The model may rank ids that are not in the candidate set; squeeze out
	// the holes they leave while preserving order.
	if matched == len(out) {
		return out
	}
	packed := make([]domain.RankedBook, 0, matched)
	for _, r := range out {
		if r.ID != "" {
			packed = append(packed, r)
		}
	}
	return packed
}
