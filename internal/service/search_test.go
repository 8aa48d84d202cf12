package service

import (
	"context"
	"testing"
	"time"

	"github.com/bookery-social/bookery/internal/domain"
	"github.com/bookery-social/bookery/internal/rank"
	"github.com/bookery-social/bookery/internal/rate"
	"github.com/bookery-social/bookery/internal/store"
	"github.com/bookery-social/bookery/internal/store/drivers/sqlite"
	"github.com/bookery-social/bookery/pkg/idx"

	"github.com/stretchr/testify/require"
)

// fakeCompleter returns a canned response and records its prompts.
type fakeCompleter struct {
	response string
	err      error
	prompts  []string
}

func (c *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	return c.response, c.err
}

func newSearchFixture(t *testing.T, completer *fakeCompleter) (*SearchService, store.Store, []domain.Book) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	owner := domain.User{
		ID:           idx.New().String(),
		Handle:       "ada",
		Email:        "ada@example.com",
		PasswordHash: "$argon2id$test",
	}
	require.NoError(t, st.Users().CreateUser(ctx, owner))

	books := []domain.Book{
		{ID: "b1", OwnerID: owner.ID, Title: "Dune", Summary: "desert politics"},
		{ID: "b2", OwnerID: owner.ID, Title: "Hyperion", Summary: "pilgrim tales"},
		{ID: "b3", OwnerID: owner.ID, Title: "Solaris", Summary: "sentient ocean"},
	}
	for _, b := range books {
		require.NoError(t, st.Books().CreateBook(ctx, b))
	}

	limiter := rate.NewMemoryLimiter(100, time.Minute)
	return NewSearchService(st.Books(), limiter, completer), st, books
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("reorders candidates by upstream ranking", func(t *testing.T) {
		completer := &fakeCompleter{
			response: `[{"id":"b3","reason":"ocean themes"},{"id":"b1","reason":"classic"}]`,
		}
		svc, _, _ := newSearchFixture(t, completer)

		results, err := svc.Search(ctx, "alice", "strange worlds")
		require.NoError(t, err)
		require.Len(t, results, 2)
		require.Equal(t, "b3", results[0].ID)
		require.Equal(t, "ocean themes", results[0].Reason)
		require.Equal(t, "b1", results[1].ID)
		require.Equal(t, "classic", results[1].Reason)

		require.Len(t, completer.prompts, 1)
		require.Contains(t, completer.prompts[0], "strange worlds")
		require.Contains(t, completer.prompts[0], "Dune")
	})

	t.Run("code-fenced response still parses", func(t *testing.T) {
		completer := &fakeCompleter{
			response: "```json\n[{\"id\":\"b2\",\"reason\":\"fits\"}]\n```",
		}
		svc, _, _ := newSearchFixture(t, completer)

		results, err := svc.Search(ctx, "alice", "pilgrims")
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, "b2", results[0].ID)
	})

	t.Run("garbage degrades to empty results", func(t *testing.T) {
		completer := &fakeCompleter{response: "not json"}
		svc, _, _ := newSearchFixture(t, completer)

		results, err := svc.Search(ctx, "alice", "anything")
		require.NoError(t, err)
		require.Empty(t, results)
	})

	t.Run("non-array JSON degrades to empty results", func(t *testing.T) {
		completer := &fakeCompleter{response: `{"id":"b1"}`}
		svc, _, _ := newSearchFixture(t, completer)

		results, err := svc.Search(ctx, "alice", "anything")
		require.NoError(t, err)
		require.Empty(t, results)
	})

	t.Run("entries without an id are dropped, missing reasons defaulted", func(t *testing.T) {
		completer := &fakeCompleter{
			response: `[{"reason":"no id"},{"id":"b1"},{"id":42,"reason":"bad id"}]`,
		}
		svc, _, _ := newSearchFixture(t, completer)

		results, err := svc.Search(ctx, "alice", "anything")
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, "b1", results[0].ID)
		require.Equal(t, defaultReason, results[0].Reason)
	})

	t.Run("repeated ids keep their first mention", func(t *testing.T) {
		completer := &fakeCompleter{
			response: `[{"id":"b1","reason":"first"},{"id":"b1","reason":"second"},{"id":"b3","reason":"third"}]`,
		}
		svc, _, _ := newSearchFixture(t, completer)

		results, err := svc.Search(ctx, "alice", "anything")
		require.NoError(t, err)
		require.Len(t, results, 2)
		require.Equal(t, "b1", results[0].ID)
		require.Equal(t, "first", results[0].Reason)
		require.Equal(t, "b3", results[1].ID)
	})

	t.Run("invented ids are ignored", func(t *testing.T) {
		completer := &fakeCompleter{
			response: `[{"id":"b9","reason":"hallucinated"},{"id":"b2","reason":"real"}]`,
		}
		svc, _, _ := newSearchFixture(t, completer)

		results, err := svc.Search(ctx, "alice", "anything")
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, "b2", results[0].ID)
	})

	t.Run("empty candidate set short-circuits", func(t *testing.T) {
		completer := &fakeCompleter{response: "[]"}
		svc, _, _ := newSearchFixture(t, completer)

		// Point at a store with no books.
		empty, err := sqlite.NewStore(":memory:")
		require.NoError(t, err)
		require.NoError(t, empty.ApplyMigrations())
		t.Cleanup(func() { _ = empty.Close() })
		svc.books = empty.Books()

		results, err := svc.Search(ctx, "alice", "anything")
		require.NoError(t, err)
		require.Empty(t, results)
		require.Empty(t, completer.prompts)
	})

	t.Run("upstream failures propagate by kind", func(t *testing.T) {
		completer := &fakeCompleter{err: rank.ErrUpstreamAuth}
		svc, _, _ := newSearchFixture(t, completer)

		_, err := svc.Search(ctx, "alice", "anything")
		require.ErrorIs(t, err, rank.ErrUpstreamAuth)
	})

	t.Run("rate limit rejects with retry hint and isolates users", func(t *testing.T) {
		completer := &fakeCompleter{response: "[]"}
		svc, _, _ := newSearchFixture(t, completer)
		svc.limiter = rate.NewMemoryLimiter(1, time.Minute)

		_, err := svc.Search(ctx, "alice", "anything")
		require.NoError(t, err)

		_, err = svc.Search(ctx, "alice", "anything")
		require.ErrorIs(t, err, ErrRateLimited)

		var rle *RateLimitedError
		require.ErrorAs(t, err, &rle)
		require.Positive(t, rle.RetryAfter)

		// A different user is unaffected.
		_, err = svc.Search(ctx, "bob", "anything")
		require.NoError(t, err)
	})
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"[]", "[]"},
		{"```json\n[]\n```", "[]"},
		{"```\n[]\n```", "[]"},
		{"  ```json\n[1,2]\n``` ", "[1,2]"},
		{"no fences at all", "no fences at all"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, stripCodeFence(tc.in), "input %q", tc.in)
	}
}
