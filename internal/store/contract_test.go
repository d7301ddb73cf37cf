package store

import (
	"context"
	"testing"
	"time"

	"unisell/server/internal/models"
	"unisell/server/internal/utils"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return base.Add(time.Duration(sec) * time.Second)
}

func mustCreate(t *testing.T, s MessageStore, from, to, content string, created time.Time) models.Message {
	t.Helper()
	msg := models.Message{SenderID: from, ReceiverID: to, Content: content, CreatedAt: created}
	if err := s.Create(context.Background(), &msg); err != nil {
		t.Fatalf("Create %q failed: %v", content, err)
	}
	return msg
}

// runStoreContract exercises the MessageStore behaviour every backend must share
func runStoreContract(t *testing.T, newStore func(t *testing.T) MessageStore) {
	ctx := context.Background()

	t.Run("create assigns identity", func(t *testing.T) {
		s := newStore(t)
		a, b := utils.NewObjectID(), utils.NewObjectID()

		msg := models.Message{SenderID: a, ReceiverID: b, Content: "hi", IsRead: true, ClientID: "tok-1"}
		if err := s.Create(ctx, &msg); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if !utils.IsObjectID(msg.ID) {
			t.Fatalf("expected object id, got %q", msg.ID)
		}
		if msg.CreatedAt.IsZero() {
			t.Fatalf("expected CreatedAt to be set")
		}
		if msg.IsRead {
			t.Fatalf("new messages must be unread")
		}
		if msg.ClientID != "tok-1" {
			t.Fatalf("client id should be echoed, got %q", msg.ClientID)
		}
	})

	t.Run("find between is ascending in both directions", func(t *testing.T) {
		s := newStore(t)
		a, b, c := utils.NewObjectID(), utils.NewObjectID(), utils.NewObjectID()

		mustCreate(t, s, b, a, "third", at(3))
		mustCreate(t, s, a, b, "first", at(1))
		mustCreate(t, s, a, c, "elsewhere", at(2))
		mustCreate(t, s, b, a, "second", at(2))

		got, err := s.FindBetween(ctx, a, b, Page{})
		if err != nil {
			t.Fatalf("FindBetween failed: %v", err)
		}
		want := []string{"first", "second", "third"}
		if len(got) != len(want) {
			t.Fatalf("expected %d messages, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i].Content != want[i] {
				t.Fatalf("position %d: want %q, got %q", i, want[i], got[i].Content)
			}
		}

		reverse, err := s.FindBetween(ctx, b, a, Page{})
		if err != nil {
			t.Fatalf("FindBetween reversed failed: %v", err)
		}
		if len(reverse) != 3 || reverse[0].Content != "first" {
			t.Fatalf("pair lookup must be symmetric, got %+v", reverse)
		}
	})

	t.Run("find between pages newest window", func(t *testing.T) {
		s := newStore(t)
		a, b := utils.NewObjectID(), utils.NewObjectID()
		for i := 1; i <= 5; i++ {
			mustCreate(t, s, a, b, string(rune('a'+i-1)), at(i))
		}

		got, err := s.FindBetween(ctx, a, b, Page{Limit: 2})
		if err != nil {
			t.Fatalf("FindBetween failed: %v", err)
		}
		if len(got) != 2 || got[0].Content != "d" || got[1].Content != "e" {
			t.Fatalf("unexpected newest page: %+v", got)
		}

		got, err = s.FindBetween(ctx, a, b, Page{Limit: 2, Before: at(4)})
		if err != nil {
			t.Fatalf("FindBetween failed: %v", err)
		}
		if len(got) != 2 || got[0].Content != "b" || got[1].Content != "c" {
			t.Fatalf("unexpected older page: %+v", got)
		}
	})

	t.Run("latest per counterpart", func(t *testing.T) {
		s := newStore(t)
		me, b, c := utils.NewObjectID(), utils.NewObjectID(), utils.NewObjectID()

		mustCreate(t, s, me, b, "to b old", at(1))
		mustCreate(t, s, c, me, "from c", at(2))
		mustCreate(t, s, b, me, "from b new", at(3))
		mustCreate(t, s, b, c, "not mine", at(4))

		got, err := s.LatestPerCounterpart(ctx, me)
		if err != nil {
			t.Fatalf("LatestPerCounterpart failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 conversations, got %d", len(got))
		}
		if got[0].Content != "from b new" || got[1].Content != "from c" {
			t.Fatalf("unexpected order: %q, %q", got[0].Content, got[1].Content)
		}

		none, err := s.LatestPerCounterpart(ctx, utils.NewObjectID())
		if err != nil {
			t.Fatalf("LatestPerCounterpart failed: %v", err)
		}
		if len(none) != 0 {
			t.Fatalf("expected no conversations, got %d", len(none))
		}
	})

	t.Run("mark read is idempotent and scoped", func(t *testing.T) {
		s := newStore(t)
		me, b, c := utils.NewObjectID(), utils.NewObjectID(), utils.NewObjectID()

		mustCreate(t, s, b, me, "one", at(1))
		mustCreate(t, s, b, me, "two", at(2))
		mustCreate(t, s, me, b, "mine", at(3))
		mustCreate(t, s, c, me, "from c", at(4))

		counts, err := s.UnreadBySender(ctx, me)
		if err != nil {
			t.Fatalf("UnreadBySender failed: %v", err)
		}
		if counts[b] != 2 || counts[c] != 1 {
			t.Fatalf("unexpected unread counts: %v", counts)
		}

		n, err := s.MarkRead(ctx, b, me)
		if err != nil {
			t.Fatalf("MarkRead failed: %v", err)
		}
		if n != 2 {
			t.Fatalf("expected 2 updated, got %d", n)
		}

		n, err = s.MarkRead(ctx, b, me)
		if err != nil {
			t.Fatalf("second MarkRead failed: %v", err)
		}
		if n != 0 {
			t.Fatalf("second MarkRead should be a no-op, got %d", n)
		}

		thread, err := s.FindBetween(ctx, me, b, Page{})
		if err != nil {
			t.Fatalf("FindBetween failed: %v", err)
		}
		for _, m := range thread {
			if m.ReceiverID == me && !m.IsRead {
				t.Fatalf("message %q should be read", m.Content)
			}
			if m.SenderID == me && m.IsRead {
				t.Fatalf("outgoing message %q must not be touched", m.Content)
			}
		}

		counts, err = s.UnreadBySender(ctx, me)
		if err != nil {
			t.Fatalf("UnreadBySender failed: %v", err)
		}
		if counts[b] != 0 || counts[c] != 1 {
			t.Fatalf("unexpected unread counts after mark read: %v", counts)
		}
	})
}

// runDirectoryContract checks lookups against a directory seeded with known
func runDirectoryContract(t *testing.T, d Directory, known models.Account) {
	ctx := context.Background()

	ok, err := d.Exists(ctx, known.ID)
	if err != nil || !ok {
		t.Fatalf("Exists(known) = %v, %v", ok, err)
	}
	ok, err = d.Exists(ctx, utils.NewObjectID())
	if err != nil || ok {
		t.Fatalf("Exists(unknown) = %v, %v", ok, err)
	}

	missing := utils.NewObjectID()
	live, err := d.Existing(ctx, []string{known.ID, missing, "not-an-id"})
	if err != nil {
		t.Fatalf("Existing failed: %v", err)
	}
	if len(live) != 1 || !live[known.ID] {
		t.Fatalf("unexpected existing result: %+v", live)
	}

	got, err := d.Lookup(ctx, []string{known.ID, missing})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(got) != 1 || got[known.ID].Name != known.Name {
		t.Fatalf("unexpected lookup result: %+v", got)
	}
	if _, ok := got[missing]; ok {
		t.Fatalf("unknown ids must be absent")
	}
}
