package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lumohealth/coachd/internal/types"
)

func newFileStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := NewSQLiteStore(filepath.Join(t.TempDir(), "coachd.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func pendingDraft(id, userID string) types.WritebackDraft {
	return types.WritebackDraft{
		DraftID: id,
		UserID:  userID,
		Payload: json.RawMessage(`{"daily_log":{"date":"2026-08-30"}}`),
	}
}

func TestStore_InsertPendingDraft_Conflict(t *testing.T) {
	db := newFileStore(t)
	ctx := context.Background()

	if err := db.InsertPendingDraft(ctx, pendingDraft("d1", "u1")); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertPendingDraft(ctx, pendingDraft("d1", "u2")); err != ErrDraftExists {
		t.Errorf("expected ErrDraftExists, got %v", err)
	}
}

func TestStore_GetDraft_RoundTrip(t *testing.T) {
	db := newFileStore(t)
	ctx := context.Background()

	draft := pendingDraft("d1", "u1")
	draft.ContextText = "明天练腿"
	if err := db.InsertPendingDraft(ctx, draft); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetDraft(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.DraftPending {
		t.Errorf("expected pending status, got %q", got.Status)
	}
	if got.UserID != "u1" {
		t.Errorf("expected user u1, got %q", got.UserID)
	}
	if got.ContextText != "明天练腿" {
		t.Errorf("context text not preserved: %q", got.ContextText)
	}
	if string(got.Payload) != string(draft.Payload) {
		t.Errorf("payload not preserved verbatim: %s", got.Payload)
	}
}

func TestStore_CompleteDraft_CachesSummary(t *testing.T) {
	db := newFileStore(t)
	ctx := context.Background()

	if err := db.InsertPendingDraft(ctx, pendingDraft("d1", "u1")); err != nil {
		t.Fatal(err)
	}

	summary := types.WritebackSummary{DailyLogUpserted: true, GoalsUpserted: 2}
	if err := db.CompleteDraft(ctx, "d1", summary); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetDraft(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.DraftSuccess {
		t.Fatalf("expected success status, got %q", got.Status)
	}
	if got.Summary == nil || !got.Summary.DailyLogUpserted || got.Summary.GoalsUpserted != 2 {
		t.Errorf("cached summary mismatch: %+v", got.Summary)
	}
}

func TestStore_FailDraft_PreservesErrorText(t *testing.T) {
	db := newFileStore(t)
	ctx := context.Background()

	if err := db.InsertPendingDraft(ctx, pendingDraft("d1", "u1")); err != nil {
		t.Fatal(err)
	}
	if err := db.FailDraft(ctx, "d1", "insert diet record: disk I/O error"); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetDraft(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.DraftFailed {
		t.Fatalf("expected failed status, got %q", got.Status)
	}
	if got.Error != "insert diet record: disk I/O error" {
		t.Errorf("error text not preserved verbatim: %q", got.Error)
	}
	if got.Summary != nil {
		t.Error("failed draft must not carry a summary")
	}
}

// observedUpdatedAt reads the updated_at a takeover claim must be based on.
func observedUpdatedAt(t *testing.T, db *SQLiteStore, draftID string) time.Time {
	t.Helper()
	draft, err := db.GetDraft(context.Background(), draftID)
	if err != nil {
		t.Fatal(err)
	}
	return draft.UpdatedAt
}

func TestStore_TakeoverStaleDraft_FreshRowNotClaimed(t *testing.T) {
	db := newFileStore(t)
	ctx := context.Background()

	if err := db.InsertPendingDraft(ctx, pendingDraft("d1", "u1")); err != nil {
		t.Fatal(err)
	}
	observed := observedUpdatedAt(t, db, "d1")

	// Cutoff in the past: the row was just written, so it is fresh.
	won, err := db.TakeoverStaleDraft(ctx, "d1", observed, time.Now().UTC().Add(-15*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Error("fresh pending draft must not be claimable")
	}
}

func TestStore_TakeoverStaleDraft_OneWinner(t *testing.T) {
	db := newFileStore(t)
	ctx := context.Background()

	if err := db.InsertPendingDraft(ctx, pendingDraft("d1", "u1")); err != nil {
		t.Fatal(err)
	}

	// All claimers share one observation; the cutoff in the future makes it
	// immediately stale.
	observed := observedUpdatedAt(t, db, "d1")
	cutoff := time.Now().UTC().Add(time.Minute)

	const claimers = 8
	var wg sync.WaitGroup
	wins := make(chan bool, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := db.TakeoverStaleDraft(ctx, "d1", observed, cutoff)
			if err != nil {
				t.Error(err)
				return
			}
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly 1 takeover winner, got %d", winners)
	}
}

func TestStore_TakeoverStaleDraft_StaleObservationLoses(t *testing.T) {
	db := newFileStore(t)
	ctx := context.Background()

	if err := db.InsertPendingDraft(ctx, pendingDraft("d1", "u1")); err != nil {
		t.Fatal(err)
	}
	observed := observedUpdatedAt(t, db, "d1")
	cutoff := time.Now().UTC().Add(time.Minute)

	won, err := db.TakeoverStaleDraft(ctx, "d1", observed, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if !won {
		t.Fatal("first claim with a valid observation must win")
	}

	// The winner refreshed updated_at, so the same observation is now stale
	// and must lose regardless of cutoff.
	won, err = db.TakeoverStaleDraft(ctx, "d1", observed, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Error("claim based on a superseded observation must lose")
	}
}

func TestStore_TakeoverStaleDraft_SubSecondStaleness(t *testing.T) {
	db := newFileStore(t)
	ctx := context.Background()

	if err := db.InsertPendingDraft(ctx, pendingDraft("d1", "u1")); err != nil {
		t.Fatal(err)
	}
	observed := observedUpdatedAt(t, db, "d1")

	// A cutoff a few milliseconds after the write, within the same wall-clock
	// second, must still see the row as stale.
	time.Sleep(20 * time.Millisecond)
	won, err := db.TakeoverStaleDraft(ctx, "d1", observed, time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if !won {
		t.Error("pending draft past a sub-second grace must be claimable")
	}
}

func TestStore_TakeoverStaleDraft_TerminalRowNotClaimed(t *testing.T) {
	db := newFileStore(t)
	ctx := context.Background()

	if err := db.InsertPendingDraft(ctx, pendingDraft("d1", "u1")); err != nil {
		t.Fatal(err)
	}
	if err := db.CompleteDraft(ctx, "d1", types.WritebackSummary{}); err != nil {
		t.Fatal(err)
	}

	observed := observedUpdatedAt(t, db, "d1")
	won, err := db.TakeoverStaleDraft(ctx, "d1", observed, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Error("terminal draft must not be claimable")
	}
}

func TestStore_AppendAudit_AndPrune(t *testing.T) {
	db := newFileStore(t)
	ctx := context.Background()

	rec := types.AuditRecord{
		UserID:  "u1",
		Source:  "writeback_commit",
		Status:  "success",
		Summary: &types.WritebackSummary{DailyLogUpserted: true},
		Excerpt: "今天睡了7个小时",
	}
	if err := db.AppendAudit(ctx, rec); err != nil {
		t.Fatal(err)
	}

	pruned, err := db.PruneAudit(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 1 {
		t.Errorf("expected 1 pruned record, got %d", pruned)
	}
}

func TestStore_ChatMessages_RoundTrip(t *testing.T) {
	db := newFileStore(t)
	ctx := context.Background()

	for i, content := range []string{"hello", "hi there"} {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		if err := db.AppendChatMessage(ctx, types.ChatMessage{
			SessionID: "s1",
			UserID:    "u1",
			Role:      role,
			Content:   content,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatal(err)
		}
	}

	messages, err := db.ListChatMessages(ctx, "s1", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Content != "hello" || messages[1].Content != "hi there" {
		t.Errorf("messages out of order: %+v", messages)
	}
}

func TestStore_ChatMessages_SameTimestampKeepsAppendOrder(t *testing.T) {
	db := newFileStore(t)
	ctx := context.Background()

	// All four messages share one created_at, the normal case for a single
	// turn. The id tiebreak must keep append order on replay.
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	roles := []string{"user", "assistant", "tool", "assistant"}
	for i, role := range roles {
		if err := db.AppendChatMessage(ctx, types.ChatMessage{
			SessionID: "s1",
			UserID:    "u1",
			Role:      role,
			Content:   roles[i],
			CreatedAt: at,
		}); err != nil {
			t.Fatal(err)
		}
	}

	messages, err := db.ListChatMessages(ctx, "s1", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != len(roles) {
		t.Fatalf("expected %d messages, got %d", len(roles), len(messages))
	}
	for i, m := range messages {
		if m.Role != roles[i] {
			t.Errorf("position %d: got role %q, want %q", i, m.Role, roles[i])
		}
	}
}
