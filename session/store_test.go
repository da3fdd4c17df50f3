package session

import (
	"context"
	"crypto/sha256"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(client, "aks"), mr
}

func newTestSession(sessionID, principalID string, hash [32]byte, ttl time.Duration) *Session {
	now := time.Now().Unix()
	return &Session{
		SessionID:    sessionID,
		PrincipalID:  principalID,
		Fingerprint:  "fp-macbook-chrome",
		RefreshHash:  hash,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now + int64(ttl.Seconds()),
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	hash := sha256.Sum256([]byte("secret-1"))
	sess := newTestSession("sid-1", "p-1", hash, time.Hour)

	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.PrincipalID != "p-1" || got.Fingerprint != "fp-macbook-chrome" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.RefreshHash != hash {
		t.Fatal("refresh hash mismatch after round trip")
	}

	ids, err := store.ActiveSessionIDs(ctx, "p-1")
	if err != nil || len(ids) != 1 || ids[0] != "sid-1" {
		t.Fatalf("unexpected index: %v, %v", ids, err)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	if err != redis.Nil {
		t.Fatalf("expected redis.Nil, got %v", err)
	}
}

func TestGetExpiredByRecordedTime(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	hash := sha256.Sum256([]byte("s"))
	sess := newTestSession("sid-1", "p-1", hash, time.Hour)
	sess.ExpiresAt = time.Now().Unix() - 10 // wall clock already past expiry

	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Get(ctx, "sid-1"); err != redis.Nil {
		t.Fatalf("expected redis.Nil for expired session, got %v", err)
	}
}

func TestRotateSwapsHashAndBumpsActivity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	oldHash := sha256.Sum256([]byte("old"))
	newHash := sha256.Sum256([]byte("new"))

	sess := newTestSession("sid-1", "p-1", oldHash, time.Hour)
	sess.LastActivity = time.Now().Unix() - 600
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	status, err := store.RotateRefreshHash(ctx, "sid-1", oldHash, newHash)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if status != RotateOK {
		t.Fatalf("status = %v, want RotateOK", status)
	}

	got, err := store.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("Get after rotate: %v", err)
	}
	if got.RefreshHash != newHash {
		t.Fatal("hash not swapped")
	}
	if got.LastActivity <= sess.LastActivity {
		t.Fatalf("last activity not bumped: %d <= %d", got.LastActivity, sess.LastActivity)
	}
	if got.CreatedAt != sess.CreatedAt || got.ExpiresAt != sess.ExpiresAt {
		t.Fatal("rotation must not touch created/expires")
	}
}

func TestRotateReuseDestroysSession(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	liveHash := sha256.Sum256([]byte("live"))
	staleHash := sha256.Sum256([]byte("stale"))
	nextHash := sha256.Sum256([]byte("next"))

	sess := newTestSession("sid-1", "p-1", liveHash, time.Hour)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	status, err := store.RotateRefreshHash(ctx, "sid-1", staleHash, nextHash)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if status != RotateReuse {
		t.Fatalf("status = %v, want RotateReuse", status)
	}

	// Whole lineage burned: blob gone, index entry gone.
	if _, err := store.Get(ctx, "sid-1"); err != redis.Nil {
		t.Fatalf("session must be destroyed, got %v", err)
	}
	ids, _ := store.ActiveSessionIDs(ctx, "p-1")
	if len(ids) != 0 {
		t.Fatalf("index must be cleaned, got %v", ids)
	}
}

func TestRotateMissingSession(t *testing.T) {
	store, _ := newTestStore(t)

	h := sha256.Sum256([]byte("x"))
	status, err := store.RotateRefreshHash(context.Background(), "ghost", h, h)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if status != RotateNotFound {
		t.Fatalf("status = %v, want RotateNotFound", status)
	}
}

func TestRotateExpiredSession(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	hash := sha256.Sum256([]byte("s"))
	sess := newTestSession("sid-1", "p-1", hash, time.Hour)
	sess.ExpiresAt = time.Now().Unix() - 1
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	status, err := store.RotateRefreshHash(ctx, "sid-1", hash, hash)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if status != RotateExpired {
		t.Fatalf("status = %v, want RotateExpired", status)
	}
	ids, _ := store.ActiveSessionIDs(ctx, "p-1")
	if len(ids) != 0 {
		t.Fatalf("expired session must be unindexed, got %v", ids)
	}
}

func TestRotateConcurrentSingleWinner(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	oldHash := sha256.Sum256([]byte("shared"))
	sess := newTestSession("sid-1", "p-1", oldHash, time.Hour)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	const workers = 100

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		rotated int
		reused  int
		other   int
	)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start

			next := sha256.Sum256([]byte{byte(n), byte(n >> 8)})
			status, err := store.RotateRefreshHash(ctx, "sid-1", oldHash, next)
			if err != nil {
				t.Errorf("worker %d: %v", n, err)
				return
			}

			mu.Lock()
			switch status {
			case RotateOK:
				rotated++
			case RotateReuse, RotateNotFound:
				reused++
			default:
				other++
			}
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()

	if rotated != 1 {
		t.Fatalf("exactly one rotation must win, got %d (reused=%d other=%d)", rotated, reused, other)
	}
	if other != 0 {
		t.Fatalf("unexpected statuses: %d", other)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	hash := sha256.Sum256([]byte("s"))
	sess := newTestSession("sid-1", "p-1", hash, time.Hour)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Delete(ctx, "sid-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "sid-1"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}

	if _, err := store.Get(ctx, "sid-1"); err != redis.Nil {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestDeleteAllForPrincipal(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, sid := range []string{"a", "b", "c"} {
		hash := sha256.Sum256([]byte(sid))
		if err := store.Save(ctx, newTestSession(sid, "p-1", hash, time.Hour), time.Hour); err != nil {
			t.Fatalf("Save %s: %v", sid, err)
		}
	}
	otherHash := sha256.Sum256([]byte("other"))
	if err := store.Save(ctx, newTestSession("z", "p-2", otherHash, time.Hour), time.Hour); err != nil {
		t.Fatalf("Save z: %v", err)
	}

	deleted, err := store.DeleteAllForPrincipal(ctx, "p-1")
	if err != nil {
		t.Fatalf("DeleteAllForPrincipal: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("deleted = %d, want 3", deleted)
	}

	count, _ := store.ActiveSessionCount(ctx, "p-1")
	if count != 0 {
		t.Fatalf("p-1 count = %d", count)
	}

	// Unrelated principal untouched.
	if _, err := store.Get(ctx, "z"); err != nil {
		t.Fatalf("p-2 session lost: %v", err)
	}
}

func TestGetManySkipsMissingAndExpired(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	live := newTestSession("live", "p-1", sha256.Sum256([]byte("a")), time.Hour)
	dead := newTestSession("dead", "p-1", sha256.Sum256([]byte("b")), time.Hour)
	dead.ExpiresAt = time.Now().Unix() - 1

	if err := store.Save(ctx, live, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, dead, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	sessions, err := store.GetMany(ctx, []string{"live", "dead", "ghost"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(sessions) != 1 || sessions[0].SessionID != "live" {
		t.Fatalf("unexpected result: %+v", sessions)
	}
}

func TestEncodeDecodeRejectsCorruption(t *testing.T) {
	hash := sha256.Sum256([]byte("s"))
	sess := newTestSession("sid", "p-1", hash, time.Hour)

	data, err := Encode(sess)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := Decode(data[:len(data)-1]); err == nil {
		t.Fatal("truncated blob must fail")
	}
	if _, err := Decode(append([]byte{}, 99)); err == nil {
		t.Fatal("bad version must fail")
	}
	if _, err := Decode(append(data, 0)); err == nil {
		t.Fatal("trailing bytes must fail")
	}
}
