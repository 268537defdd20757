package identity

import (
	"testing"
	"time"
)

func TestSessionStoreLifecycle(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewSessionStore().WithClock(func() time.Time { return now })

	store.Put("tok-1", true, time.Hour)

	if !store.Verified("tok-1") {
		t.Fatal("expected verified session")
	}
	if store.Verified("tok-unknown") {
		t.Fatal("unknown token must not be verified")
	}

	store.Put("tok-2", false, time.Hour)
	if store.Verified("tok-2") {
		t.Fatal("unverified session must not pass")
	}

	now = now.Add(2 * time.Hour)
	if store.Verified("tok-1") {
		t.Fatal("expired session must not pass")
	}
	if _, ok := store.Get("tok-1"); ok {
		t.Fatal("expired session should be dropped")
	}

	store.Put("tok-3", true, time.Hour)
	store.Drop("tok-3")
	if store.Verified("tok-3") {
		t.Fatal("dropped session must not pass")
	}
}
