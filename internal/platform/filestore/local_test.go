package filestore

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestLocalRoundTrip(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "http://localhost:7000/files", time.Minute, "secret")
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	ctx := context.Background()
	key := "library/1/reglamento.pdf"

	if err := store.Put(ctx, key, "application/pdf", bytes.NewReader([]byte("%PDF-1.4"))); err != nil {
		t.Fatalf("put: %v", err)
	}
	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "%PDF-1.4" {
		t.Fatalf("unexpected content %q", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Open(ctx, key); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalSignedURL(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "http://localhost:7000/files", time.Minute, "secret")
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	raw, err := store.URL(context.Background(), "receipts/abc.pdf")
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if !strings.HasPrefix(raw, "http://localhost:7000/files/receipts/abc.pdf?") {
		t.Fatalf("unexpected url %s", raw)
	}
	u, _ := url.Parse(raw)
	q := u.Query()
	if !store.Verify("receipts/abc.pdf", q.Get("expires"), q.Get("signature")) {
		t.Fatalf("signature should verify")
	}
	if store.Verify("receipts/other.pdf", q.Get("expires"), q.Get("signature")) {
		t.Fatalf("signature must be bound to the key")
	}

	now = now.Add(2 * time.Minute)
	if store.Verify("receipts/abc.pdf", q.Get("expires"), q.Get("signature")) {
		t.Fatalf("expired link should not verify")
	}
}

func TestObjectKeyRejectsTraversal(t *testing.T) {
	key := ObjectKey("library/3", "../../etc/passwd")
	if strings.Contains(key, "..") || !strings.HasPrefix(key, "library/3/") || !strings.HasSuffix(key, "-passwd") {
		t.Fatalf("unexpected key %s", key)
	}
	if _, err := cleanKey("../secret"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}
