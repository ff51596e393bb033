package entitlement

import (
	"context"
	"testing"
	"time"
)

func TestMemoryDecisionCache(t *testing.T) {
	cache := NewMemoryDecisionCache()

	if _, ok := cache.Get("doc-1"); ok {
		t.Fatal("expected miss on empty cache")
	}

	decision := &EligibilityDecision{ContentID: "doc-1", SubjectID: "alice", Eligible: true, Source: SourceRBAC}
	cache.Put("doc-1", decision)

	got, ok := cache.Get("doc-1")
	if !ok {
		t.Fatal("expected hit after put")
	}
	if got.SubjectID != "alice" || !got.Eligible {
		t.Fatalf("unexpected cached decision: %+v", got)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", cache.Len())
	}

	cache.Invalidate("doc-1")
	if _, ok := cache.Get("doc-1"); ok {
		t.Fatal("expected miss after invalidate")
	}
}

func TestRistrettoDecisionCacheReadYourWrite(t *testing.T) {
	cache, err := NewRistrettoDecisionCache(0, 0, 0)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	defer cache.Close()

	decision := &EligibilityDecision{
		ContentID:      "doc-1",
		Source:         SourceLicense,
		OwnerSubjectID: "alice",
		ExpiryAt:       time.Now().Add(time.Hour),
		Eligible:       true,
	}
	cache.Put("doc-1", decision)

	got, ok := cache.Get("doc-1")
	if !ok {
		t.Fatal("expected a put to be visible to the next get")
	}
	if got.OwnerSubjectID != "alice" {
		t.Fatalf("unexpected cached decision: %+v", got)
	}

	cache.Invalidate("doc-1")
	if _, ok := cache.Get("doc-1"); ok {
		t.Fatal("expected miss after invalidate")
	}
}

func TestEngineWithRistrettoCache(t *testing.T) {
	cache, err := NewRistrettoDecisionCache(0, 0, 0)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	defer cache.Close()

	identity := newFakeIdentity()
	licenses := newFakeLicenses()
	rules := newFakeRules()
	engine, err := NewEngine(identity, licenses, rules, WithDecisionCache(cache))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	ctx := context.Background()
	if _, err := engine.CreateLicense(ctx, "doc-1", "alice"); err != nil {
		t.Fatalf("create license: %v", err)
	}
	findsAfterCreate := licenses.findCalls

	eligible, err := engine.IsEligible(ctx, "alice", "doc-1")
	if err != nil {
		t.Fatalf("is eligible: %v", err)
	}
	if !eligible {
		t.Fatal("expected the owner to be eligible")
	}
	if licenses.findCalls != findsAfterCreate {
		t.Fatal("expected the create-time cache entry to serve the read")
	}
}
