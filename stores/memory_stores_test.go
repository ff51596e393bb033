package stores

import (
	"context"
	"testing"
	"time"

	"github.com/oarkflow/entitlement"
)

func TestMemoryIdentityStoreReturnsCopies(t *testing.T) {
	store := NewMemoryIdentityStore()
	ctx := context.Background()

	if err := store.PutSubject(ctx, &entitlement.Subject{ID: "user-1", Roles: []string{"Admin"}}); err != nil {
		t.Fatalf("put subject: %v", err)
	}

	first, err := store.FindSubject(ctx, "user-1")
	if err != nil {
		t.Fatalf("find subject: %v", err)
	}
	first.ID = "mutated"

	second, err := store.FindSubject(ctx, "user-1")
	if err != nil {
		t.Fatalf("find subject: %v", err)
	}
	if second.ID != "user-1" {
		t.Fatal("stored subject leaked through the returned pointer")
	}
}

func TestMemoryLicenseStoreAbsentIsNil(t *testing.T) {
	store := NewMemoryLicenseStore()
	ctx := context.Background()

	got, err := store.FindByContentID(ctx, "missing")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for absent content id")
	}

	record := &entitlement.LicenseRecord{
		ContentID:      "doc-1",
		OwnerSubjectID: "user-1",
		CreatedAt:      time.Now(),
		ExpiryAt:       time.Now().Add(time.Hour),
	}
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = store.FindByContentID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil || got.OwnerSubjectID != "user-1" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestMemoryRuleStoreGroupsByContent(t *testing.T) {
	store := NewMemoryRuleStore()
	ctx := context.Background()

	_ = store.PutRule(ctx, &entitlement.Rule{ContentID: "doc-1", RequiredRole: "Admin", RequiredPermission: "LICENSE_ACCESS"})
	_ = store.PutRule(ctx, &entitlement.Rule{ContentID: "doc-1", RequiredRole: "Premium User", RequiredPermission: "LICENSE_ACCESS"})

	rules, err := store.FindRulesByContentID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("find rules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}

	rules, err = store.FindRulesByContentID(ctx, "doc-2")
	if err != nil {
		t.Fatalf("find rules: %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("expected no rules, got %d", len(rules))
	}
}

func TestMemoryRoleMembershipStore(t *testing.T) {
	store := NewMemoryRoleMembershipStore()
	ctx := context.Background()

	if err := store.AssignRole(ctx, "user-1", "Premium User"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	roles, err := store.ListRoles(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(roles) != 1 || roles[0] != "Premium User" {
		t.Fatalf("unexpected roles: %v", roles)
	}

	if err := store.RevokeRole(ctx, "user-1", "Premium User"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	roles, _ = store.ListRoles(ctx, "user-1")
	if len(roles) != 0 {
		t.Fatalf("expected no roles, got %v", roles)
	}

	// revoking for an unknown subject is a no-op
	if err := store.RevokeRole(ctx, "ghost", "Admin"); err != nil {
		t.Fatalf("revoke unknown subject: %v", err)
	}
}

func TestMemoryAuditStoreFilters(t *testing.T) {
	store := NewMemoryAuditStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []*entitlement.AuditEntry{
		{ID: "1", Timestamp: base, SubjectID: "user-1", ContentID: "doc-1", Eligible: true},
		{ID: "2", Timestamp: base.Add(time.Minute), SubjectID: "user-2", ContentID: "doc-1", Eligible: false},
		{ID: "3", Timestamp: base.Add(2 * time.Minute), SubjectID: "user-1", ContentID: "doc-2", Eligible: true},
	}
	for _, entry := range entries {
		if err := store.LogDecision(ctx, entry); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	got, err := store.GetDecisionLog(ctx, entitlement.AuditFilter{SubjectID: "user-1"})
	if err != nil {
		t.Fatalf("get log: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries for user-1, got %d", len(got))
	}

	got, _ = store.GetDecisionLog(ctx, entitlement.AuditFilter{ContentID: "doc-1", Limit: 1})
	if len(got) != 1 {
		t.Fatalf("expected limit to cap results, got %d", len(got))
	}

	got, _ = store.GetDecisionLog(ctx, entitlement.AuditFilter{StartTime: base.Add(90 * time.Second)})
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("unexpected time filtered entries: %+v", got)
	}
}
