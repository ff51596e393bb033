package entitlement

import (
	"context"
	"testing"
	"time"
)

const sampleYAML = `
version: 1
subjects:
  - id: alice
    roles: [Premium User]
  - id: bob
roles:
  - name: Admin
    permissions: [LICENSE_ACCESS]
  - name: Premium User
    permissions: [LICENSE_ACCESS]
rules:
  - content_id: doc-premium
    required_role: Premium User
    required_permission: LICENSE_ACCESS
licenses:
  - content_id: doc-owned
    owner_subject_id: bob
memberships:
  - subject_id: bob
    role_name: Admin
engine:
  privileged_roles: [Admin, Premium User]
  required_permission: LICENSE_ACCESS
  license_validity_days: 30
`

func TestConfigLoadYAML(t *testing.T) {
	loader := NewConfigLoader()
	cfg, err := loader.LoadYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	stats := cfg.Stats()
	if stats.Subjects != 2 || stats.Roles != 2 || stats.Rules != 1 || stats.Licenses != 1 || stats.Memberships != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if cfg.Engine.LicenseValidityDays != 30 {
		t.Fatalf("expected 30 validity days, got %d", cfg.Engine.LicenseValidityDays)
	}
}

func TestConfigRoundtripJSON(t *testing.T) {
	loader := NewConfigLoader()
	cfg, err := loader.LoadYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}

	data, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	back, err := loader.LoadJSON(data)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if back.Stats() != cfg.Stats() {
		t.Fatalf("stats changed over the roundtrip: %+v vs %+v", back.Stats(), cfg.Stats())
	}
}

func TestConfigValidateRejectsDuplicates(t *testing.T) {
	cfg := &Config{
		Roles: []*Role{{Name: "Admin"}, {Name: "Admin"}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected duplicate role to be rejected")
	}

	cfg = &Config{
		Licenses: []*LicenseRecord{
			{ContentID: "doc-1", OwnerSubjectID: "a"},
			{ContentID: "doc-1", OwnerSubjectID: "b"},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected duplicate license to be rejected")
	}

	cfg = &Config{
		Rules: []*Rule{{ContentID: "doc-1"}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected incomplete rule to be rejected")
	}
}

// configIdentity adds the seeding surface on top of the evaluation fakes.
type configIdentity struct {
	*fakeIdentity
}

func (c *configIdentity) PutSubject(ctx context.Context, s *Subject) error {
	c.subjects[s.ID] = s
	return nil
}

func (c *configIdentity) PutRole(ctx context.Context, r *Role) error {
	c.roles[r.Name] = r
	return nil
}

type configRules struct {
	*fakeRules
}

func (c *configRules) PutRule(ctx context.Context, r *Rule) error {
	c.rules[r.ContentID] = append(c.rules[r.ContentID], r)
	return nil
}

func TestApplyConfigSeedsEngine(t *testing.T) {
	ctx := context.Background()
	identity := &configIdentity{fakeIdentity: newFakeIdentity()}
	licenses := newFakeLicenses()
	rules := &configRules{fakeRules: newFakeRules()}
	membership := &fakeMembership{}

	engine, err := NewEngine(identity, licenses, rules, WithRoleMembershipStore(membership))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	loader := NewConfigLoader()
	cfg, err := loader.LoadYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if err := engine.ApplyConfig(ctx, cfg); err != nil {
		t.Fatalf("apply config: %v", err)
	}

	// alice gets through the rule for doc-premium via her seeded role
	eligible, err := engine.IsEligible(ctx, "alice", "doc-premium")
	if err != nil {
		t.Fatalf("is eligible: %v", err)
	}
	if !eligible {
		t.Fatal("expected alice to be eligible for doc-premium")
	}

	// bob owns the seeded license
	eligible, err = engine.IsEligible(ctx, "bob", "doc-owned")
	if err != nil {
		t.Fatalf("is eligible: %v", err)
	}
	if !eligible {
		t.Fatal("expected bob to own the seeded license")
	}

	// the seeded license got a default expiry in the future
	record, err := engine.GetLicense(ctx, "doc-owned")
	if err != nil {
		t.Fatalf("get license: %v", err)
	}
	if !record.ExpiryAt.After(time.Now()) {
		t.Fatalf("expected a future expiry, got %v", record.ExpiryAt)
	}

	// membership from config reaches the membership store
	roles, err := membership.ListRoles(ctx, "bob")
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	if len(roles) != 1 || roles[0] != "Admin" {
		t.Fatalf("unexpected membership roles: %v", roles)
	}
}

func TestApplyConfigSwapsRistrettoCache(t *testing.T) {
	ctx := context.Background()
	identity := newFakeIdentity()
	licenses := newFakeLicenses()
	rules := newFakeRules()

	engine, err := NewEngine(identity, licenses, rules)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	cfg := &Config{Engine: EngineConfig{RistrettoNumCounters: 1e4, RistrettoMaxCost: 1e3, RistrettoBuffer: 64}}
	if err := engine.ApplyConfig(ctx, cfg); err != nil {
		t.Fatalf("apply config: %v", err)
	}

	if _, ok := engine.cache.(*RistrettoDecisionCache); !ok {
		t.Fatalf("expected a ristretto cache, got %T", engine.cache)
	}
}
