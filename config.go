package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the declarative seed + tuning surface for an engine. Subjects,
// roles, rules, licenses and memberships are reference data normally
// provisioned externally; config-driven seeding exists for bootstrap,
// demos and tests.
type Config struct {
	Version     uint16           `json:"version" yaml:"version"`
	Subjects    []*Subject       `json:"subjects" yaml:"subjects"`
	Roles       []*Role          `json:"roles" yaml:"roles"`
	Rules       []*Rule          `json:"rules" yaml:"rules"`
	Licenses    []*LicenseRecord `json:"licenses" yaml:"licenses"`
	Memberships []RoleMembership `json:"memberships" yaml:"memberships"`
	Engine      EngineConfig     `json:"engine" yaml:"engine"`
}

// RoleMembership assigns a role to a subject by name.
type RoleMembership struct {
	SubjectID string `json:"subject_id" yaml:"subject_id"`
	RoleName  string `json:"role_name" yaml:"role_name"`
}

// EngineConfig carries the tunable engine knobs.
type EngineConfig struct {
	PrivilegedRoles      []string `json:"privileged_roles" yaml:"privileged_roles"`
	RequiredPermission   string   `json:"required_permission" yaml:"required_permission"`
	LicenseValidityDays  int      `json:"license_validity_days" yaml:"license_validity_days"`
	RistrettoNumCounters int64    `json:"ristretto_num_counters" yaml:"ristretto_num_counters"`
	RistrettoMaxCost     int64    `json:"ristretto_max_cost" yaml:"ristretto_max_cost"`
	RistrettoBuffer      int64    `json:"ristretto_buffer" yaml:"ristretto_buffer"`
}

// ConfigLoader loads configuration from the supported formats.
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToYAML exports config to YAML.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports config to indented JSON.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Validate reports structural problems in the config.
func (c *Config) Validate() error {
	seenRoles := make(map[string]bool)
	for _, r := range c.Roles {
		if r.Name == "" {
			return fmt.Errorf("role name is required")
		}
		if seenRoles[r.Name] {
			return fmt.Errorf("duplicate role %s", r.Name)
		}
		seenRoles[r.Name] = true
	}
	seenSubjects := make(map[string]bool)
	for _, s := range c.Subjects {
		if s.ID == "" {
			return fmt.Errorf("subject id is required")
		}
		if seenSubjects[s.ID] {
			return fmt.Errorf("duplicate subject %s", s.ID)
		}
		seenSubjects[s.ID] = true
	}
	seenLicenses := make(map[string]bool)
	for _, lic := range c.Licenses {
		if lic.ContentID == "" || lic.OwnerSubjectID == "" {
			return fmt.Errorf("license content id and owner are required")
		}
		if seenLicenses[lic.ContentID] {
			return fmt.Errorf("duplicate license for content %s", lic.ContentID)
		}
		seenLicenses[lic.ContentID] = true
	}
	for _, rule := range c.Rules {
		if rule.ContentID == "" || rule.RequiredRole == "" || rule.RequiredPermission == "" {
			return fmt.Errorf("rule content id, role and permission are required")
		}
	}
	for _, m := range c.Memberships {
		if m.SubjectID == "" || m.RoleName == "" {
			return fmt.Errorf("membership subject id and role name are required")
		}
	}
	if c.Engine.LicenseValidityDays < 0 {
		return fmt.Errorf("license validity days must not be negative")
	}
	return nil
}

// Seeding contracts. Stores that can ingest config data implement these;
// the engine's read contracts stay read-only.
type (
	SubjectSeeder interface {
		PutSubject(ctx context.Context, s *Subject) error
	}
	RoleSeeder interface {
		PutRole(ctx context.Context, r *Role) error
	}
	RuleSeeder interface {
		PutRule(ctx context.Context, r *Rule) error
	}
)

// ApplyConfig applies engine settings and seeds the stores that support
// seeding. Licenses go through the license store directly (bootstrap data,
// not a create operation, so an existing record is overwritten) and the
// matching cache entries are refreshed.
//
// ApplyConfig is a bootstrap operation: it rewrites the engine knobs and
// may swap the decision cache without synchronizing against concurrent
// evaluations, so it must complete before the engine serves traffic.
func (e *Engine) ApplyConfig(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if len(cfg.Engine.PrivilegedRoles) > 0 {
		e.privilegedRoles = append([]string(nil), cfg.Engine.PrivilegedRoles...)
	}
	if cfg.Engine.RequiredPermission != "" {
		e.requiredPermission = cfg.Engine.RequiredPermission
	}
	if cfg.Engine.LicenseValidityDays > 0 {
		e.licenseValidity = time.Duration(cfg.Engine.LicenseValidityDays) * 24 * time.Hour
	}
	if cfg.Engine.RistrettoNumCounters > 0 {
		cache, err := NewRistrettoDecisionCache(cfg.Engine.RistrettoNumCounters, cfg.Engine.RistrettoMaxCost, cfg.Engine.RistrettoBuffer)
		if err != nil {
			return fmt.Errorf("configure ristretto cache: %w", err)
		}
		e.cache = cache
	}

	if seeder, ok := e.identity.(RoleSeeder); ok {
		for _, r := range cfg.Roles {
			if err := seeder.PutRole(ctx, r); err != nil {
				return fmt.Errorf("seed role %s: %w", r.Name, err)
			}
		}
	}
	if seeder, ok := e.identity.(SubjectSeeder); ok {
		for _, s := range cfg.Subjects {
			if err := seeder.PutSubject(ctx, s); err != nil {
				return fmt.Errorf("seed subject %s: %w", s.ID, err)
			}
		}
	}
	if seeder, ok := e.rules.(RuleSeeder); ok {
		for _, r := range cfg.Rules {
			if err := seeder.PutRule(ctx, r); err != nil {
				return fmt.Errorf("seed rule for %s: %w", r.ContentID, err)
			}
		}
	}
	if e.membership != nil {
		for _, m := range cfg.Memberships {
			if err := e.membership.AssignRole(ctx, m.SubjectID, m.RoleName); err != nil {
				return fmt.Errorf("assign role %s to %s: %w", m.RoleName, m.SubjectID, err)
			}
		}
	}
	for _, lic := range cfg.Licenses {
		record := *lic
		if record.CreatedAt.IsZero() {
			record.CreatedAt = e.now()
		}
		if record.ExpiryAt.IsZero() {
			record.ExpiryAt = record.CreatedAt.Add(e.licenseValidity)
		}
		if err := e.licenses.Save(ctx, &record); err != nil {
			return fmt.Errorf("seed license for %s: %w", record.ContentID, err)
		}
		e.cache.Put(record.ContentID, licenseDecision(&record, record.OwnerSubjectID, e.now()))
	}

	e.ResetRoleCache()
	return nil
}

// Stats summarizes a config for the CLI.
type ConfigStats struct {
	Subjects    int
	Roles       int
	Rules       int
	Licenses    int
	Memberships int
}

func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		Subjects:    len(c.Subjects),
		Roles:       len(c.Roles),
		Rules:       len(c.Rules),
		Licenses:    len(c.Licenses),
		Memberships: len(c.Memberships),
	}
}
