package entitlement

import "time"

// Builders provide a fluent API for creating Subjects, Roles, Rules and
// LicenseRecords

// SubjectBuilder builds a Subject
type SubjectBuilder struct {
	s *Subject
}

func NewSubjectBuilder() *SubjectBuilder {
	return &SubjectBuilder{s: &Subject{Roles: []string{}}}
}

func (b *SubjectBuilder) ID(id string) *SubjectBuilder { b.s.ID = id; return b }
func (b *SubjectBuilder) Roles(r ...string) *SubjectBuilder {
	b.s.Roles = append(b.s.Roles, r...)
	return b
}
func (b *SubjectBuilder) Attr(key string, value any) *SubjectBuilder {
	if b.s.Attrs == nil {
		b.s.Attrs = make(map[string]any)
	}
	b.s.Attrs[key] = value
	return b
}
func (b *SubjectBuilder) Build() *Subject { return b.s }

// RoleBuilder builds a Role
type RoleBuilder struct {
	r *Role
}

func NewRoleBuilder() *RoleBuilder {
	return &RoleBuilder{r: &Role{Permissions: []string{}}}
}

func (b *RoleBuilder) Name(n string) *RoleBuilder { b.r.Name = n; return b }
func (b *RoleBuilder) Permissions(p ...string) *RoleBuilder {
	b.r.Permissions = append(b.r.Permissions, p...)
	return b
}
func (b *RoleBuilder) Build() *Role { return b.r }

// RuleBuilder builds a Rule
type RuleBuilder struct {
	rule *Rule
}

func NewRuleBuilder() *RuleBuilder                          { return &RuleBuilder{rule: &Rule{}} }
func (b *RuleBuilder) Content(contentID string) *RuleBuilder { b.rule.ContentID = contentID; return b }
func (b *RuleBuilder) Role(name string) *RuleBuilder         { b.rule.RequiredRole = name; return b }
func (b *RuleBuilder) Permission(p string) *RuleBuilder      { b.rule.RequiredPermission = p; return b }
func (b *RuleBuilder) Build() *Rule                          { return b.rule }

// LicenseBuilder builds a LicenseRecord
type LicenseBuilder struct {
	rec *LicenseRecord
}

func NewLicenseBuilder() *LicenseBuilder { return &LicenseBuilder{rec: &LicenseRecord{}} }
func (b *LicenseBuilder) Content(contentID string) *LicenseBuilder {
	b.rec.ContentID = contentID
	return b
}
func (b *LicenseBuilder) Owner(subjectID string) *LicenseBuilder {
	b.rec.OwnerSubjectID = subjectID
	return b
}
func (b *LicenseBuilder) CreatedAt(t time.Time) *LicenseBuilder { b.rec.CreatedAt = t; return b }
func (b *LicenseBuilder) ExpiryAt(t time.Time) *LicenseBuilder  { b.rec.ExpiryAt = t; return b }
func (b *LicenseBuilder) Build() *LicenseRecord                 { return b.rec }
