package entitlement

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/oarkflow/entitlement/logger"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// Subject represents the principal whose access is being evaluated.
// Subjects are provisioned externally and read-only to the engine.
type Subject struct {
	ID    string         `json:"id"`
	Roles []string       `json:"roles"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Role names a set of permissions. Roles are unique by name.
type Role struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// LicenseRecord is the authoritative entitlement record for one content id.
// At most one record exists per content id.
type LicenseRecord struct {
	ContentID      string    `json:"content_id"`
	OwnerSubjectID string    `json:"owner_subject_id"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiryAt       time.Time `json:"expiry_at"`
}

// Expired reports whether the record is expired at the given instant.
// A record exactly at its expiry boundary counts as expired.
func (r *LicenseRecord) Expired(at time.Time) bool {
	return !r.ExpiryAt.After(at)
}

// Rule pairs a required role and a required permission for one content id.
// Rules are provisioned externally and read-only to the engine.
type Rule struct {
	ContentID          string `json:"content_id"`
	RequiredRole       string `json:"required_role"`
	RequiredPermission string `json:"required_permission"`
}

// DecisionSource identifies which signal produced an eligibility decision.
type DecisionSource string

const (
	SourceLicense DecisionSource = "license"
	SourceRBAC    DecisionSource = "rbac"
)

// EligibilityDecision is the cached outcome of an eligibility evaluation.
// It is transient state, always reconstructable from the stores.
//
// License-sourced decisions carry the owner and expiry of the record they
// were derived from, so a cache hit stays correct for any querying subject.
// RBAC-sourced decisions only apply to the subject they were computed for.
type EligibilityDecision struct {
	ContentID      string         `json:"content_id"`
	SubjectID      string         `json:"subject_id"`
	Eligible       bool           `json:"eligible"`
	Source         DecisionSource `json:"source"`
	OwnerSubjectID string         `json:"owner_subject_id,omitempty"`
	ExpiryAt       time.Time      `json:"expiry_at"`
	Reason         string         `json:"reason"`
	EvaluatedAt    time.Time      `json:"evaluated_at"`
}

// AuditEntry records one eligibility decision for the optional audit log.
type AuditEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	SubjectID string         `json:"subject_id"`
	ContentID string         `json:"content_id"`
	Eligible  bool           `json:"eligible"`
	Reason    string         `json:"reason"`
	TraceID   string         `json:"trace_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AuditFilter narrows audit log queries.
type AuditFilter struct {
	SubjectID string
	ContentID string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// ============================================================================
// STORE CONTRACTS
// ============================================================================

// IdentityStore resolves subjects and roles. Absent records are reported
// as (nil, nil); a non-nil error means the store itself failed.
type IdentityStore interface {
	FindSubject(ctx context.Context, id string) (*Subject, error)
	FindRoleByName(ctx context.Context, name string) (*Role, error)
}

// LicenseStore persists license records. FindByContentID reports an absent
// record as (nil, nil). Save upserts by content id.
type LicenseStore interface {
	FindByContentID(ctx context.Context, contentID string) (*LicenseRecord, error)
	Save(ctx context.Context, record *LicenseRecord) error
	DeleteByContentID(ctx context.Context, contentID string) error
	FindAll(ctx context.Context) ([]*LicenseRecord, error)
}

// RuleStore lists the per-content rules.
type RuleStore interface {
	FindRulesByContentID(ctx context.Context, contentID string) ([]*Rule, error)
}

// RoleMembershipStore resolves subject->role assignments kept outside the
// subject record itself. It is consulted only when a subject carries no
// inline roles.
type RoleMembershipStore interface {
	AssignRole(ctx context.Context, subjectID, roleName string) error
	RevokeRole(ctx context.Context, subjectID, roleName string) error
	ListRoles(ctx context.Context, subjectID string) ([]string, error)
}

// AuditStore persists eligibility decisions for later inspection.
type AuditStore interface {
	LogDecision(ctx context.Context, entry *AuditEntry) error
	GetDecisionLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}

// ============================================================================
// ENTITLEMENT ENGINE
// ============================================================================

const (
	// DefaultRequiredPermission gates the RBAC path.
	DefaultRequiredPermission = "LICENSE_ACCESS"

	// DefaultLicenseValidity is the lifetime of a newly created license.
	DefaultLicenseValidity = 30 * 24 * time.Hour
)

// DefaultPrivilegedRoles gates the RBAC path: a subject without a license
// must hold at least one of these roles.
func DefaultPrivilegedRoles() []string {
	return []string{"Admin", "Premium User"}
}

// Engine evaluates eligibility from license, RBAC and rule state, and owns
// the license mutations. It never mutates subjects, roles or rules.
type Engine struct {
	identity   IdentityStore
	licenses   LicenseStore
	rules      RuleStore
	membership RoleMembershipStore
	audit      AuditStore

	cache       DecisionCache
	logger      logger.Logger
	traceIDFunc logger.TraceIDFunc
	now         func() time.Time

	privilegedRoles    []string
	requiredPermission string
	licenseValidity    time.Duration

	roleCache sync.Map // role name -> *Role

	// mu serializes the license mutations so read-decide-write-cache is a
	// single unit of work per operation.
	mu sync.Mutex

	// licenseGen counts license mutations. The read-through path snapshots
	// it before evaluating and skips its cache fill when a mutation landed
	// in between, so a stale decision never overwrites the mutation's
	// cache write.
	licenseGen atomic.Uint64
}

// EngineOption configures an Engine at construction time.
type EngineOption func(e *Engine) error

// WithDecisionCache replaces the default in-memory decision cache.
func WithDecisionCache(c DecisionCache) EngineOption {
	return func(e *Engine) error {
		if c == nil {
			return fmt.Errorf("decision cache must not be nil")
		}
		e.cache = c
		return nil
	}
}

// WithLogger installs a structured logger on the engine.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) error {
		e.logger = l
		return nil
	}
}

// WithTraceIDFunc installs a correlation id generator used for audit entries.
func WithTraceIDFunc(f logger.TraceIDFunc) EngineOption {
	return func(e *Engine) error {
		e.traceIDFunc = f
		return nil
	}
}

// WithClock overrides the evaluation clock. Tests use this to pin license
// expiry boundaries.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) error {
		if now == nil {
			return fmt.Errorf("clock must not be nil")
		}
		e.now = now
		return nil
	}
}

// WithPrivilegedRoles replaces the privileged role set for the RBAC gate.
func WithPrivilegedRoles(roles ...string) EngineOption {
	return func(e *Engine) error {
		if len(roles) == 0 {
			return fmt.Errorf("at least one privileged role is required")
		}
		e.privilegedRoles = append([]string(nil), roles...)
		return nil
	}
}

// WithRequiredPermission replaces the baseline permission for the RBAC gate.
func WithRequiredPermission(permission string) EngineOption {
	return func(e *Engine) error {
		if strings.TrimSpace(permission) == "" {
			return fmt.Errorf("required permission must not be blank")
		}
		e.requiredPermission = permission
		return nil
	}
}

// WithLicenseValidity replaces the default 30 day lifetime of new licenses.
func WithLicenseValidity(d time.Duration) EngineOption {
	return func(e *Engine) error {
		if d <= 0 {
			return fmt.Errorf("license validity must be positive")
		}
		e.licenseValidity = d
		return nil
	}
}

// WithRoleMembershipStore installs an external subject->role resolver.
func WithRoleMembershipStore(s RoleMembershipStore) EngineOption {
	return func(e *Engine) error {
		e.membership = s
		return nil
	}
}

// WithAuditStore installs a decision audit log. Writes are synchronous.
func WithAuditStore(s AuditStore) EngineOption {
	return func(e *Engine) error {
		e.audit = s
		return nil
	}
}

// NewEngine constructs an Engine over the given stores.
func NewEngine(identity IdentityStore, licenses LicenseStore, rules RuleStore, opts ...EngineOption) (*Engine, error) {
	if identity == nil || licenses == nil || rules == nil {
		return nil, fmt.Errorf("identity, license and rule stores are required")
	}
	e := &Engine{
		identity:           identity,
		licenses:           licenses,
		rules:              rules,
		cache:              NewMemoryDecisionCache(),
		logger:             logger.NewNullLogger(),
		now:                time.Now,
		privilegedRoles:    DefaultPrivilegedRoles(),
		requiredPermission: DefaultRequiredPermission,
		licenseValidity:    DefaultLicenseValidity,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// IsEligible reports whether the subject may access the content, combining
// the license fast path, the RBAC gates and the per-content rules in that
// order. It is a pure read: stores are never mutated, only the decision
// cache is filled.
func (e *Engine) IsEligible(ctx context.Context, subjectID, contentID string) (bool, error) {
	if strings.TrimSpace(subjectID) == "" || strings.TrimSpace(contentID) == "" {
		return false, fmt.Errorf("%w: subject id and content id must be provided", ErrInvalidArgument)
	}

	now := e.now()
	if cached, ok := e.cache.Get(contentID); ok {
		if eligible, hit := resolveCached(cached, subjectID, now); hit {
			e.logger.Debug("eligibility cache hit", "content_id", contentID, "eligible", eligible)
			return eligible, nil
		}
	}

	gen := e.licenseGen.Load()
	decision, err := e.evaluate(ctx, subjectID, contentID, now)
	if err != nil {
		return false, err
	}
	// The fill happens under the mutation mutex so it is ordered against
	// every license mutation: if one landed since the snapshot, its cache
	// write wins and the stale decision is dropped.
	e.mu.Lock()
	if e.licenseGen.Load() == gen {
		e.cache.Put(contentID, decision)
	}
	e.mu.Unlock()
	e.logDecision(ctx, decision)
	return decision.Eligible, nil
}

// resolveCached applies a cached decision to the querying subject. License
// entries are re-checked against the cached owner/expiry so the content
// scoped key stays correct for every subject; rbac entries only hit when
// the subject matches.
func resolveCached(d *EligibilityDecision, subjectID string, now time.Time) (bool, bool) {
	switch d.Source {
	case SourceLicense:
		return d.OwnerSubjectID == subjectID && d.ExpiryAt.After(now), true
	case SourceRBAC:
		if d.SubjectID == subjectID {
			return d.Eligible, true
		}
	}
	return false, false
}

func (e *Engine) evaluate(ctx context.Context, subjectID, contentID string, now time.Time) (*EligibilityDecision, error) {
	e.logger.Debug("evaluating eligibility", "subject_id", subjectID, "content_id", contentID)

	// 1. Explicit license fast path. A record is authoritative: RBAC and
	// rules are not consulted when one exists.
	record, err := e.licenses.FindByContentID(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("find license for %s: %w", contentID, err)
	}
	if record != nil {
		return licenseDecision(record, subjectID, now), nil
	}

	deny := func(reason string) *EligibilityDecision {
		return &EligibilityDecision{
			ContentID:   contentID,
			SubjectID:   subjectID,
			Source:      SourceRBAC,
			Reason:      reason,
			EvaluatedAt: now,
		}
	}

	// 2. Role gate: the subject must hold at least one privileged role.
	roles, err := e.subjectRoles(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		return deny("unknown subject"), nil
	}
	if !holdsAny(roles, e.privilegedRoles) {
		return deny("missing privileged role"), nil
	}

	// 3. Baseline permission gate, granted through any held role.
	perms, err := e.subjectPermissions(ctx, roles)
	if err != nil {
		return nil, err
	}
	if !perms[e.requiredPermission] {
		return deny("missing required permission"), nil
	}

	// 4. Per-content rules: every rule must be satisfied on both axes.
	rules, err := e.rules.FindRulesByContentID(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("find rules for %s: %w", contentID, err)
	}
	for _, rule := range rules {
		if !holds(roles, rule.RequiredRole) || !perms[rule.RequiredPermission] {
			return deny("rule not satisfied"), nil
		}
	}

	// Gates passed and every rule matched.
	return &EligibilityDecision{
		ContentID:   contentID,
		SubjectID:   subjectID,
		Eligible:    true,
		Source:      SourceRBAC,
		Reason:      "rbac allow",
		EvaluatedAt: now,
	}, nil
}

func licenseDecision(record *LicenseRecord, subjectID string, now time.Time) *EligibilityDecision {
	d := &EligibilityDecision{
		ContentID:      record.ContentID,
		SubjectID:      subjectID,
		Source:         SourceLicense,
		OwnerSubjectID: record.OwnerSubjectID,
		ExpiryAt:       record.ExpiryAt,
		EvaluatedAt:    now,
	}
	switch {
	case record.Expired(now):
		d.Reason = "license expired"
	case record.OwnerSubjectID != subjectID:
		d.Reason = "license held by another subject"
	default:
		d.Eligible = true
		d.Reason = "license owner"
	}
	return d
}

// subjectRoles returns the role names held by the subject, or nil when the
// subject is unknown. Roles inline on the subject win; the membership
// store is a fallback for externally managed assignments.
func (e *Engine) subjectRoles(ctx context.Context, subjectID string) ([]string, error) {
	subject, err := e.identity.FindSubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("find subject %s: %w", subjectID, err)
	}
	if subject == nil {
		return nil, nil
	}
	if len(subject.Roles) > 0 {
		return subject.Roles, nil
	}
	if e.membership != nil {
		roles, err := e.membership.ListRoles(ctx, subjectID)
		if err != nil {
			return nil, fmt.Errorf("list role memberships for %s: %w", subjectID, err)
		}
		if len(roles) > 0 {
			return roles, nil
		}
	}
	return []string{}, nil
}

// subjectPermissions unions the permissions of every held role. Role names
// that do not resolve are skipped.
func (e *Engine) subjectPermissions(ctx context.Context, roleNames []string) (map[string]bool, error) {
	perms := make(map[string]bool)
	for _, name := range roleNames {
		role, err := e.getRoleWithCache(ctx, name)
		if err != nil {
			return nil, err
		}
		if role == nil {
			continue
		}
		for _, p := range role.Permissions {
			perms[p] = true
		}
	}
	return perms, nil
}

func (e *Engine) getRoleWithCache(ctx context.Context, name string) (*Role, error) {
	if cached, ok := e.roleCache.Load(name); ok {
		return cached.(*Role), nil
	}
	role, err := e.identity.FindRoleByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find role %s: %w", name, err)
	}
	if role == nil {
		return nil, nil
	}
	e.roleCache.Store(name, role)
	return role, nil
}

// ResetRoleCache drops the role lookup cache. External role provisioners
// call this after bulk role changes; the decision cache staleness window
// for externally mutated RBAC data otherwise remains until the next
// license mutation.
func (e *Engine) ResetRoleCache() {
	e.roleCache.Range(func(k, _ any) bool {
		e.roleCache.Delete(k)
		return true
	})
}

func holds(roles []string, name string) bool {
	for _, r := range roles {
		if r == name {
			return true
		}
	}
	return false
}

func holdsAny(roles []string, wanted []string) bool {
	for _, w := range wanted {
		if holds(roles, w) {
			return true
		}
	}
	return false
}

func (e *Engine) logDecision(ctx context.Context, d *EligibilityDecision) {
	e.logger.Info("eligibility decided",
		"subject_id", d.SubjectID,
		"content_id", d.ContentID,
		"eligible", d.Eligible,
		"source", string(d.Source),
		"reason", d.Reason,
	)
	if e.audit == nil {
		return
	}
	entry := &AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: d.EvaluatedAt,
		SubjectID: d.SubjectID,
		ContentID: d.ContentID,
		Eligible:  d.Eligible,
		Reason:    d.Reason,
	}
	if e.traceIDFunc != nil {
		entry.TraceID = e.traceIDFunc()
	}
	if err := e.audit.LogDecision(ctx, entry); err != nil {
		e.logger.Error("audit write failed", "content_id", d.ContentID, "error", err.Error())
	}
}

// ============================================================================
// LICENSE OPERATIONS
// ============================================================================

// GetLicense returns the license record for the content id.
func (e *Engine) GetLicense(ctx context.Context, contentID string) (*LicenseRecord, error) {
	if strings.TrimSpace(contentID) == "" {
		return nil, fmt.Errorf("%w: content id must be provided", ErrInvalidArgument)
	}
	record, err := e.licenses.FindByContentID(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("find license for %s: %w", contentID, err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: content id %s", ErrNotFound, contentID)
	}
	return record, nil
}

// GetAllLicenses returns every license record.
func (e *Engine) GetAllLicenses(ctx context.Context) ([]*LicenseRecord, error) {
	return e.licenses.FindAll(ctx)
}

// CreateLicense creates the license record for the content id and populates
// the decision cache in the same unit of work. At most one concurrent
// create for a content id succeeds; the others observe ErrAlreadyExists.
func (e *Engine) CreateLicense(ctx context.Context, contentID, userID string) (*LicenseRecord, error) {
	if strings.TrimSpace(contentID) == "" || strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: content id and user id must be provided", ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.licenses.FindByContentID(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("find license for %s: %w", contentID, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: content id %s", ErrAlreadyExists, contentID)
	}

	now := e.now()
	record := &LicenseRecord{
		ContentID:      contentID,
		OwnerSubjectID: userID,
		CreatedAt:      now,
		ExpiryAt:       now.Add(e.licenseValidity),
	}
	if err := e.licenses.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save license for %s: %w", contentID, err)
	}
	e.licenseGen.Add(1)
	e.cache.Put(contentID, licenseDecision(record, userID, now))
	e.logger.Info("license created", "content_id", contentID, "owner", userID)
	return record, nil
}

// UpdateLicense replaces the stored record for record.ContentID, preserving
// the original CreatedAt, and refreshes the cache entry.
func (e *Engine) UpdateLicense(ctx context.Context, record *LicenseRecord) (*LicenseRecord, error) {
	if record == nil || strings.TrimSpace(record.ContentID) == "" {
		return nil, fmt.Errorf("%w: content id must be provided", ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.licenses.FindByContentID(ctx, record.ContentID)
	if err != nil {
		return nil, fmt.Errorf("find license for %s: %w", record.ContentID, err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: content id %s", ErrNotFound, record.ContentID)
	}

	updated := *record
	updated.CreatedAt = existing.CreatedAt
	if err := e.licenses.Save(ctx, &updated); err != nil {
		return nil, fmt.Errorf("save license for %s: %w", record.ContentID, err)
	}
	e.licenseGen.Add(1)
	e.cache.Put(updated.ContentID, licenseDecision(&updated, updated.OwnerSubjectID, e.now()))
	e.logger.Info("license updated", "content_id", updated.ContentID, "owner", updated.OwnerSubjectID)
	return &updated, nil
}

// DeleteLicense removes the record and evicts the cache entry in the same
// locked operation. Deleting an absent record reports ErrNotFound.
func (e *Engine) DeleteLicense(ctx context.Context, contentID string) error {
	if strings.TrimSpace(contentID) == "" {
		return fmt.Errorf("%w: content id must be provided", ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.licenses.FindByContentID(ctx, contentID)
	if err != nil {
		return fmt.Errorf("find license for %s: %w", contentID, err)
	}
	if existing == nil {
		return fmt.Errorf("%w: content id %s", ErrNotFound, contentID)
	}
	if err := e.licenses.DeleteByContentID(ctx, contentID); err != nil {
		return fmt.Errorf("delete license for %s: %w", contentID, err)
	}
	e.licenseGen.Add(1)
	e.cache.Invalidate(contentID)
	e.logger.Info("license deleted", "content_id", contentID)
	return nil
}

// GetDecisionLog queries the audit store, when one is installed.
func (e *Engine) GetDecisionLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	if e.audit == nil {
		return nil, fmt.Errorf("no audit store installed")
	}
	return e.audit.GetDecisionLog(ctx, filter)
}
