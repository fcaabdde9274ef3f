package access

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cairnhq/cairn/pkg/audit"
	"github.com/cairnhq/cairn/pkg/observability"
)

// Resolver is the shared access-control engine. One resolver serves
// every entity family; descriptors carry the per-family differences.
// The resolver holds no per-request state and is safe for concurrent
// use.
type Resolver struct {
	bypass  Bypass
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// NewResolver creates a resolver. bypass may be nil when the deployment
// has no platform operators; metrics may be nil in tests.
func NewResolver(bypass Bypass, logger *observability.Logger, metrics *observability.Metrics) *Resolver {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Resolver{
		bypass:  bypass,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("github.com/cairnhq/cairn/pkg/access"),
	}
}

// Ensure resolves access to a directly-governed container. It does not
// verify the container exists; that is the caller's own lookup. With
// CapNone it checks membership existence only.
func (r *Resolver) Ensure(ctx context.Context, d Descriptor, userID, entityID int64, capability Capability) (*Context, error) {
	ctx, span := r.startSpan(ctx, "access.Ensure", d.Family, entityID, capability)
	defer span.End()

	if m, err := r.bypassMembership(ctx, userID, entityID, d.Roles.Top()); err != nil {
		return nil, err
	} else if m != nil {
		r.granted(d.Family)
		return &Context{Membership: m, ContainerIDs: []int64{entityID}}, nil
	}

	m, err := d.Memberships.FindMembership(ctx, userID, entityID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, r.deny(ctx, userID, capability, NotMemberError(d.Family, entityID), nil)
	}
	if capability == CapNone {
		r.granted(d.Family)
		return &Context{Membership: m, ContainerIDs: []int64{entityID}}, nil
	}

	ok, err := d.Matrix.Grants(m.Role, capability)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, r.deny(ctx, userID, capability, ForbiddenError(d.Family, entityID, capability),
			map[string]interface{}{"role": string(m.Role)})
	}
	r.granted(d.Family)
	return &Context{Membership: m, ContainerIDs: []int64{entityID}}, nil
}

// MembershipSafe is the non-throwing lookup for callers that only need
// an existence check. It never consults the bypass and returns
// (nil, nil) when the user has no membership.
func (r *Resolver) MembershipSafe(ctx context.Context, d Descriptor, userID, entityID int64) (*Membership, error) {
	return d.Memberships.FindMembership(ctx, userID, entityID)
}

// EnsureLinked resolves access to an entity governed through its
// many-to-many parent links. Access through any one parent is
// sufficient; when every parent denies, the most specific denial is
// returned.
func (r *Resolver) EnsureLinked(ctx context.Context, d LinkedDescriptor, userID, childID int64, capability Capability) (*Context, error) {
	ctx, span := r.startSpan(ctx, "access.EnsureLinked", d.Family, childID, capability)
	defer span.End()

	parents, err := d.Links.ParentIDs(ctx, childID)
	if err != nil {
		return nil, err
	}
	if len(parents) == 0 {
		return nil, r.deny(ctx, userID, capability, NotFoundError(d.Family, childID), nil)
	}
	// Fixed iteration order keeps denial diagnostics reproducible.
	sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })

	var denial *Error
	for _, parentID := range parents {
		c, err := r.Ensure(ctx, d.Parent, userID, parentID, capability)
		if err == nil {
			return &Context{Membership: c.Membership, ContainerIDs: []int64{parentID}}, nil
		}
		ae, ok := err.(*Error)
		if !ok {
			// Store failures are not policy decisions; propagate.
			return nil, err
		}
		denial = moreSpecific(denial, ae)
	}
	return nil, denial
}

// EnsureChained resolves access to a leaf reachable through a two-level
// chain (leaf -> mid -> top), falling back to legacy direct leaf -> top
// links when the chain is absent. A single sufficiently-privileged path
// among all structurally valid paths grants access.
func (r *Resolver) EnsureChained(ctx context.Context, d ChainDescriptor, userID, leafID int64, capability Capability) (*ChainContext, error) {
	ctx, span := r.startSpan(ctx, "access.EnsureChained", d.Family, leafID, capability)
	defer span.End()

	mids, err := d.MidLinks.ParentIDs(ctx, leafID)
	if err != nil {
		return nil, err
	}
	var tops []int64
	if len(mids) > 0 {
		tops, err = d.TopLinks.BatchParentIDs(ctx, mids)
		if err != nil {
			return nil, err
		}
	}
	if len(tops) == 0 && d.LegacyLinks != nil {
		tops, err = d.LegacyLinks.ParentIDs(ctx, leafID)
		if err != nil {
			return nil, err
		}
	}
	if len(tops) == 0 {
		return nil, r.deny(ctx, userID, capability, NotFoundError(d.Family, leafID), nil)
	}
	tops = dedupSorted(tops)

	if m, err := r.bypassMembership(ctx, userID, tops[0], d.Top.Roles.Top()); err != nil {
		return nil, err
	} else if m != nil {
		r.granted(d.Family)
		return &ChainContext{Membership: m, TopID: tops[0], ViaTopIDs: tops}, nil
	}

	// One batched lookup across all reachable tops, not one query per id.
	memberships, err := d.Top.Memberships.FindMemberships(ctx, userID, tops)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, r.deny(ctx, userID, capability, NotMemberError(d.Family, leafID),
			map[string]interface{}{"tops_considered": tops})
	}
	if capability == CapNone {
		r.granted(d.Family)
		return &ChainContext{Membership: memberships[0], TopID: memberships[0].EntityID, ViaTopIDs: tops}, nil
	}

	rolesFound := make([]string, 0, len(memberships))
	for _, m := range memberships {
		ok, err := d.Top.Matrix.Grants(m.Role, capability)
		if err != nil {
			return nil, err
		}
		if ok {
			r.granted(d.Family)
			return &ChainContext{Membership: m, TopID: m.EntityID, ViaTopIDs: tops}, nil
		}
		rolesFound = append(rolesFound, string(m.Role))
	}
	return nil, r.deny(ctx, userID, capability, ForbiddenError(d.Family, leafID, capability),
		map[string]interface{}{"tops_considered": tops, "roles_found": rolesFound})
}

// bypassMembership consults the bypass strategy and mints the virtual
// top-rank membership when it applies.
func (r *Resolver) bypassMembership(ctx context.Context, userID, entityID int64, top Role) (*Membership, error) {
	if r.bypass == nil {
		return nil, nil
	}
	ok, err := r.bypass.HasGlobalAccess(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	name, err := r.bypass.GlobalRoleName(ctx, userID)
	if err != nil {
		return nil, err
	}
	return SynthesizeMembership(userID, entityID, top, name), nil
}

// deny logs the denial with full context and records it in the audit
// trail before the error is handed back, so the trail exists even if an
// outer layer swallows the error.
func (r *Resolver) deny(ctx context.Context, userID int64, capability Capability, denial *Error, extra map[string]interface{}) *Error {
	fields := map[string]interface{}{
		"user_id":    userID,
		"family":     denial.Family,
		"entity_id":  denial.EntityID,
		"capability": string(capability),
		"reason":     string(denial.Reason),
	}
	for k, v := range extra {
		fields[k] = v
	}
	r.logger.WithFields(fields).Warn("access denied")

	if r.metrics != nil {
		r.metrics.AccessChecksTotal.WithLabelValues(denial.Family, "denied").Inc()
		r.metrics.AccessDenialsTotal.WithLabelValues(denial.Family, string(denial.Reason)).Inc()
	}
	_ = audit.FromContext(ctx).LogDenial(ctx, userID, denial.Family, denial.EntityID, string(capability), string(denial.Reason))
	return denial
}

func (r *Resolver) granted(family string) {
	if r.metrics != nil {
		r.metrics.AccessChecksTotal.WithLabelValues(family, "granted").Inc()
	}
}

func (r *Resolver) startSpan(ctx context.Context, name, family string, entityID int64, capability Capability) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("access.family", family),
		attribute.Int64("access.entity_id", entityID),
		attribute.String("access.capability", string(capability)),
	))
}

func dedupSorted(ids []int64) []int64 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:0]
	var last int64
	for i, id := range ids {
		if i == 0 || id != last {
			out = append(out, id)
		}
		last = id
	}
	return out
}
