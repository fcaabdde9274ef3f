// Package access implements Cairn's hierarchical membership-based
// access-control resolver.
//
// Containers (workspaces, projects, boards) carry their own membership
// tables and are resolved directly. Linked entities (milestones, cards)
// carry no memberships of their own and are resolved through their
// many-to-many parent links. Leaf entities (tasks) are resolved through a
// two-level chain (task -> milestone -> project) with a legacy direct
// task -> project fallback.
//
// The resolver is stateless and recomputes every decision from current
// store data: membership changes, including revocations, take effect on
// the next request. A pluggable Bypass strategy lets platform operators
// short-circuit local membership with a synthesized top-rank membership.
//
// All three guards share union-of-paths semantics: access through any one
// sufficiently-privileged parent path is sufficient. Denials are logged
// with full context before the typed error is returned, so the audit
// trail survives whatever the caller does with the error.
package access
