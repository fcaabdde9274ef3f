package access

import "fmt"

// Role is a named rank a membership grants on a single container.
// Roles are per-(user, container) facts, not global.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleMember Role = "member"
)

var roleRanks = map[Role]int{
	RoleOwner:  4,
	RoleAdmin:  3,
	RoleEditor: 2,
	RoleMember: 1,
}

// Rank returns the ordering of the role, higher is more privileged.
// Unknown roles rank at zero.
func (r Role) Rank() int {
	return roleRanks[r]
}

// Known reports whether the role is one of the declared roles.
func (r Role) Known() bool {
	_, ok := roleRanks[r]
	return ok
}

// Capability is a single named permission on a container or its content.
type Capability string

const (
	// CapManageMembers allows inviting, updating and removing members.
	CapManageMembers Capability = "manage_members"
	// CapManageEntity allows renaming or deleting the container itself.
	CapManageEntity Capability = "manage_entity"

	CapCreateContent Capability = "create_content"
	CapEditContent   Capability = "edit_content"
	CapDeleteContent Capability = "delete_content"

	// CapNone requests an existence-of-membership check only.
	CapNone Capability = ""
)

// Capabilities returns every declared capability.
func Capabilities() []Capability {
	return []Capability{
		CapManageMembers,
		CapManageEntity,
		CapCreateContent,
		CapEditContent,
		CapDeleteContent,
	}
}

// RoleSet is the ordered set of roles an entity family declares,
// highest rank first.
type RoleSet []Role

// RolesAll is the full role set used by workspaces and projects.
var RolesAll = RoleSet{RoleOwner, RoleAdmin, RoleEditor, RoleMember}

// RolesCollaborator excludes owner; boards are owned by their workspace
// and board collaborators top out at admin.
var RolesCollaborator = RoleSet{RoleAdmin, RoleEditor, RoleMember}

// Top returns the highest-rank role in the set.
func (s RoleSet) Top() Role {
	return s[0]
}

// Contains reports whether the role belongs to the set.
func (s RoleSet) Contains(r Role) bool {
	for _, candidate := range s {
		if candidate == r {
			return true
		}
	}
	return false
}

// Matrix is the fixed role -> capability truth table for one entity
// family. It is total over the family's role set and is not required to
// be monotonic in role rank: callers must not assume a higher rank
// implies a superset of capabilities.
type Matrix map[Role]map[Capability]bool

// Grants reports whether the role's matrix entry for the capability is
// true. A role outside the matrix is a programming error, not a policy
// outcome, and is surfaced as an error.
func (m Matrix) Grants(role Role, capability Capability) (bool, error) {
	caps, ok := m[role]
	if !ok {
		return false, fmt.Errorf("role %q is not declared in the permission matrix", role)
	}
	granted, ok := caps[capability]
	if !ok {
		return false, fmt.Errorf("capability %q is not declared in the permission matrix", capability)
	}
	return granted, nil
}

// Validate checks the matrix is total over the role set: every declared
// role maps every declared capability.
func (m Matrix) Validate(set RoleSet) error {
	for _, role := range set {
		caps, ok := m[role]
		if !ok {
			return fmt.Errorf("matrix missing role %q", role)
		}
		for _, capability := range Capabilities() {
			if _, ok := caps[capability]; !ok {
				return fmt.Errorf("matrix missing entry for role %q capability %q", role, capability)
			}
		}
	}
	return nil
}

// ContainerMatrix is the matrix for workspaces and projects.
//
// Note the deliberate non-monotonic entries: admins cannot delete the
// container itself, editors can edit content but not delete it.
func ContainerMatrix() Matrix {
	return Matrix{
		RoleOwner: {
			CapManageMembers: true,
			CapManageEntity:  true,
			CapCreateContent: true,
			CapEditContent:   true,
			CapDeleteContent: true,
		},
		RoleAdmin: {
			CapManageMembers: true,
			CapManageEntity:  false,
			CapCreateContent: true,
			CapEditContent:   true,
			CapDeleteContent: true,
		},
		RoleEditor: {
			CapManageMembers: false,
			CapManageEntity:  false,
			CapCreateContent: true,
			CapEditContent:   true,
			CapDeleteContent: false,
		},
		RoleMember: {
			CapManageMembers: false,
			CapManageEntity:  false,
			CapCreateContent: false,
			CapEditContent:   false,
			CapDeleteContent: false,
		},
	}
}

// BoardMatrix is the matrix for the boards family; the role set has no
// owner, so admin carries full board control.
func BoardMatrix() Matrix {
	return Matrix{
		RoleAdmin: {
			CapManageMembers: true,
			CapManageEntity:  true,
			CapCreateContent: true,
			CapEditContent:   true,
			CapDeleteContent: true,
		},
		RoleEditor: {
			CapManageMembers: false,
			CapManageEntity:  false,
			CapCreateContent: true,
			CapEditContent:   true,
			CapDeleteContent: false,
		},
		RoleMember: {
			CapManageMembers: false,
			CapManageEntity:  false,
			CapCreateContent: false,
			CapEditContent:   false,
			CapDeleteContent: false,
		},
	}
}
