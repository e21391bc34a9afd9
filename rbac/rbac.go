// Package rbac holds the static role and permission model for the
// case-management platform.
//
// The role → permission table is fixed at compile time: changing what a role
// may do requires a deployment, never a data mutation, so permission
// semantics live in exactly one reviewable place.
package rbac

import (
	"errors"
	"sort"
)

// Role is one of the platform's ordered roles. The zero value is invalid.
type Role uint8

const (
	// RoleClient is an end user whose cases are managed on the platform.
	RoleClient Role = iota + 1
	// RoleStaff handles day-to-day case data entry.
	RoleStaff
	// RoleAdvocate owns cases and may assign them.
	RoleAdvocate
	// RoleAdmin manages accounts and sessions.
	RoleAdmin
	// RoleSuperAdmin holds every permission.
	RoleSuperAdmin
)

// Permission names, namespaced resource:verb.
const (
	PermCaseRead       = "case:read"
	PermCaseCreate     = "case:create"
	PermCaseUpdate     = "case:update"
	PermCaseAssign     = "case:assign"
	PermDocumentRead   = "document:read"
	PermDocumentUpload = "document:upload"
	PermNoteRead       = "note:read"
	PermNoteCreate     = "note:create"
	PermAccountManage  = "account:manage"
	PermSessionReview  = "session:review"
	PermInviteIssue    = "invite:issue"
	PermAdminAll       = "admin:all"
)

// ErrUnknownRole is returned by ParseRole for names outside the table.
var ErrUnknownRole = errors.New("unknown role")

var roleNames = map[Role]string{
	RoleClient:     "client",
	RoleStaff:      "staff",
	RoleAdvocate:   "advocate",
	RoleAdmin:      "admin",
	RoleSuperAdmin: "superadmin",
}

var namesToRole = map[string]Role{
	"client":     RoleClient,
	"staff":      RoleStaff,
	"advocate":   RoleAdvocate,
	"admin":      RoleAdmin,
	"superadmin": RoleSuperAdmin,
}

// grants is the authoritative role → permission table. Higher roles are
// written out in full rather than composed, so a reviewer sees the complete
// grant set for a role in one block.
var grants = map[Role]map[string]struct{}{
	RoleClient: permSet(
		PermCaseRead,
		PermDocumentRead,
		PermNoteRead,
	),
	RoleStaff: permSet(
		PermCaseRead,
		PermCaseCreate,
		PermCaseUpdate,
		PermDocumentRead,
		PermDocumentUpload,
		PermNoteRead,
		PermNoteCreate,
	),
	RoleAdvocate: permSet(
		PermCaseRead,
		PermCaseCreate,
		PermCaseUpdate,
		PermCaseAssign,
		PermDocumentRead,
		PermDocumentUpload,
		PermNoteRead,
		PermNoteCreate,
		PermSessionReview,
	),
	RoleAdmin: permSet(
		PermCaseRead,
		PermCaseCreate,
		PermCaseUpdate,
		PermCaseAssign,
		PermDocumentRead,
		PermDocumentUpload,
		PermNoteRead,
		PermNoteCreate,
		PermAccountManage,
		PermSessionReview,
		PermInviteIssue,
	),
	RoleSuperAdmin: permSet(
		PermCaseRead,
		PermCaseCreate,
		PermCaseUpdate,
		PermCaseAssign,
		PermDocumentRead,
		PermDocumentUpload,
		PermNoteRead,
		PermNoteCreate,
		PermAccountManage,
		PermSessionReview,
		PermInviteIssue,
		PermAdminAll,
	),
}

func permSet(perms ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// String returns the wire name of the role, or "unknown".
func (r Role) String() string {
	name, ok := roleNames[r]
	if !ok {
		return "unknown"
	}
	return name
}

// ParseRole maps a wire name back to a Role.
func ParseRole(name string) (Role, error) {
	role, ok := namesToRole[name]
	if !ok {
		return 0, ErrUnknownRole
	}
	return role, nil
}

// LevelOf returns the position of the role in the total order (client=1 …
// superadmin=5). Unknown roles are level 0 and compare below everything.
func LevelOf(r Role) int {
	if !r.Valid() {
		return 0
	}
	return int(r)
}

// IsAtLeast reports whether r sits at or above min in the role order.
func IsAtLeast(r, min Role) bool {
	return LevelOf(r) >= LevelOf(min) && LevelOf(r) > 0
}

// PermissionsFor returns the sorted permission list granted to the role.
// The returned slice is a copy.
func PermissionsFor(r Role) []string {
	set, ok := grants[r]
	if !ok {
		return nil
	}

	perms := make([]string, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}

// Has reports whether the role is granted the single named permission.
func Has(r Role, perm string) bool {
	set, ok := grants[r]
	if !ok {
		return false
	}
	_, ok = set[perm]
	return ok
}

// HasAny reports whether the role holds at least one of the required
// permissions. An empty requirement is vacuously satisfied.
func HasAny(r Role, required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, perm := range required {
		if Has(r, perm) {
			return true
		}
	}
	return false
}

// HasAll reports whether the role holds every required permission.
func HasAll(r Role, required []string) bool {
	for _, perm := range required {
		if !Has(r, perm) {
			return false
		}
	}
	return true
}

// Roles returns all defined roles in ascending level order.
func Roles() []Role {
	return []Role{RoleClient, RoleStaff, RoleAdvocate, RoleAdmin, RoleSuperAdmin}
}
