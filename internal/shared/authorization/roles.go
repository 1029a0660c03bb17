package authorization

// UserRole is the coarse role of a principal. Membership of a given ICU is
// checked separately against the assignment tables.
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleManager  UserRole = "manager"
	RoleOperator UserRole = "operator"
	RoleExternal UserRole = "external"
)

func (r UserRole) String() string {
	return string(r)
}

func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin
}

func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleOperator, RoleExternal:
		return true
	}
	return false
}

// ParseUserRole falls back to operator, the least privileged human role.
func ParseUserRole(s string) UserRole {
	role := UserRole(s)
	if role.IsValid() {
		return role
	}
	return RoleOperator
}

// Resources and actions checked by the role policy.
const (
	ResourceICU      = "icu"
	ResourceUser     = "user"
	ResourceRegion   = "region"
	ResourceBedCount = "bedcount"
	ResourceSchedule = "schedule"
	ResourceClient   = "external_client"

	ActionRead   = "read"
	ActionWrite  = "write"
	ActionManage = "manage"
	ActionCreate = "create"
)
