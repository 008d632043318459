package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOperator   = "operator"
	RoleSupervisor = "supervisor"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }
