package auth

// Admin realm roles. Operators record and confirm results; admins
// additionally amend, void, rebuild and manage the fixture list.
const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)
