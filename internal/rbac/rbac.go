package rbac

type Role string
type Action string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

const (
	ActionRead        Action = "read"
	ActionWrite       Action = "write"
	ActionManageTeams Action = "manage_teams"
	ActionManageUsers Action = "manage_users"
	ActionSeeAll      Action = "see_all"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleManager:
		return action == ActionRead || action == ActionWrite || action == ActionManageTeams
	case RoleEmployee:
		return action == ActionRead || action == ActionWrite
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleEmployee, RoleManager, RoleAdmin:
		return Role(role)
	default:
		return RoleEmployee
	}
}
