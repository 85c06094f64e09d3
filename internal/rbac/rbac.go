package rbac

type Role string
type Action string

const (
	RoleMember     Role = "member"
	RoleTeamLeader Role = "team_leader"
	RoleAdmin      Role = "admin"
)

const (
	ActionRead    Action = "read"
	ActionComment Action = "comment"
)

// Can reports whether role grants action on every task, regardless of
// assignment. Members get task-level access through Participant.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleTeamLeader:
		return action == ActionRead || action == ActionComment
	default:
		return false
	}
}

// Participant grants the task-scoped actions a member holds on a task.
// The assignee may read and comment; the creator may only read.
func Participant(action Action, isAssignee, isCreator bool) bool {
	switch action {
	case ActionRead:
		return isAssignee || isCreator
	case ActionComment:
		return isAssignee
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleMember, RoleTeamLeader, RoleAdmin:
		return Role(role)
	default:
		return RoleMember
	}
}
