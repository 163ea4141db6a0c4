package lifecycle

// Member roles inside a group.
const (
	RoleMember    = "member"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Membership statuses.
const (
	MemberActive    = "active"
	MemberSuspended = "suspended"
)

// Group visibility values.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// GroupView is the slice of a group needed to evaluate access.
type GroupView struct {
	ID          uint
	CreatorID   uint
	Visibility  string
	Phase       Phase
	MemberCount int
	MaxMembers  int
}

// MemberView is the viewer's membership row.
type MemberView struct {
	Role   string
	Status string
}

// Capabilities is what a viewer may do with one group. The zero value
// grants nothing.
type Capabilities struct {
	CanView         bool   `json:"can_view"`
	CanManage       bool   `json:"can_manage"`
	CanAdvancePhase bool   `json:"can_advance_phase"`
	CanVote         bool   `json:"can_vote"`
	CanJoin         bool   `json:"can_join"`
	CanInvite       bool   `json:"can_invite"`
	CanLeave        bool   `json:"can_leave"`
	IsMember        bool   `json:"is_member"`
	IsCreator       bool   `json:"is_creator"`
	Role            string `json:"role,omitempty"`
}

// ElevatedRole reports whether role carries management rights.
func ElevatedRole(role string) bool {
	return role == RoleAdmin || role == RoleModerator
}

// ValidRole reports whether role is one of the member roles.
func ValidRole(role string) bool {
	return role == RoleMember || ElevatedRole(role)
}

// Evaluate computes the viewer's capabilities. member is nil when the
// viewer has no membership row. The creator is an ordinary member once
// the group has leaders; before that it may drive the group forward.
func Evaluate(viewerID uint, group GroupView, member *MemberView) Capabilities {
	var caps Capabilities
	if viewerID == 0 {
		caps.CanView = group.Visibility == VisibilityPublic
		return caps
	}

	caps.IsCreator = group.CreatorID == viewerID
	if member != nil {
		caps.IsMember = true
		caps.Role = member.Role
	}
	active := caps.IsMember && member.Status == MemberActive

	caps.CanView = group.Visibility == VisibilityPublic || caps.IsMember || caps.IsCreator
	caps.CanManage = active && ElevatedRole(member.Role)
	caps.CanAdvancePhase = caps.CanManage ||
		(caps.IsCreator && active && group.Phase.Before(PhaseVoteAdmins))
	caps.CanVote = active
	caps.CanJoin = !caps.IsMember &&
		CanShowComponent(group.Phase, SectionJoin) &&
		group.MemberCount < group.MaxMembers
	caps.CanInvite = active && CanShowComponent(group.Phase, SectionInvites)
	caps.CanLeave = active && !caps.IsCreator && group.Phase.Before(PhaseNegotiation)
	return caps
}
