package core

// Role of an authenticated user.
type Role string

const (
	RoleUser  Role = "user"  // inspection participant
	RoleAgent Role = "agent" // reviewer, may read any owner's uploads
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAgent
}

// Session identifies the caller of every upload operation.
type Session struct {
	UserID string
	Role   Role
	Token  string
}

// CanRead reports whether the session may read uploads owned by ownerID.
func (s Session) CanRead(ownerID string) bool {
	return s.UserID == ownerID || s.Role == RoleAgent
}
