package metadata

// UserContext represents the authenticated user, set by the auth middleware.
type UserContext struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *UserContext) IsAdmin() bool {
	return u != nil && u.Role == "admin"
}
