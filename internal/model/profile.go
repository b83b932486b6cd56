package model

// Role of a user in a study circle.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// CanAward reports whether the role may credit points or redeem rewards for others.
func (r Role) CanAward() bool {
	return r == RoleTeacher || r == RoleAdmin
}

// Profile is a user entry from the profile directory.
type Profile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}
