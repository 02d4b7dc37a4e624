package models

import "time"

// Role values carried in a user's profile.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Profile holds the role-bearing part of a user record.
type Profile struct {
	Role       string `json:"role"`
	Phone      string `json:"phone,omitempty"`
	Department string `json:"department,omitempty"`
}

// User is the identity returned by /users/me/ and the admin user endpoints.
type User struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	IsActive    bool       `json:"is_active"`
	Profile     *Profile   `json:"profile,omitempty"`
	DateJoined  *time.Time `json:"date_joined,omitempty"`
	LastLoginAt *time.Time `json:"last_login,omitempty"`
}

// Role returns the profile role, or an empty string when the user has no profile.
func (u *User) Role() string {
	if u == nil || u.Profile == nil {
		return ""
	}
	return u.Profile.Role
}

// IsAdmin returns true if the user's profile carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role() == RoleAdmin
}

// Credentials is the body of a login call.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the body of a self-service register call.
type Registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// UserInput is the body of the admin create/update user calls.
// Zero values are omitted so it can be used for partial updates.
type UserInput struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Role     string `json:"role,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}
