package models

import "time"

// User roles. Admins see every park; managers read every park but cannot use
// admin-only mutation endpoints; staff are limited to their assigned parks.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// User is a back-office account (admin, manager or staff).
type User struct {
	ID           int       `db:"id" json:"id"`
	Login        string    `db:"login" json:"login"`
	PasswordHash string    `db:"pw" json:"-"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Email        string    `db:"email" json:"email"`
	Role         string    `db:"role" json:"role"`
	ValidID      int       `db:"valid_id" json:"valid_id"`
	CreatedAt    time.Time `db:"create_time" json:"created_at"`
	UpdatedAt    time.Time `db:"change_time" json:"updated_at"`

	// ParkIDs is populated from the user_parks junction table when needed.
	ParkIDs []int `db:"-" json:"park_ids,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// FullName returns the user's display name, falling back to the login when
// no name parts are set.
func (u *User) FullName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Login
	}
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// ValidRole reports whether role is one of the known role names.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}
