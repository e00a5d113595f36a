package model

import "time"

// Role is the authorization role carried in access tokens.
type Role string

const (
	RoleGuest        Role = "Guest"
	RoleAdmin        Role = "Admin"
	RoleFrontDesk    Role = "FrontDesk"
	RoleHousekeeping Role = "Housekeeping"
	RoleManager      Role = "Manager"
)

// StaffRoles are the roles allowed into the front-desk dashboard.
var StaffRoles = []Role{RoleAdmin, RoleFrontDesk, RoleHousekeeping, RoleManager}

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleGuest || r.IsStaff() }

// IsStaff reports whether r is any staff role.
func (r Role) IsStaff() bool {
	for _, s := range StaffRoles {
		if s == r {
			return true
		}
	}
	return false
}

// CanBookOnBehalf reports whether r may attribute a booking to a guest
// other than itself.  Housekeeping is staff but cannot.
func (r Role) CanBookOnBehalf() bool {
	return r == RoleAdmin || r == RoleFrontDesk || r == RoleManager
}

// User represents an account as stored in the `users` table.  Guests and
// staff share the table and are told apart by Role.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	FirstName    – given name.
//	LastName     – family name.
//	Email        – unique email address.
//	Phone        – optional phone number.
//	PasswordHash – bcrypt hashed password.
//	Role         – authorization role.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	FirstName    string    // users.first_name
	LastName     string    // users.last_name
	Email        string    // users.email
	Phone        string    // users.phone
	PasswordHash string    // users.password_hash
	Role         Role      // users.role
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
