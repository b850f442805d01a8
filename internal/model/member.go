package model

import "time"

// Member roles.  Partners own stores; every member can reserve.
const (
	RoleUser    = "USER"
	RolePartner = "PARTNER"
)

// Member represents an account as stored in the `members` table.  The
// password hash never leaves the repository and handler layers.
//
// Fields:
//  ID           – primary key identifier.
//  Email        – unique, lower-cased login email.
//  PasswordHash – bcrypt hash of the password.
//  Nickname     – display name.
//  Phone        – optional phone number.
//  Role         – USER or PARTNER.
//  ProfileImage – link to the profile image, nil when none was set.
//  CreatedAt    – creation timestamp.
type Member struct {
	ID           uint64    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Nickname     string    `db:"nickname"`
	Phone        string    `db:"phone"`
	Role         string    `db:"role"`
	ProfileImage *string   `db:"profile_image"`
	CreatedAt    time.Time `db:"created_at"`
}

// Identity is the authenticated caller of a service operation.  It is
// resolved by the HTTP layer and passed explicitly into every operation
// that needs to know who is acting.
type Identity struct {
	Email string
}
