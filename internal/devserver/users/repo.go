package users

import "time"

type UserRepo interface {
	// Insert adds a new user, failing with ErrUserExists when the email is taken.
	Insert(user *User) error
	GetByEmail(email string) (*User, error)
	GetByID(ID string) (*User, error)
	SetLastLogin(email string, at time.Time) error
}
