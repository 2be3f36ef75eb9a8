package models

import "time"

// User is a chat participant.
type User struct {
	ID           string    `db:"id" json:"_id"`
	FullName     string    `db:"full_name" json:"fullName"`
	Email        string    `db:"email" json:"email"`
	ProfilePic   string    `db:"profile_pic" json:"profilePic"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}
