package models

import "time"

// User is the local read model of an account owned by the identity provider.
type User struct {
	ID        string    `db:"id" json:"_id"`
	Name      string    `db:"name" json:"name" binding:"required"`
	Image     string    `db:"image" json:"image"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Profile is the public part of a user shown next to conversations and messages.
type Profile struct {
	ID    string `db:"id" json:"_id"`
	Name  string `db:"name" json:"name"`
	Image string `db:"image" json:"image"`
}

// Profile returns the public view of the user.
func (u User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Image: u.Image}
}
