package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a user document in MongoDB. The chat server only reads it.
type User struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID        string             `json:"userId" bson:"user_id"`
	Name          string             `json:"name" bson:"name"`
	Email         string             `json:"email" bson:"email"`
	ContactNumber string             `json:"contactNumber" bson:"contact_number"`
	Avatar        string             `json:"avatar" bson:"avatar"`
	IsActive      bool               `json:"isActive" bson:"is_active"`
	CreatedAt     time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt     *time.Time         `json:"updatedAt" bson:"updated_at"`
}

// Profile is the public slice of a user attached to outbound payloads.
type Profile struct {
	UserID  string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
	Avatar  string `json:"avatar,omitempty"`
}

func (u *User) Profile() Profile {
	contact := u.Email
	if contact == "" {
		contact = u.ContactNumber
	}
	return Profile{UserID: u.UserID, Name: u.Name, Contact: contact, Avatar: u.Avatar}
}
