// Package domain contains core concepts of the chat system.
// This file defines User entities as seen by the messaging subsystem.
// Users are owned by the identity edge and only ever read here.
package domain

import "time"

type User struct {
	ID        UserID
	Username  string
	Email     string
	CreatedAt time.Time
}
