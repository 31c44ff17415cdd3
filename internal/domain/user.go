// Package domain contains entity without transport, just meta-data
package domain

import (
	"time"

	"github.com/google/uuid"
)

type (
	UserID string
	ConnID string
)

func NewConnID() ConnID { return ConnID(uuid.NewString()) }

// Session is the live binding between a user and one connection.
type Session struct {
	UserID      UserID    `json:"userId"`
	ConnID      ConnID    `json:"connectionId"`
	ConnectedAt time.Time `json:"connectedAt"`
}
