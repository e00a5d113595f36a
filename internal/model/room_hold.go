package model

import "time"

// RoomHold is a soft lock placed on a room by the front desk.  While the
// hold is active the room is hidden from availability searches of every
// caller except the one presenting Token.  Holds expire on their own at
// ExpiresAt; nothing needs to clean them up.
//
// Fields:
//
//	RoomID    – room being held.
//	Token     – opaque token identifying the holder.
//	ExpiresAt – when the hold lapses.
type RoomHold struct {
	RoomID    uint64    `json:"room_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
