package models

// RoomType classifies a room.
type RoomType int

const (
	RoomPrivate RoomType = 1
	RoomGroup   RoomType = 2
	RoomPublic  RoomType = 3
)

// Room represents a chat room and its member list. Membership is always read
// fresh from the store; nothing in the server caches it.
type Room struct {
	ID      int64    `json:"id"`
	Type    RoomType `json:"room_type"`
	Name    string   `json:"room_name"`
	Members []uint64 `json:"members"`
}

// HasMember reports whether id is in the room's member list.
func (r *Room) HasMember(id uint64) bool {
	for _, m := range r.Members {
		if m == id {
			return true
		}
	}
	return false
}
