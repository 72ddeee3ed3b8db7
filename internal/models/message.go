package models

// SendTimeFormat is the layout for ChatMessage.SendTime.
const SendTimeFormat = "2006-01-02 15:04:05"

// ChatMessage represents one persisted room message. Immutable once created.
type ChatMessage struct {
	ID       int64  `json:"id"`
	RoomID   int64  `json:"room_id"`
	Message  string `json:"message"`
	Sender   uint64 `json:"sender"`
	SendTime string `json:"send_time"`
}
