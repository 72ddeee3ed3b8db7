package chat

import "github.com/jiangkunoa/chat-practise/internal/models"

// Envelope is the application-level unit carried in each frame after the
// handshake. Data is itself JSON, interpreted per Cmd. The same shape flows
// in both directions; responses use the Rsp-prefixed command names.
type Envelope struct {
	Cmd  string `json:"cmd"`
	Data string `json:"data"`
}

// Request command names.
const (
	CmdRooms      = "Rooms"
	CmdCreateRoom = "CreateRoom"
	CmdEnter      = "Enter"
	CmdRoomMsgs   = "RoomMsgs"
	CmdSendMsg    = "SendMsg"
)

// Response command names.
const (
	CmdRspRooms    = "RspRooms"
	CmdRspRoomMsgs = "RspRoomMsgs"
	CmdRspSendMsg  = "RspSendMsg"
)

// CreateRoomRequest is the payload of a CreateRoom command.
type CreateRoomRequest struct {
	RoomType int      `json:"room_type"`
	RoomName string   `json:"room_name"`
	Members  []uint64 `json:"members"`
}

// EnterRequest is the payload of an Enter command.
type EnterRequest struct {
	RoomID int64 `json:"room_id"`
}

// RoomMsgsRequest is the payload of a RoomMsgs command. LastID, when set,
// restricts the reply to messages the caller has not seen yet.
type RoomMsgsRequest struct {
	RoomID int64  `json:"room_id"`
	LastID *int64 `json:"last_id,omitempty"`
}

// SendMsgRequest is the payload of a SendMsg command.
type SendMsgRequest struct {
	RoomID int64  `json:"room_id"`
	Msg    string `json:"msg"`
}

// RoomsResponse is the payload of RspRooms.
type RoomsResponse struct {
	Rooms []models.Room `json:"rooms"`
}

// RoomMessage pairs a message with its sender's display name.
type RoomMessage struct {
	Msg      models.ChatMessage `json:"msg"`
	UserName string             `json:"user_name"`
}

// RoomMsgsResponse is the payload of RspRoomMsgs.
type RoomMsgsResponse struct {
	RoomID int64         `json:"room_id"`
	Msgs   []RoomMessage `json:"msgs"`
}
