package store

import (
	"context"

	"github.com/jiangkunoa/chat-practise/internal/models"
)

// DataStore defines the interface for persistent storage of users, rooms and
// messages. Both PostgresStore and SQLiteStore implement this interface.
// Lookups return (nil, nil) when the row does not exist.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, username, passwordHash string) error
	GetUser(ctx context.Context, id uint64) (*models.User, error)
	GetUserByName(ctx context.Context, username string) (*models.User, error)
	GetUsersByID(ctx context.Context, ids []uint64) ([]models.User, error)
	UpdateUserPassword(ctx context.Context, id uint64, passwordHash string) error

	// Room operations
	CreateRoom(ctx context.Context, roomType models.RoomType, name string, members []uint64) (*models.Room, error)
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	GetRoomsByMember(ctx context.Context, member uint64) ([]models.Room, error)
	GetRoomsByType(ctx context.Context, roomType models.RoomType) ([]models.Room, error)
	UpdateRoomMembers(ctx context.Context, id int64, members []uint64) error

	// Message operations
	CreateMessage(ctx context.Context, roomID int64, body string, sender uint64) (*models.ChatMessage, error)
	GetMessages(ctx context.Context, roomID int64) ([]models.ChatMessage, error)
	GetMessagesSince(ctx context.Context, roomID int64, lastID int64) ([]models.ChatMessage, error)
}
