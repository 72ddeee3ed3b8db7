package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jiangkunoa/chat-practise/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chat.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_type INTEGER NOT NULL,
		room_name TEXT NOT NULL,
		members TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS chat_msgs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id INTEGER NOT NULL,
		message TEXT,
		sender INTEGER NOT NULL,
		send_time VARCHAR(50)
	);

	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
	CREATE INDEX IF NOT EXISTS idx_rooms_room_type ON rooms(room_type);
	CREATE INDEX IF NOT EXISTS idx_chat_msgs_room_id ON chat_msgs(room_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash) VALUES (?, ?)
	`, username, passwordHash)
	return err
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at FROM users WHERE id = ?
	`, id))
}

// GetUserByName retrieves a user by username.
func (s *SQLiteStore) GetUserByName(ctx context.Context, username string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at FROM users WHERE username = ?
	`, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetUsersByID retrieves all users whose id is in ids. Missing ids are
// silently absent from the result.
func (s *SQLiteStore) GetUsersByID(ctx context.Context, ids []uint64) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, username, password_hash, created_at FROM users WHERE id IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUserPassword replaces a user's password hash.
func (s *SQLiteStore) UpdateUserPassword(ctx context.Context, id uint64, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ? WHERE id = ?
	`, passwordHash, id)
	return err
}

// CreateRoom creates a new room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, roomType models.RoomType, name string, members []uint64) (*models.Room, error) {
	encoded, err := encodeMembers(members)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (room_type, room_name, members) VALUES (?, ?, ?)
	`, int(roomType), name, encoded)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetRoom(ctx, id)
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	room := &models.Room{}
	var roomType int
	var rawMembers string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, room_type, room_name, members FROM rooms WHERE id = ?
	`, id).Scan(&room.ID, &roomType, &room.Name, &rawMembers)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	room.Type = models.RoomType(roomType)
	room.Members, err = decodeMembers(rawMembers)
	if err != nil {
		return nil, err
	}
	return room, nil
}

// GetRoomsByMember retrieves rooms whose member list contains the given user.
// The LIKE match is a coarse prefilter over the JSON column; exact membership
// is checked after decoding.
func (s *SQLiteStore) GetRoomsByMember(ctx context.Context, member uint64) ([]models.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_type, room_name, members FROM rooms WHERE members LIKE ?
	`, fmt.Sprintf("%%%d%%", member))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms, err := scanRoomRows(rows)
	if err != nil {
		return nil, err
	}

	matched := rooms[:0]
	for _, room := range rooms {
		if containsMember(room.Members, member) {
			matched = append(matched, room)
		}
	}
	return matched, nil
}

// GetRoomsByType retrieves all rooms of the given type.
func (s *SQLiteStore) GetRoomsByType(ctx context.Context, roomType models.RoomType) ([]models.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_type, room_name, members FROM rooms WHERE room_type = ?
	`, int(roomType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRoomRows(rows)
}

// UpdateRoomMembers replaces a room's member list.
func (s *SQLiteStore) UpdateRoomMembers(ctx context.Context, id int64, members []uint64) error {
	encoded, err := encodeMembers(members)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE rooms SET members = ? WHERE id = ?
	`, encoded, id)
	return err
}

// CreateMessage persists a new chat message and returns it.
func (s *SQLiteStore) CreateMessage(ctx context.Context, roomID int64, body string, sender uint64) (*models.ChatMessage, error) {
	sendTime := time.Now().Format(models.SendTimeFormat)

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_msgs (room_id, message, sender, send_time) VALUES (?, ?, ?, ?)
	`, roomID, body, sender, sendTime)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &models.ChatMessage{
		ID:       id,
		RoomID:   roomID,
		Message:  body,
		Sender:   sender,
		SendTime: sendTime,
	}, nil
}

// GetMessages retrieves all messages for a room in id order.
func (s *SQLiteStore) GetMessages(ctx context.Context, roomID int64) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, message, sender, send_time
		FROM chat_msgs WHERE room_id = ? ORDER BY id
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessageRows(rows)
}

// GetMessagesSince retrieves messages for a room with id greater than lastID.
func (s *SQLiteStore) GetMessagesSince(ctx context.Context, roomID int64, lastID int64) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, message, sender, send_time
		FROM chat_msgs WHERE room_id = ? AND id > ? ORDER BY id
	`, roomID, lastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessageRows(rows)
}

func scanRoomRows(rows *sql.Rows) ([]models.Room, error) {
	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		var roomType int
		var rawMembers string
		if err := rows.Scan(&room.ID, &roomType, &room.Name, &rawMembers); err != nil {
			return nil, err
		}
		room.Type = models.RoomType(roomType)
		members, err := decodeMembers(rawMembers)
		if err != nil {
			return nil, err
		}
		room.Members = members
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func scanMessageRows(rows *sql.Rows) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Message, &msg.Sender, &msg.SendTime); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
