package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jiangkunoa/chat-practise/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id BIGSERIAL PRIMARY KEY,
		room_type INT NOT NULL,
		room_name TEXT NOT NULL,
		members TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS chat_msgs (
		id BIGSERIAL PRIMARY KEY,
		room_id BIGINT NOT NULL,
		message TEXT,
		sender BIGINT NOT NULL,
		send_time VARCHAR(50)
	);

	CREATE INDEX IF NOT EXISTS idx_rooms_room_type ON rooms(room_type);
	CREATE INDEX IF NOT EXISTS idx_chat_msgs_room_id ON chat_msgs(room_id);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, username, passwordHash string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (username, password_hash) VALUES ($1, $2)
	`, username, passwordHash)
	return err
}

// GetUser retrieves a user by ID.
func (s *PostgresStore) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at FROM users WHERE id = $1
	`, int64(id)))
}

// GetUserByName retrieves a user by username.
func (s *PostgresStore) GetUserByName(ctx context.Context, username string) (*models.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at FROM users WHERE username = $1
	`, username))
}

func (s *PostgresStore) scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	var id int64
	err := row.Scan(&id, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID = uint64(id)
	return user, nil
}

// GetUsersByID retrieves all users whose id is in ids.
func (s *PostgresStore) GetUsersByID(ctx context.Context, ids []uint64) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	args := make([]int64, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, username, password_hash, created_at FROM users WHERE id = ANY($1)
	`, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		var id int64
		if err := rows.Scan(&id, &user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.ID = uint64(id)
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUserPassword replaces a user's password hash.
func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id uint64, passwordHash string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET password_hash = $1 WHERE id = $2
	`, passwordHash, int64(id))
	return err
}

// CreateRoom creates a new room.
func (s *PostgresStore) CreateRoom(ctx context.Context, roomType models.RoomType, name string, members []uint64) (*models.Room, error) {
	encoded, err := encodeMembers(members)
	if err != nil {
		return nil, err
	}

	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO rooms (room_type, room_name, members) VALUES ($1, $2, $3) RETURNING id
	`, int(roomType), name, encoded).Scan(&id)
	if err != nil {
		return nil, err
	}
	return s.GetRoom(ctx, id)
}

// GetRoom retrieves a room by ID.
func (s *PostgresStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	room := &models.Room{}
	var roomType int
	var rawMembers string

	err := s.pool.QueryRow(ctx, `
		SELECT id, room_type, room_name, members FROM rooms WHERE id = $1
	`, id).Scan(&room.ID, &roomType, &room.Name, &rawMembers)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
func (s *PostgresStore) GetRoomsByMember(ctx context.Context, member uint64) ([]models.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_type, room_name, members FROM rooms WHERE members LIKE $1
	`, fmt.Sprintf("%%%d%%", member))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms, err := collectRooms(rows)
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
func (s *PostgresStore) GetRoomsByType(ctx context.Context, roomType models.RoomType) ([]models.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_type, room_name, members FROM rooms WHERE room_type = $1
	`, int(roomType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRooms(rows)
}

// UpdateRoomMembers replaces a room's member list.
func (s *PostgresStore) UpdateRoomMembers(ctx context.Context, id int64, members []uint64) error {
	encoded, err := encodeMembers(members)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE rooms SET members = $1 WHERE id = $2
	`, encoded, id)
	return err
}

// CreateMessage persists a new chat message and returns it.
func (s *PostgresStore) CreateMessage(ctx context.Context, roomID int64, body string, sender uint64) (*models.ChatMessage, error) {
	sendTime := time.Now().Format(models.SendTimeFormat)

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chat_msgs (room_id, message, sender, send_time)
		VALUES ($1, $2, $3, $4) RETURNING id
	`, roomID, body, int64(sender), sendTime).Scan(&id)
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
func (s *PostgresStore) GetMessages(ctx context.Context, roomID int64) ([]models.ChatMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, message, sender, send_time
		FROM chat_msgs WHERE room_id = $1 ORDER BY id
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

// GetMessagesSince retrieves messages for a room with id greater than lastID.
func (s *PostgresStore) GetMessagesSince(ctx context.Context, roomID int64, lastID int64) ([]models.ChatMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, message, sender, send_time
		FROM chat_msgs WHERE room_id = $1 AND id > $2 ORDER BY id
	`, roomID, lastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

func collectRooms(rows pgx.Rows) ([]models.Room, error) {
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

func collectMessages(rows pgx.Rows) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		var sender int64
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Message, &sender, &msg.SendTime); err != nil {
			return nil, err
		}
		msg.Sender = uint64(sender)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
