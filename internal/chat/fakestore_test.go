package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jiangkunoa/chat-practise/internal/models"
)

// fakeStore is an in-memory DataStore for dispatcher and session tests.
type fakeStore struct {
	mu         sync.Mutex
	users      map[uint64]models.User
	rooms      map[int64]models.Room
	msgs       []models.ChatMessage
	nextRoomID int64
	nextMsgID  int64

	failCreateMessage bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[uint64]models.User),
		rooms: make(map[int64]models.Room),
	}
}

func (f *fakeStore) addUser(id uint64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = models.User{ID: id, Username: name, CreatedAt: time.Now()}
}

func (f *fakeStore) addRoom(id int64, roomType models.RoomType, name string, members []uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id >= f.nextRoomID {
		f.nextRoomID = id + 1
	}
	f.rooms[id] = models.Room{ID: id, Type: roomType, Name: name, Members: members}
}

func (f *fakeStore) room(id int64) models.Room {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rooms[id]
}

func (f *fakeStore) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func (f *fakeStore) Close() {}

func (f *fakeStore) Ping(_ context.Context) error { return nil }

func (f *fakeStore) CreateUser(_ context.Context, username, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uint64(len(f.users) + 1)
	f.users[id] = models.User{ID: id, Username: username, PasswordHash: passwordHash}
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, id uint64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[id]; ok {
		u := user
		return &u, nil
	}
	return nil, nil
}

func (f *fakeStore) GetUserByName(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetUsersByID(_ context.Context, ids []uint64) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var users []models.User
	for _, id := range ids {
		if user, ok := f.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, id uint64, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return errors.New("no such user")
	}
	user.PasswordHash = passwordHash
	f.users[id] = user
	return nil
}

func (f *fakeStore) CreateRoom(_ context.Context, roomType models.RoomType, name string, members []uint64) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextRoomID++
	room := models.Room{ID: f.nextRoomID, Type: roomType, Name: name, Members: append([]uint64(nil), members...)}
	f.rooms[room.ID] = room
	r := room
	return &r, nil
}

func (f *fakeStore) GetRoom(_ context.Context, id int64) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.rooms[id]; ok {
		r := room
		r.Members = append([]uint64(nil), room.Members...)
		return &r, nil
	}
	return nil, nil
}

func (f *fakeStore) GetRoomsByMember(_ context.Context, member uint64) ([]models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rooms []models.Room
	for _, room := range f.rooms {
		if room.HasMember(member) {
			rooms = append(rooms, room)
		}
	}
	return rooms, nil
}

func (f *fakeStore) GetRoomsByType(_ context.Context, roomType models.RoomType) ([]models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rooms []models.Room
	for _, room := range f.rooms {
		if room.Type == roomType {
			rooms = append(rooms, room)
		}
	}
	return rooms, nil
}

func (f *fakeStore) UpdateRoomMembers(_ context.Context, id int64, members []uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return errors.New("no such room")
	}
	room.Members = append([]uint64(nil), members...)
	f.rooms[id] = room
	return nil
}

func (f *fakeStore) CreateMessage(_ context.Context, roomID int64, body string, sender uint64) (*models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateMessage {
		return nil, errors.New("storage unavailable")
	}
	f.nextMsgID++
	msg := models.ChatMessage{
		ID:       f.nextMsgID,
		RoomID:   roomID,
		Message:  body,
		Sender:   sender,
		SendTime: time.Now().Format(models.SendTimeFormat),
	}
	f.msgs = append(f.msgs, msg)
	m := msg
	return &m, nil
}

func (f *fakeStore) GetMessages(_ context.Context, roomID int64) ([]models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var msgs []models.ChatMessage
	for _, msg := range f.msgs {
		if msg.RoomID == roomID {
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}

func (f *fakeStore) GetMessagesSince(_ context.Context, roomID int64, lastID int64) ([]models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var msgs []models.ChatMessage
	for _, msg := range f.msgs {
		if msg.RoomID == roomID && msg.ID > lastID {
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}
