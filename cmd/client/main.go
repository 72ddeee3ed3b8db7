// Command client is a line-mode chat client for the framed TCP protocol.
//
// Obtain a token via POST /login on the HTTP API, then:
//
//	client -addr localhost:8081 -token <jwt>
//
// Commands:
//
//	rooms
//	create <type> <name> <member-id>...
//	enter <room-id>
//	msgs <room-id> [last-id]
//	send <room-id> <text>
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/jiangkunoa/chat-practise/internal/chat"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8081", "chat server address")
	tok := flag.String("token", os.Getenv("CHAT_TOKEN"), "bearer token")
	flag.Parse()

	if *tok == "" {
		fmt.Fprintln(os.Stderr, "missing -token (or CHAT_TOKEN)")
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	defer conn.Close()

	fw := chat.NewFrameWriter(conn)
	fr := chat.NewFrameReader(conn)

	// First frame is the raw token
	if err := fw.WriteFrame([]byte(*tok)); err != nil {
		fmt.Fprintln(os.Stderr, "auth:", err)
		os.Exit(1)
	}
	fmt.Println("connected to", *addr)

	// Print everything the server pushes
	go func() {
		for {
			frame, err := fr.ReadFrame()
			if err != nil {
				fmt.Fprintln(os.Stderr, "connection closed:", err)
				os.Exit(1)
			}
			printEnvelope(frame)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		env, err := parseLine(scanner.Text())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if env == nil {
			continue
		}
		raw, err := json.Marshal(env)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if err := fw.WriteFrame(raw); err != nil {
			fmt.Fprintln(os.Stderr, "send:", err)
			os.Exit(1)
		}
	}
}

func parseLine(line string) (*chat.Envelope, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}

	switch fields[0] {
	case "rooms":
		return envelope(chat.CmdRooms, nil)

	case "create":
		if len(fields) < 3 {
			return nil, fmt.Errorf("usage: create <type> <name> <member-id>...")
		}
		roomType, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("bad room type: %v", err)
		}
		members := make([]uint64, 0, len(fields)-3)
		for _, f := range fields[3:] {
			id, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad member id %q: %v", f, err)
			}
			members = append(members, id)
		}
		return envelope(chat.CmdCreateRoom, chat.CreateRoomRequest{
			RoomType: roomType,
			RoomName: fields[2],
			Members:  members,
		})

	case "enter":
		if len(fields) != 2 {
			return nil, fmt.Errorf("usage: enter <room-id>")
		}
		roomID, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad room id: %v", err)
		}
		return envelope(chat.CmdEnter, chat.EnterRequest{RoomID: roomID})

	case "msgs":
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("usage: msgs <room-id> [last-id]")
		}
		roomID, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad room id: %v", err)
		}
		req := chat.RoomMsgsRequest{RoomID: roomID}
		if len(fields) == 3 {
			lastID, err := strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad last id: %v", err)
			}
			req.LastID = &lastID
		}
		return envelope(chat.CmdRoomMsgs, req)

	case "send":
		if len(fields) < 3 {
			return nil, fmt.Errorf("usage: send <room-id> <text>")
		}
		roomID, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad room id: %v", err)
		}
		text := strings.Join(fields[2:], " ")
		return envelope(chat.CmdSendMsg, chat.SendMsgRequest{RoomID: roomID, Msg: text})

	default:
		return nil, fmt.Errorf("unknown command %q", fields[0])
	}
}

func envelope(cmd string, payload any) (*chat.Envelope, error) {
	data := ""
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = string(raw)
	}
	return &chat.Envelope{Cmd: cmd, Data: data}, nil
}

func printEnvelope(frame []byte) {
	var env chat.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		fmt.Printf("<< %s\n", frame)
		return
	}
	fmt.Printf("<< %s %s\n", env.Cmd, env.Data)
}
