// Package socketio implements the subset of the engine.io/socket.io wire
// format (EIO=4, websocket transport) the panel uses: the open handshake,
// connect-with-auth, event and ack packets, and ping/pong keepalive. Both
// the real-time client and the dev server build on it.
package socketio

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

type EnginePacketType byte

const (
	EngineOpen    EnginePacketType = '0'
	EngineClose   EnginePacketType = '1'
	EnginePing    EnginePacketType = '2'
	EnginePong    EnginePacketType = '3'
	EngineMessage EnginePacketType = '4'
)

type SocketPacketType byte

const (
	SocketConnect SocketPacketType = '0'
	SocketEvent   SocketPacketType = '2'
	SocketAck     SocketPacketType = '3'
)

// OpenPayload is the body of the engine.io open packet ("0{...}").
type OpenPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int64    `json:"maxPayload"`
}

// ParseOpenPacket decodes a raw frame expected to be the open handshake.
func ParseOpenPacket(msg string) (OpenPayload, error) {
	if msg == "" || EnginePacketType(msg[0]) != EngineOpen {
		return OpenPayload{}, errors.New("not an open packet")
	}
	var p OpenPayload
	if err := json.Unmarshal([]byte(msg[1:]), &p); err != nil {
		return OpenPayload{}, err
	}
	return p, nil
}

func parseOptionalNamespace(s string) (namespace string, rest string) {
	if !strings.HasPrefix(s, "/") {
		return "/", s
	}
	comma := strings.IndexByte(s, ',')
	if comma == -1 {
		return "/", s
	}
	return s[:comma], s[comma+1:]
}

func parseOptionalIDPrefix(s string) (id *int, rest string) {
	i := 0
	for i < len(s) {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		i++
	}
	if i == 0 {
		return nil, s
	}
	v, err := strconv.Atoi(s[:i])
	if err != nil {
		return nil, s
	}
	return &v, s[i:]
}

// EventPacket is a socket.io EVENT: a name plus JSON args, optionally
// carrying an ack id.
type EventPacket struct {
	Namespace string
	ID        *int
	Event     string
	Args      []json.RawMessage
}

// ParseEventPacket decodes the socket payload of an event frame (the part
// after the engine.io "4" prefix).
func ParseEventPacket(payload string) (EventPacket, error) {
	if payload == "" {
		return EventPacket{}, errors.New("empty payload")
	}
	if payload[0] != byte(SocketEvent) {
		return EventPacket{}, errors.New("not an event packet")
	}

	ns, rest := parseOptionalNamespace(payload[1:])
	id, rest := parseOptionalIDPrefix(rest)
	if !strings.HasPrefix(rest, "[") {
		return EventPacket{}, errors.New("invalid event payload")
	}

	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(rest), &arr); err != nil {
		return EventPacket{}, err
	}
	if len(arr) == 0 {
		return EventPacket{}, errors.New("missing event name")
	}
	var eventName string
	if err := json.Unmarshal(arr[0], &eventName); err != nil {
		return EventPacket{}, errors.New("invalid event name")
	}

	return EventPacket{Namespace: ns, ID: id, Event: eventName, Args: arr[1:]}, nil
}

// AckPacket is a socket.io ACK answering an event that carried an id.
type AckPacket struct {
	Namespace string
	ID        int
	Args      []json.RawMessage
}

func ParseAckPacket(payload string) (AckPacket, error) {
	if payload == "" {
		return AckPacket{}, errors.New("empty payload")
	}
	if payload[0] != byte(SocketAck) {
		return AckPacket{}, errors.New("not an ack packet")
	}

	ns, rest := parseOptionalNamespace(payload[1:])
	id, rest := parseOptionalIDPrefix(rest)
	if id == nil {
		return AckPacket{}, errors.New("missing ack id")
	}
	if !strings.HasPrefix(rest, "[") {
		return AckPacket{}, errors.New("invalid ack payload")
	}

	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(rest), &arr); err != nil {
		return AckPacket{}, err
	}
	return AckPacket{Namespace: ns, ID: *id, Args: arr}, nil
}

func writeNamespace(b *strings.Builder, namespace string) {
	if namespace != "" && namespace != "/" {
		b.WriteString(namespace)
		b.WriteByte(',')
	}
}

// BuildEventPacket encodes an event, optionally with an ack id.
func BuildEventPacket(namespace string, id *int, event string, args ...any) (string, error) {
	arr := make([]any, 0, 1+len(args))
	arr = append(arr, event)
	arr = append(arr, args...)
	data, err := json.Marshal(arr)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteByte(byte(SocketEvent))
	writeNamespace(&b, namespace)
	if id != nil {
		b.WriteString(strconv.Itoa(*id))
	}
	b.Write(data)
	return b.String(), nil
}

// BuildConnectPacket encodes the CONNECT packet. Clients put the auth
// object (token and friends) in the payload; the server answers with its
// assigned sid.
func BuildConnectPacket(namespace string, payload any) (string, error) {
	var b strings.Builder
	b.WriteByte(byte(SocketConnect))
	writeNamespace(&b, namespace)
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return "", err
		}
		b.Write(data)
	}
	return b.String(), nil
}

// ParseConnectAuth decodes the auth payload of an inbound CONNECT packet.
func ParseConnectAuth(payload string, out any) error {
	if payload == "" || payload[0] != byte(SocketConnect) {
		return errors.New("not a connect packet")
	}
	_, rest := parseOptionalNamespace(payload[1:])
	if rest == "" {
		return errors.New("missing auth payload")
	}
	return json.Unmarshal([]byte(rest), out)
}

func BuildAckPacket(namespace string, id int, args ...any) (string, error) {
	if args == nil {
		args = make([]any, 0)
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteByte(byte(SocketAck))
	writeNamespace(&b, namespace)
	b.WriteString(strconv.Itoa(id))
	b.Write(data)
	return b.String(), nil
}

// Frame prefixes a socket payload with the engine.io message marker.
func Frame(payload string) string {
	return string(EngineMessage) + payload
}
