package protocol

import (
	"errors"
	"strings"
)

var (
	ErrMalformed = errors.New("invalid request format")
	ErrUnknown   = errors.New("unknown command")
)

// Command keywords. Case-sensitive on the wire.
const (
	CmdRegister = "REGISTER"
	CmdLogin    = "LOGIN"
	CmdSend     = "SEND"
	CmdGet      = "GET"
	CmdGetUsers = "GET_USERS"
	CmdPing     = "PING"
)

// argc maps each command to its required argument count.
var argc = map[string]int{
	CmdRegister: 2,
	CmdLogin:    2,
	CmdSend:     3,
	CmdGet:      1,
	CmdGetUsers: 1,
	CmdPing:     0,
}

type Request struct {
	Command string
	Args    []string
}

// Parse decodes a single request line. Fields are separated by an
// unescaped '|'; field values must not contain the delimiter themselves.
func Parse(line string) (*Request, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	// PING carries no arguments and skips the field-count check.
	if line == CmdPing {
		return &Request{Command: CmdPing}, nil
	}

	parts := strings.Split(line, "|")
	if len(parts) < 2 {
		return nil, ErrMalformed
	}

	want, ok := argc[parts[0]]
	if !ok {
		return nil, ErrUnknown
	}
	if len(parts)-1 < want {
		return nil, ErrMalformed
	}

	return &Request{Command: parts[0], Args: parts[1:]}, nil
}

// Encode renders the request back into its wire form.
func (r *Request) Encode() string {
	if len(r.Args) == 0 {
		return r.Command
	}
	return r.Command + "|" + strings.Join(r.Args, "|")
}

func OK(payload string) string {
	if payload == "" {
		return "OK"
	}
	return "OK|" + payload
}

// OKList encodes a list response: each record's fields are joined
// with '|' and records with '||'. An empty list encodes as "OK|".
func OKList(records [][]string) string {
	items := make([]string, 0, len(records))
	for _, rec := range records {
		items = append(items, strings.Join(rec, "|"))
	}
	return "OK|" + strings.Join(items, "||")
}

func Error(reason string) string {
	return "ERROR|" + reason
}

func Pong() string {
	return "PONG"
}
