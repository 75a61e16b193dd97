package models

import "time"

type User struct {
	ID       int64
	Username string
	Password string // bcrypt hash
	IP       string // remote address at registration
}

type Message struct {
	ID        int64
	From      string
	To        string
	Body      string
	Timestamp time.Time // assigned by the store at insert time
}
