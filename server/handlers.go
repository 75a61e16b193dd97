package server

import (
	"errors"
	"net"
	"time"

	"msgd/db"
	"msgd/protocol"

	"github.com/rs/zerolog/log"
)

func (s *Server) handlePing(_ *session, _ *protocol.Request) string {
	return protocol.Pong()
}

func (s *Server) handleRegister(sess *session, req *protocol.Request) string {
	username, password := req.Args[0], req.Args[1]
	if username == "" || password == "" {
		return protocol.Error("Username and password required")
	}

	err := s.db.CreateUser(username, password, remoteIP(sess.remote))
	if errors.Is(err, db.ErrUserExists) {
		return protocol.Error("Nickname already taken")
	}
	if err != nil {
		log.Error().Err(err).Str("user", username).Msg("register failed")
		return protocol.Error("Internal error")
	}

	log.Info().Str("user", username).Str("remote", sess.remote).Msg("user registered")
	return protocol.OK("Registration successful. You can now log in.")
}

func (s *Server) handleLogin(sess *session, req *protocol.Request) string {
	username, password := req.Args[0], req.Args[1]

	err := s.db.VerifyCredentials(username, password)
	switch {
	case errors.Is(err, db.ErrUnknownUser):
		return protocol.Error("Nickname not found")
	case errors.Is(err, db.ErrWrongPassword):
		return protocol.Error("Password incorrect")
	case err != nil:
		log.Error().Err(err).Str("user", username).Msg("login failed")
		return protocol.Error("Internal error")
	}

	s.registry.bind(sess, username)
	log.Info().Str("user", username).Str("remote", sess.remote).Msg("user logged in")
	return protocol.OK("Login successful")
}

func (s *Server) handleSend(sess *session, req *protocol.Request) string {
	from, to, body := req.Args[0], req.Args[1], req.Args[2]
	if to == "" || body == "" {
		return protocol.Error("Recipient and message required")
	}

	// Recipient existence is not checked; messages to unregistered
	// usernames are stored like any other.
	if err := s.db.InsertMessage(from, to, body); err != nil {
		log.Error().Err(err).Str("from", from).Str("to", to).Msg("send failed")
		return protocol.Error("Internal error")
	}

	return protocol.OK("Message sent")
}

func (s *Server) handleGet(_ *session, req *protocol.Request) string {
	username := req.Args[0]

	messages, err := s.db.MessagesFor(username)
	if err != nil {
		log.Error().Err(err).Str("user", username).Msg("get failed")
		return protocol.Error("Internal error")
	}

	records := make([][]string, 0, len(messages))
	for _, m := range messages {
		records = append(records, []string{m.From, m.Body, m.Timestamp.Format(time.RFC3339)})
	}

	return protocol.OKList(records)
}

func (s *Server) handleGetUsers(_ *session, req *protocol.Request) string {
	exclude := req.Args[0]

	users, err := s.db.AllUsersExcept(exclude)
	if err != nil {
		log.Error().Err(err).Msg("get users failed")
		return protocol.Error("Internal error")
	}

	records := make([][]string, 0, len(users))
	for _, u := range users {
		flag := "0"
		if s.registry.online(u) {
			flag = "1"
		}
		records = append(records, []string{u, flag})
	}

	return protocol.OKList(records)
}

func remoteIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
