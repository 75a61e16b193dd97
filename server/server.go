package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"msgd/db"
	"msgd/protocol"

	"github.com/rs/zerolog/log"
)

type Server struct {
	db       *db.DB
	config   *Config
	registry *registry
	dispatch map[string]handlerFunc

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

type Config struct {
	Addr         string
	WriteTimeout time.Duration
}

type handlerFunc func(*session, *protocol.Request) string

func New(database *db.DB, config *Config) *Server {
	s := &Server{
		db:       database,
		config:   config,
		registry: newRegistry(),
	}
	s.dispatch = map[string]handlerFunc{
		protocol.CmdRegister: s.handleRegister,
		protocol.CmdLogin:    s.handleLogin,
		protocol.CmdSend:     s.handleSend,
		protocol.CmdGet:      s.handleGet,
		protocol.CmdGetUsers: s.handleGetUsers,
		protocol.CmdPing:     s.handlePing,
	}
	return s
}

// Start binds the listen address and accepts connections until
// Shutdown is called. A failed accept never stops the loop.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log.Info().Str("addr", listener.Addr().String()).Msg("server listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			log.Error().Err(err).Msg("accept failed")
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection owns one client connection: it registers the
// session for presence, then loops read-process-write until the peer
// closes or a transport fault occurs. Bad requests get an ERROR
// response and the loop continues.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	sess := &session{conn: conn, remote: conn.RemoteAddr().String()}
	s.registry.add(sess)
	activeConnections.Inc()

	defer func() {
		s.registry.remove(sess)
		activeConnections.Dec()
		if sess.username != "" {
			log.Info().Str("remote", sess.remote).Str("user", sess.username).Msg("client disconnected")
		} else {
			log.Info().Str("remote", sess.remote).Msg("client disconnected")
		}
	}()

	log.Info().Str("remote", sess.remote).Msg("client connected")

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				log.Warn().Err(err).Str("remote", sess.remote).Msg("read failed")
			}
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		response := s.process(sess, line)
		if err := s.write(conn, response); err != nil {
			log.Warn().Err(err).Str("remote", sess.remote).Msg("write failed")
			return
		}
	}
}

// process parses one request line and dispatches it. Codec and domain
// errors become ERROR responses; nothing here closes the connection.
func (s *Server) process(sess *session, line string) string {
	req, err := protocol.Parse(line)
	if err != nil {
		errorsTotal.Inc()
		if errors.Is(err, protocol.ErrUnknown) {
			return protocol.Error("Unknown command")
		}
		return protocol.Error("Invalid request format")
	}

	requestsTotal.WithLabelValues(req.Command).Inc()

	handler, ok := s.dispatch[req.Command]
	if !ok {
		errorsTotal.Inc()
		return protocol.Error("Unknown command")
	}

	response := handler(sess, req)
	if strings.HasPrefix(response, "ERROR|") {
		errorsTotal.Inc()
	}
	return response
}

func (s *Server) write(conn net.Conn, response string) error {
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	_, err := conn.Write([]byte(response + "\n"))
	return err
}

// Stats returns server statistics as a formatted string.
func (s *Server) Stats() string {
	connections, users := s.registry.stats()
	return "connections=" + strconv.Itoa(connections) + ",users=" + strings.Join(users, ";")
}

// Shutdown stops accepting and closes every live connection. Handler
// goroutines exit through their normal read-error path.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closed = true
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}

	for _, sess := range s.registry.snapshot() {
		sess.conn.Close()
	}
}
