package db

import (
	"database/sql"
	"errors"
	"time"

	"msgd/models"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists    = errors.New("user already exists")
	ErrUnknownUser   = errors.New("unknown user")
	ErrWrongPassword = errors.New("wrong password")
)

type DB struct {
	conn *sql.DB
}

func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			from_user TEXT NOT NULL,
			to_user TEXT NOT NULL,
			body TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_to ON messages(to_user, timestamp)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return err
		}
	}

	return db.migrate()
}

// migrate adds columns introduced after the initial schema. Existing
// installations are upgraded in place; data is never dropped.
func (db *DB) migrate() error {
	if !db.columnExists("users", "ip") {
		if _, err := db.conn.Exec("ALTER TABLE users ADD COLUMN ip TEXT NOT NULL DEFAULT ''"); err != nil {
			return err
		}
	}
	return nil
}

// columnExists checks if a column exists in a table
func (db *DB) columnExists(table, column string) bool {
	query := "SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?"
	var count int
	err := db.conn.QueryRow(query, table, column).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// CreateUser inserts a new user with a bcrypt-hashed password. The
// UNIQUE constraint on username closes the check-then-insert race;
// a violation is reported as ErrUserExists.
func (db *DB) CreateUser(username, password, ip string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = db.conn.Exec(
		"INSERT INTO users (username, password, ip) VALUES (?, ?, ?)",
		username, string(hashed), ip,
	)

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrUserExists
	}
	return err
}

// VerifyCredentials distinguishes an unknown username from a wrong
// password so callers can report distinct reasons.
func (db *DB) VerifyCredentials(username, password string) error {
	var hashed string
	err := db.conn.QueryRow("SELECT password FROM users WHERE username = ?", username).Scan(&hashed)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUnknownUser
	}
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) != nil {
		return ErrWrongPassword
	}
	return nil
}

// InsertMessage stores a message with a timestamp assigned here, at
// write time. Recipient existence is deliberately not checked.
func (db *DB) InsertMessage(from, to, body string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339)
	_, err := db.conn.Exec(
		"INSERT INTO messages (from_user, to_user, body, timestamp) VALUES (?, ?, ?, ?)",
		from, to, body, timestamp,
	)
	return err
}

// MessagesFor returns all messages addressed to username, ascending by
// timestamp. The id breaks ties between same-second messages so insert
// order is preserved within a second.
func (db *DB) MessagesFor(username string) ([]models.Message, error) {
	query := `
		SELECT id, from_user, to_user, body, timestamp
		FROM messages
		WHERE to_user = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := db.conn.Query(query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var timestampStr string
		if err := rows.Scan(&m.ID, &m.From, &m.To, &m.Body, &timestampStr); err != nil {
			return nil, err
		}

		timestamp, err := time.Parse(time.RFC3339, timestampStr)
		if err != nil {
			return nil, err
		}
		m.Timestamp = timestamp

		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// AllUsersExcept returns every registered username except the given
// one, alphabetically ordered.
func (db *DB) AllUsersExcept(username string) ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT username FROM users WHERE username != ? ORDER BY username ASC",
		username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}
