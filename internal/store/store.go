package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Mission log statuses persisted for the audit trail.
const (
	MissionStatusCompleted = "COMPLETED"
	MissionStatusFailed    = "FAILED"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	DB *sql.DB
}

// MissionLog is one completed (or failed) mission with its final report.
type MissionLog struct {
	ID             string
	ConversationID string
	Query          string
	Response       string
	Status         string
	CreatedAt      time.Time
}

// User is an authenticated operator of the agent API.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// DocumentChunk is one embedded slice of a persisted report.
type DocumentChunk struct {
	ID             string
	ConversationID string
	Content        string
	Embedding      []float32
	CreatedAt      time.Time
}

// ChunkSearchResult pairs a retrieved chunk with its cosine distance.
type ChunkSearchResult struct {
	Chunk    DocumentChunk
	Distance float64
}

// Stats aggregates mission history for the dashboard endpoint.
type Stats struct {
	TotalMissions int
	Completed     int
	Failed        int
	Conversations int
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// SaveMissionLog records a finished mission. A zero ID is assigned.
func (s *Store) SaveMissionLog(ctx context.Context, rec *MissionLog) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status != MissionStatusCompleted && rec.Status != MissionStatusFailed {
		return fmt.Errorf("invalid mission status %q", rec.Status)
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO mission_logs (id, conversation_id, query, response, status, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())
`, rec.ID, rec.ConversationID, rec.Query, rec.Response, rec.Status)
	if err != nil {
		return fmt.Errorf("saving mission log: %w", err)
	}
	return nil
}

// ListReports returns the most recent mission logs, newest first.
func (s *Store) ListReports(ctx context.Context, limit int) ([]MissionLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, conversation_id, query, response, status, created_at
FROM mission_logs
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var out []MissionLog
	for rows.Next() {
		var m MissionLog
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Query, &m.Response, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LatestReport returns the newest completed mission for a conversation.
func (s *Store) LatestReport(ctx context.Context, conversationID string) (MissionLog, error) {
	var m MissionLog
	err := s.DB.QueryRowContext(ctx, `
SELECT id, conversation_id, query, response, status, created_at
FROM mission_logs
WHERE conversation_id = $1 AND status = $2
ORDER BY created_at DESC
LIMIT 1
`, conversationID, MissionStatusCompleted).Scan(&m.ID, &m.ConversationID, &m.Query, &m.Response, &m.Status, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return MissionLog{}, ErrNotFound
	}
	if err != nil {
		return MissionLog{}, fmt.Errorf("loading latest report: %w", err)
	}
	return m, nil
}

// MissionStats aggregates counts over the mission log.
func (s *Store) MissionStats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.DB.QueryRowContext(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status = $1),
       COUNT(*) FILTER (WHERE status = $2),
       COUNT(DISTINCT conversation_id)
FROM mission_logs
`, MissionStatusCompleted, MissionStatusFailed).Scan(&st.TotalMissions, &st.Completed, &st.Failed, &st.Conversations)
	if err != nil {
		return Stats{}, fmt.Errorf("computing stats: %w", err)
	}
	return st, nil
}

// CreateUser stores a new user with an already-hashed password.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (User, error) {
	u := User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO users (id, email, password_hash, created_at)
VALUES ($1,$2,$3,NOW())
RETURNING created_at
`, u.ID, u.Email, u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// GetUserByEmail looks up a user for login.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.DB.QueryRowContext(ctx, `
SELECT id, email, password_hash, created_at
FROM users
WHERE email = $1
`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("loading user: %w", err)
	}
	return u, nil
}

// InsertChunks persists embedded report chunks in a single transaction.
func (s *Store) InsertChunks(ctx context.Context, chunks []DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO document_chunks (id, conversation_id, content, embedding, created_at)
VALUES ($1,$2,$3,$4::vector,NOW())
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		lit, err := encodeVectorLiteral(c.Embedding)
		if err != nil {
			return fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.ConversationID, c.Content, lit); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// SearchChunks returns the topK nearest chunks for a conversation by cosine distance.
func (s *Store) SearchChunks(ctx context.Context, conversationID string, vector []float32, topK int) ([]ChunkSearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector must not be empty")
	}
	if topK <= 0 {
		topK = 3
	}
	lit, err := encodeVectorLiteral(vector)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, conversation_id, content, created_at, embedding <=> $1::vector AS distance
FROM document_chunks
WHERE conversation_id = $2
ORDER BY embedding <=> $1::vector
LIMIT $3
`, lit, conversationID, topK)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var out []ChunkSearchResult
	for rows.Next() {
		var r ChunkSearchResult
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.ConversationID, &r.Chunk.Content, &r.Chunk.CreatedAt, &r.Distance); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListChunks returns every chunk for a conversation, oldest first. Used to
// rebuild the keyword index on startup.
func (s *Store) ListChunks(ctx context.Context, conversationID string) ([]DocumentChunk, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, conversation_id, content, created_at
FROM document_chunks
WHERE conversation_id = $1
ORDER BY created_at ASC
`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var out []DocumentChunk
	for rows.Next() {
		var c DocumentChunk
		if err := rows.Scan(&c.ID, &c.ConversationID, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}
