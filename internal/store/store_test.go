package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestSaveMissionLog(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	query := regexp.QuoteMeta(`
INSERT INTO mission_logs (id, conversation_id, query, response, status, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())
`)
	mock.ExpectExec(query).
		WithArgs(sqlmock.AnyArg(), "conv-1", "H100 prices", "# Report", MissionStatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := &MissionLog{
		ConversationID: "conv-1",
		Query:          "H100 prices",
		Response:       "# Report",
		Status:         MissionStatusCompleted,
	}
	if err := st.SaveMissionLog(context.Background(), rec); err != nil {
		t.Fatalf("SaveMissionLog: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected generated ID")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestSaveMissionLogRejectsInvalidStatus(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	err = st.SaveMissionLog(context.Background(), &MissionLog{Status: "RUNNING"})
	if err == nil {
		t.Fatal("want error for unknown status")
	}
}

func TestListReports(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "conversation_id", "query", "response", "status", "created_at"}).
		AddRow("m2", "conv-1", "MI300 pricing", "# Second", MissionStatusCompleted, now).
		AddRow("m1", "conv-1", "H100 pricing", "# First", MissionStatusFailed, now.Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT id, conversation_id, query, response, status, created_at
FROM mission_logs
ORDER BY created_at DESC
LIMIT $1
`)).WithArgs(10).WillReturnRows(rows)

	got, err := st.ListReports(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d reports, want 2", len(got))
	}
	if got[0].ID != "m2" || got[1].Status != MissionStatusFailed {
		t.Errorf("unexpected rows: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestLatestReportNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	mock.ExpectQuery("SELECT id, conversation_id").
		WithArgs("conv-x", MissionStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "query", "response", "status", "created_at"}))

	_, err = st.LatestReport(context.Background(), "conv-x")
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMissionStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(MissionStatusCompleted, MissionStatusFailed).
		WillReturnRows(sqlmock.NewRows([]string{"count", "completed", "failed", "conversations"}).
			AddRow(12, 10, 2, 4))

	got, err := st.MissionStats(context.Background())
	if err != nil {
		t.Fatalf("MissionStats: %v", err)
	}
	want := Stats{TotalMissions: 12, Completed: 10, Failed: 2, Conversations: 4}
	if got != want {
		t.Errorf("stats = %+v, want %+v", got, want)
	}
}

func TestCreateAndGetUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO users (id, email, password_hash, created_at)
VALUES ($1,$2,$3,NOW())
RETURNING created_at
`)).WithArgs(sqlmock.AnyArg(), "a@b.com", "hashed").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	u, err := st.CreateUser(context.Background(), "a@b.com", "hashed")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" || u.Email != "a@b.com" {
		t.Errorf("user = %+v", u)
	}

	mock.ExpectQuery("SELECT id, email, password_hash").
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).
			AddRow(u.ID, "a@b.com", "hashed", now))

	got, err := st.GetUserByEmail(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("got ID %s, want %s", got.ID, u.ID)
	}
}

func TestInsertChunks(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	insert := regexp.QuoteMeta(`
INSERT INTO document_chunks (id, conversation_id, content, embedding, created_at)
VALUES ($1,$2,$3,$4::vector,NOW())
`)
	mock.ExpectBegin()
	mock.ExpectPrepare(insert)
	mock.ExpectExec(insert).
		WithArgs(sqlmock.AnyArg(), "conv-1", "chunk one", "[0.5,-1.25]").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).
		WithArgs(sqlmock.AnyArg(), "conv-1", "chunk two", "[1,2]").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	chunks := []DocumentChunk{
		{ConversationID: "conv-1", Content: "chunk one", Embedding: []float32{0.5, -1.25}},
		{ConversationID: "conv-1", Content: "chunk two", Embedding: []float32{1, 2}},
	}
	if err := st.InsertChunks(context.Background(), chunks); err != nil {
		t.Fatalf("InsertChunks: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestInsertChunksRejectsEmptyVector(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO document_chunks")
	mock.ExpectRollback()

	err = st.InsertChunks(context.Background(), []DocumentChunk{{ConversationID: "c", Content: "x"}})
	if err == nil {
		t.Fatal("want error for empty embedding")
	}
}

func TestSearchChunks(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()

	mock.ExpectQuery("SELECT id, conversation_id, content, created_at, embedding").
		WithArgs("[1,0]", "conv-1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "content", "created_at", "distance"}).
			AddRow("c1", "conv-1", "H100 sells for $30,000", now, 0.12).
			AddRow("c2", "conv-1", "cloud rental context", now, 0.40))

	got, err := st.SearchChunks(context.Background(), "conv-1", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("SearchChunks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Distance >= got[1].Distance {
		t.Errorf("results not ordered by distance: %+v", got)
	}
}

func TestEncodeVectorLiteral(t *testing.T) {
	lit, err := encodeVectorLiteral([]float32{0.5, -1.25, 3})
	if err != nil {
		t.Fatalf("encodeVectorLiteral: %v", err)
	}
	if lit != "[0.5,-1.25,3]" {
		t.Errorf("literal = %q", lit)
	}
	if _, err := encodeVectorLiteral(nil); err == nil {
		t.Error("want error for empty vector")
	}
}
