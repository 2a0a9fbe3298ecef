package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/db"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/db/migrate"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	if err := migrate.Run(dsn, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	conn, err := db.Open(context.Background(), dsn, db.PoolConfig{MaxOpenConns: 16})
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPostgresRepository(t *testing.T) {
	conn := openTestDB(t)
	repo := NewPostgresRepository(conn)
	repositoryContract(t, func(t *testing.T) (Repository, string) {
		userID := uuid.NewString()
		_, err := conn.Exec(`INSERT INTO users (id, email) VALUES ($1, $2)`, userID, userID+"@example.test")
		if err != nil {
			t.Fatalf("insert user: %v", err)
		}
		return repo, userID
	})
}
