package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/user/domain"
)

func TestMemoryRepository_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	now := time.Now().UTC()
	u := &domain.User{ID: "u1", Email: "A@X.com", Roles: []string{"user", "admin"}, CreatedAt: now, UpdatedAt: now}
	if err := r.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := r.GetByEmail(ctx, " a@x.COM")
	if err != nil || got == nil {
		t.Fatalf("GetByEmail: %v, %v", got, err)
	}
	if got.ID != "u1" || !got.HasRole("admin") || got.Roles[0] != "admin" {
		t.Errorf("unexpected user %+v", got)
	}
	if err := r.Create(ctx, &domain.User{ID: "u2", Email: "a@x.com"}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email: want ErrEmailTaken, got %v", err)
	}
	if missing, _ := r.GetByID(ctx, "nope"); missing != nil {
		t.Error("missing id should return nil")
	}
}

func TestMemoryRepository_Update(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	_ = r.Create(ctx, &domain.User{ID: "u1", Email: "a@x.com"})
	u, _ := r.GetByID(ctx, "u1")
	u.EmailVerified = true
	u.Roles = append(u.Roles, "admin")
	if err := r.Update(ctx, u); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := r.GetByID(ctx, "u1")
	if !got.EmailVerified || !got.HasRole("admin") {
		t.Errorf("update not applied: %+v", got)
	}
}
