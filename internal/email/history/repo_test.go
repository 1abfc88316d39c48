package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/haneul-labs/crm-delivery/pkg/db/models"
	"github.com/haneul-labs/crm-delivery/pkg/enums"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.EmailSendHistory{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return conn
}

func TestRecordSendDeduplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDB(t))

	entry := &models.EmailSendHistory{
		EventID:    "evt-1",
		UserID:     7,
		UserEmail:  "a@crm.example",
		SendStatus: enums.SendStatusSent,
	}
	inserted, err := repo.RecordSend(ctx, entry)
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	if !inserted {
		t.Fatal("first record must insert")
	}

	duplicate := &models.EmailSendHistory{
		EventID:    "evt-1",
		UserID:     7,
		UserEmail:  "a@crm.example",
		SendStatus: enums.SendStatusSent,
	}
	inserted, err = repo.RecordSend(ctx, duplicate)
	if err != nil {
		t.Fatalf("duplicate record: %v", err)
	}
	if inserted {
		t.Fatal("duplicate record must be a no-op")
	}

	entries, err := repo.ListByEventID(ctx, "evt-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single row, got %d", len(entries))
	}
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDB(t))

	if _, err := repo.RecordSend(ctx, &models.EmailSendHistory{
		EventID:    "evt-1",
		UserID:     7,
		UserEmail:  "a@crm.example",
		SendStatus: enums.SendStatusSent,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	exists, err := repo.Exists(ctx, "evt-1", 7)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("expected recorded pair to exist")
	}

	exists, err = repo.Exists(ctx, "evt-1", 8)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("unrecorded pair must not exist")
	}
}

func TestListByEventIDOrdersAndFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDB(t))

	for _, seed := range []struct {
		eventID string
		userID  int64
		status  enums.SendStatus
	}{
		{"evt-1", 9, enums.SendStatusSent},
		{"evt-1", 3, enums.SendStatusFailed},
		{"evt-2", 1, enums.SendStatusSent},
	} {
		if _, err := repo.RecordSend(ctx, &models.EmailSendHistory{
			EventID:    seed.eventID,
			UserID:     seed.userID,
			SendStatus: seed.status,
		}); err != nil {
			t.Fatalf("record %s/%d: %v", seed.eventID, seed.userID, err)
		}
	}

	entries, err := repo.ListByEventID(ctx, "evt-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(entries))
	}
	if entries[0].UserID != 3 || entries[1].UserID != 9 {
		t.Fatalf("expected user id order, got %d then %d", entries[0].UserID, entries[1].UserID)
	}
	if entries[0].SendStatus != enums.SendStatusFailed {
		t.Fatalf("unexpected status %s", entries[0].SendStatus)
	}
}
