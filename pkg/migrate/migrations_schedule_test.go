package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haneul-labs/crm-delivery/pkg/migrate"
)

func TestScheduledEventsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_scheduled_events.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no scheduled events migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS scheduled_events",
		"ux_scheduled_events_event_id",
		"completed       BOOLEAN NOT NULL DEFAULT FALSE",
		"is_not_consumed BOOLEAN NOT NULL DEFAULT FALSE",
		"canceled        BOOLEAN NOT NULL DEFAULT FALSE",
		"DROP TABLE IF EXISTS scheduled_events",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestSendHistoriesMigrationContainsDedupIndex(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_email_send_histories.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no send histories migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS email_send_histories",
		"ux_email_send_histories_event_user",
		"ON email_send_histories (event_id, user_id)",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migrations dir failed validation: %v", err)
	}
}
