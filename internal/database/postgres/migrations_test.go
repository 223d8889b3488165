package postgres

import (
	"testing"
	"testing/fstest"
)

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_sessions.sql": {Data: []byte("CREATE TABLE sessions ();")},
		"migrations/001_cases.sql":    {Data: []byte("CREATE TABLE cases ();")},
		"migrations/003_index.sql":    {Data: []byte("CREATE INDEX ...;")},
		"migrations/README.md":        {Data: []byte("notes")},
	}

	tests := []struct {
		name    string
		applied map[string]bool
		want    []string
	}{
		{"fresh database", nil, []string{"001_cases.sql", "002_sessions.sql", "003_index.sql"}},
		{"partially applied", map[string]bool{"001_cases.sql": true}, []string{"002_sessions.sql", "003_index.sql"}},
		{"up to date", map[string]bool{"001_cases.sql": true, "002_sessions.sql": true, "003_index.sql": true}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pendingMigrations(fsys, tt.applied)
			if err != nil {
				t.Fatalf("pendingMigrations() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("got[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPendingMigrations_Embedded(t *testing.T) {
	files, err := pendingMigrations(migrationsFS, nil)
	if err != nil {
		t.Fatalf("pendingMigrations() error = %v", err)
	}
	if len(files) == 0 || files[0] != "001_cases.sql" {
		t.Errorf("embedded migrations = %v, want 001_cases.sql first", files)
	}
}
