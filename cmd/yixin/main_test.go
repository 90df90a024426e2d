package main

import (
	"path/filepath"
	"testing"
)

func TestRederiveDSN(t *testing.T) {
	envStateDir := "/var/lib/yixin"
	envDSN := filepath.Join(envStateDir, DefaultDBFileName)

	// Overriding the state dir moves the default SQLite DSN with it.
	dsn, updated := rederiveDSN(envDSN, envDSN, envStateDir, "/tmp/custom")
	if !updated {
		t.Fatal("expected DSN update when state dir is overridden")
	}
	if dsn != filepath.Join("/tmp/custom", DefaultDBFileName) {
		t.Errorf("expected DSN under the new state dir, got %q", dsn)
	}

	// An explicitly set DSN always wins over the state dir.
	dsn, updated = rederiveDSN("/elsewhere/data.db", envDSN, envStateDir, "/tmp/custom")
	if updated {
		t.Error("explicit DSN must not be rederived")
	}
	if dsn != "/elsewhere/data.db" {
		t.Errorf("explicit DSN changed: %q", dsn)
	}

	// A non-default env DSN (e.g. a Postgres URL) is left alone.
	pgDSN := "postgres://localhost/yixin"
	dsn, updated = rederiveDSN(pgDSN, pgDSN, envStateDir, "/tmp/custom")
	if updated {
		t.Error("non-default DSN must not be rederived")
	}
	if dsn != pgDSN {
		t.Errorf("non-default DSN changed: %q", dsn)
	}

	// Unchanged state dir means nothing to do.
	if _, updated = rederiveDSN(envDSN, envDSN, envStateDir, envStateDir); updated {
		t.Error("unchanged state dir must not trigger an update")
	}
}
