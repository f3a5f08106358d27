package main

import (
	"path/filepath"
	"testing"
)

func TestUpThenCheck(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "messaging.db"))
	t.Setenv("LOG_LEVEL", "error")

	check := newRootCmd()
	check.SetArgs([]string{"check"})
	if err := check.Execute(); err == nil {
		t.Fatal("check on an empty database should fail")
	}

	up := newRootCmd()
	up.SetArgs([]string{"up"})
	if err := up.Execute(); err != nil {
		t.Fatalf("up error = %v", err)
	}

	check = newRootCmd()
	check.SetArgs([]string{"check"})
	if err := check.Execute(); err != nil {
		t.Fatalf("check after up error = %v", err)
	}
}
