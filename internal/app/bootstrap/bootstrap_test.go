package bootstrap

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":       ":8080",
		"  ":     ":8080",
		"9090":   ":9090",
		":7070":  ":7070",
		" 8081 ": ":8081",
	}
	for input, want := range cases {
		if got := normalizeAddr(input); got != want {
			t.Fatalf("normalizeAddr(%q): expected %q, got %q", input, want, got)
		}
	}
}

func TestBuildWorkerRequiresPostgres(t *testing.T) {
	t.Setenv("ADMISSION_GRANT_REQUIRED", "false")
	t.Setenv("POSTGRES_DSN", "")
	_ = os.Unsetenv("POSTGRES_DSN")

	_, err := BuildWorker(context.Background())
	if err == nil || !strings.Contains(err.Error(), "POSTGRES_DSN") {
		t.Fatalf("expected POSTGRES_DSN error, got %v", err)
	}
}

func TestBuildAPIFallsBackToMemoryJournal(t *testing.T) {
	t.Setenv("ADMISSION_GRANT_REQUIRED", "false")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("OTEL_ENDPOINT", "")

	app, err := BuildAPI(context.Background())
	if err != nil {
		t.Fatalf("build api: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()
	if app.postgres != nil {
		t.Fatal("expected no postgres connection without dsn")
	}
	if app.module.Journal == nil || app.module.Projector == nil {
		t.Fatalf("expected memory journal and projector to be wired")
	}
}

func TestBuildAPIRejectsBadGrantKey(t *testing.T) {
	t.Setenv("ADMISSION_GRANT_REQUIRED", "true")
	t.Setenv("ADMISSION_GRANT_ISSUER", "truevote-admission")
	t.Setenv("ADMISSION_GRANT_AUDIENCE", "campaign-ledger")
	t.Setenv("ADMISSION_GRANT_PUBLIC_KEY", "not-a-key")
	t.Setenv("POSTGRES_DSN", "")

	if _, err := BuildAPI(context.Background()); err == nil {
		t.Fatal("expected invalid grant key to fail")
	}
}
