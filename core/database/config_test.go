package database

import "testing"

func TestDSNFromFields(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "bot", Password: "p@ss", Name: "news"}
	want := "postgres://bot:p%40ss@db:5432/news?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
}

func TestDSNPrefersURL(t *testing.T) {
	cfg := Config{URL: "postgres://u:p@h:1/x?sslmode=require", Host: "ignored"}
	if got := cfg.DSN(); got != cfg.URL {
		t.Fatalf("DSN = %q", got)
	}
	host, port, name := cfg.Target()
	if host != "h" || port != "1" || name != "x" {
		t.Fatalf("Target = %s %s %s", host, port, name)
	}
}

func TestValidate(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Fatal("empty config must fail")
	}
	if err := (Config{Host: "h", Name: "n", User: "u"}).Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := (Config{URL: "postgres://u@h/n"}).Validate(); err != nil {
		t.Fatalf("validate url: %v", err)
	}
}

func TestCountApplied(t *testing.T) {
	files := []string{"0001_init.up.sql", "0002_market.up.sql", "0003_fsm.up.sql"}
	if got := countApplied(files, 1, 3); got != 2 {
		t.Fatalf("countApplied = %d", got)
	}
	if got := countApplied(files, 3, 3); got != 0 {
		t.Fatalf("countApplied = %d", got)
	}
	names := selectApplied(files, 0, 1)
	if len(names) != 1 || names[0] != "0001_init.up.sql" {
		t.Fatalf("selectApplied = %v", names)
	}
}
