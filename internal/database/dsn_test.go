package database

import (
	"strings"
	"testing"
)

func TestBuildPostgresDSN(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "defaults",
			cfg:  Config{User: "teamspace", Name: "teamspace"},
			want: []string{"host=localhost port=5432 user=teamspace dbname=teamspace sslmode=disable"},
		},
		{
			name: "options override sslmode",
			cfg: Config{
				User:     "user",
				Name:     "db",
				Host:     "db.example.com",
				Port:     6543,
				Password: "pass",
				Options:  map[string]string{"sslmode": "require", "search_path": "public"},
			},
			want: []string{"host=db.example.com", "port=6543", "password=pass", "search_path=public sslmode=require"},
		},
		{
			name: "dsn wins",
			cfg:  Config{DSN: "postgres://u@h/db"},
			want: []string{"postgres://u@h/db"},
		},
	}

	for _, tc := range cases {
		dsn, err := buildPostgresDSN(tc.cfg)
		if err != nil {
			t.Fatalf("%s: build dsn: %v", tc.name, err)
		}
		for _, part := range tc.want {
			if !strings.Contains(dsn, part) {
				t.Fatalf("%s: dsn %q missing %q", tc.name, dsn, part)
			}
		}
	}

	if _, err := buildPostgresDSN(Config{Host: "localhost"}); err == nil {
		t.Fatal("expected error for missing user and database name")
	}
}

func TestBuildMySQLDSN(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "defaults",
			cfg:  Config{User: "teamspace", Name: "teamspace"},
			want: []string{"teamspace@tcp(127.0.0.1:3306)/teamspace?charset=utf8mb4&loc=Local&parseTime=True"},
		},
		{
			name: "credentials and options",
			cfg: Config{
				User:     "user",
				Password: "secret",
				Name:     "db",
				Host:     "db.example.com",
				Port:     3307,
				Options:  map[string]string{"tls": "skip-verify"},
			},
			want: []string{"user:secret@tcp(db.example.com:3307)/db?", "parseTime=True", "tls=skip-verify"},
		},
	}

	for _, tc := range cases {
		dsn, err := buildMySQLDSN(tc.cfg)
		if err != nil {
			t.Fatalf("%s: build dsn: %v", tc.name, err)
		}
		for _, part := range tc.want {
			if !strings.Contains(dsn, part) {
				t.Fatalf("%s: dsn %q missing %q", tc.name, dsn, part)
			}
		}
	}

	if _, err := buildMySQLDSN(Config{Host: "localhost"}); err == nil {
		t.Fatal("expected error for missing user and database name")
	}
}
