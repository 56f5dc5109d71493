package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

func TestDSN(t *testing.T) {
	cases := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{"explicit", ClientConfig{DSN: "postgres://x@y/z", Host: "ignored"}, "postgres://x@y/z"},
		{"fields", ClientConfig{Host: "db", Port: 5433, Database: "triarb", User: "arb", Password: "p@ss", SSLMode: "require"},
			"postgres://arb:p%40ss@db:5433/triarb?sslmode=require"},
		{"defaults", ClientConfig{Host: "db", Database: "triarb"}, "postgres://db:5432/triarb?sslmode=disable"},
	}
	for _, c := range cases {
		if got := DSN(c.cfg); got != c.want {
			t.Errorf("%s: DSN=%s want %s", c.name, got, c.want)
		}
	}
}

func TestListQuery(t *testing.T) {
	since := time.Unix(1700000000, 0)
	q, args := listQuery(domain.ListOpts{Exchange: "binance", Since: &since, Limit: 20, Offset: 40})

	for _, want := range []string{"exchange = $1", "detected_at >= $2", "LIMIT $3", "OFFSET $4", "ORDER BY detected_at DESC"} {
		if !strings.Contains(q, want) {
			t.Errorf("query %q missing %q", q, want)
		}
	}
	if len(args) != 4 || args[0] != "binance" || args[2] != 20 || args[3] != 40 {
		t.Errorf("args=%v", args)
	}

	q, args = listQuery(domain.ListOpts{})
	if strings.Contains(q, "WHERE") || strings.Contains(q, "LIMIT") || len(args) != 0 {
		t.Errorf("unfiltered query=%q args=%v", q, args)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) == 0 || names[0] != "001_opportunities.sql" {
		t.Errorf("migrations=%v", names)
	}
}
