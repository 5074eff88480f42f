package store

import (
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{
			name: "default",
			opts: Options{},
			want: DefaultDSN,
		},
		{
			name: "memory with busy timeout",
			opts: Options{BusyTimeout: 10 * time.Second},
			want: DefaultDSN + "&_busy_timeout=10000",
		},
		{
			name: "file database gets WAL",
			opts: Options{DSN: "heft.db"},
			want: "heft.db?_journal_mode=WAL&_synchronous=NORMAL",
		},
		{
			name: "explicit params are kept",
			opts: Options{
				DSN:         "file:heft.db?_journal_mode=DELETE&_busy_timeout=5",
				BusyTimeout: time.Second,
			},
			want: "file:heft.db?_journal_mode=DELETE&_busy_timeout=5&_synchronous=NORMAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildDSN(tt.opts); got != tt.want {
				t.Errorf("buildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsMemory(t *testing.T) {
	tests := []struct {
		dsn  string
		want bool
	}{
		{":memory:", true},
		{DefaultDSN, true},
		{"heft.db", false},
		{"file:heft.db?cache=shared", false},
	}

	for _, tt := range tests {
		if got := IsMemory(tt.dsn); got != tt.want {
			t.Errorf("IsMemory(%q) = %v, want %v", tt.dsn, got, tt.want)
		}
	}
}

func TestDBPath(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"heft.db", "heft.db"},
		{"file:heft.db", "heft.db"},
		{"file:/tmp/heft.db?_journal_mode=WAL", "/tmp/heft.db"},
	}

	for _, tt := range tests {
		if got := dbPath(tt.dsn); got != tt.want {
			t.Errorf("dbPath(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}
