package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ADMIN_BOT_TOKEN", "admin-token")
	t.Setenv("USER_BOT_TOKEN", "user-token")
	t.Setenv("MASTER_KEY", "supersecret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.WorkStart != (Clock{Hour: 9, Minute: 30}) {
		t.Fatalf("WorkStart = %v, want 09:30", cfg.WorkStart)
	}
	if cfg.WorkEnd != (Clock{Hour: 17, Minute: 30}) {
		t.Fatalf("WorkEnd = %v, want 17:30", cfg.WorkEnd)
	}
	if cfg.InviteCodeTTL != 24*time.Hour {
		t.Fatalf("InviteCodeTTL = %v, want 24h", cfg.InviteCodeTTL)
	}
	if cfg.Timezone.String() != "Europe/Moscow" {
		t.Fatalf("Timezone = %q, want Europe/Moscow", cfg.Timezone)
	}
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("ADMIN_BOT_TOKEN", "")
	t.Setenv("USER_BOT_TOKEN", "user-token")
	t.Setenv("MASTER_KEY", "supersecret")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() should fail without ADMIN_BOT_TOKEN")
	}
}

func TestLoadWorkTimesOverride(t *testing.T) {
	setRequired(t)
	t.Setenv("WORK_START_TIME", "08:00")
	t.Setenv("WORK_END_TIME", "18:15")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WorkStart.String() != "08:00" || cfg.WorkEnd.String() != "18:15" {
		t.Fatalf("work times = %v/%v", cfg.WorkStart, cfg.WorkEnd)
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "09:30", want: Clock{Hour: 9, Minute: 30}},
		{in: " 17:05 ", want: Clock{Hour: 17, Minute: 5}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "12", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseClock(%q) should fail", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClock(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseClock(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
