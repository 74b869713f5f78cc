package core

import (
	"encoding/json"
	"testing"
	"time"

	"golang.org/x/text/language"
)

func TestFormatter_Number(t *testing.T) {
	f := NewFormatter(language.English, time.UTC)

	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{42, "42"},
		{1234567, "1,234,567"},
		{-1500, "-1,500"},
	}
	for _, tt := range tests {
		if got := f.Number(tt.in); got != tt.want {
			t.Errorf("Number(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatter_DateUsesZone(t *testing.T) {
	zone := time.FixedZone("CST", -6*60*60)
	f := NewFormatter(language.English, zone)

	// 03:30 UTC on the 5th is still the 4th six hours west.
	ts := time.Date(2024, 3, 5, 3, 30, 0, 0, time.UTC)
	if got := f.Date(ts); got != "04/03/2024" {
		t.Errorf("Date() = %q, want 04/03/2024", got)
	}
	if got := f.DateTime(ts); got != "04/03/2024 21:30" {
		t.Errorf("DateTime() = %q, want 04/03/2024 21:30", got)
	}
}

func TestParseFormatter(t *testing.T) {
	if _, err := ParseFormatter("es-MX", "UTC"); err != nil {
		t.Fatalf("ParseFormatter() error: %v", err)
	}
	if _, err := ParseFormatter("not a tag!", "UTC"); err == nil {
		t.Error("ParseFormatter() should reject an invalid tag")
	}
	if _, err := ParseFormatter("es-MX", "Mars/Olympus"); err == nil {
		t.Error("ParseFormatter() should reject an unknown zone")
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		ok   bool
	}{
		{"iso date", "2024-01-15", true},
		{"rfc3339", "2024-01-15T00:00:00Z", true},
		{"rfc3339 millis", "2024-01-15T00:00:00.000Z", true},
		{"space separated", "2024-01-15 00:00:00", true},
		{"unix millis float", float64(want.UnixMilli()), true},
		{"unix millis json", json.Number("1705276800000"), true},
		{"time value", want, true},
		{"empty string", "", false},
		{"garbage", "yesterday", false},
		{"nil", nil, false},
		{"bool", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseTime(%v) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && !got.Equal(want) {
				t.Errorf("ParseTime(%v) = %v, want %v", tt.in, got, want)
			}
		})
	}
}

func TestMoney(t *testing.T) {
	tests := map[any]string{
		float64(10):      "$10",
		12.5:             "$12.5",
		"99":             "$99",
		json.Number("7"): "$7",
	}
	for in, want := range tests {
		if got := money(in); got != want {
			t.Errorf("money(%v) = %q, want %q", in, got, want)
		}
	}
}
