package holidays

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `holidays:
  - name: Autumn break
    start: 2026-10-26
    end: 2026-11-06
  - name: Christmas
    start: 2026-12-19
    end: 2027-01-08
`

func writeCalendar(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "holidays.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLoadAndContains(t *testing.T) {
	c, err := Load(writeCalendar(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Windows) != 2 {
		t.Fatalf("windows: got %d, want 2", len(c.Windows))
	}

	tests := []struct {
		date string
		want bool
	}{
		{"2026-10-25", false},
		{"2026-10-26", true}, // inclusive start
		{"2026-11-06", true}, // inclusive end
		{"2026-11-07", false},
		{"2026-12-25", true},
		{"2027-01-08", true},
		{"2027-01-09", false},
	}
	for _, tt := range tests {
		if got := c.Contains(day(tt.date)); got != tt.want {
			t.Errorf("Contains(%s) = %v; want %v", tt.date, got, tt.want)
		}
	}
}

func TestLoadMissingFileYieldsEmptyCalendar(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Windows) != 0 {
		t.Errorf("windows: got %d, want 0", len(c.Windows))
	}
	if c.Predicate() != nil {
		t.Error("empty calendar should have a nil predicate")
	}
}

func TestLoadRejectsBadDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("holidays:\n  - name: x\n    start: 26.10.2026\n    end: 2026-11-06\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected an error for a malformed date")
	}
}

func TestDateRanges(t *testing.T) {
	c, err := Load(writeCalendar(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ranges := c.DateRanges()
	if len(ranges) != 2 {
		t.Fatalf("ranges: got %d, want 2", len(ranges))
	}
	if !ranges[0][0].Equal(day("2026-10-26")) || !ranges[0][1].Equal(day("2026-11-06")) {
		t.Errorf("first range: %v", ranges[0])
	}
}
