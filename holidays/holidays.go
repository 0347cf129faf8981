// Package holidays loads school-holiday calendar windows and exposes them
// as an opaque date predicate for the package assembler.
package holidays

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Window is one eligible travel window, inclusive on both ends.
type Window struct {
	Name  string `yaml:"name"`
	Start ymd    `yaml:"start"`
	End   ymd    `yaml:"end"`
}

// ymd parses "2006-01-02" date strings from YAML.
type ymd struct {
	time.Time
}

func (d *ymd) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return fmt.Errorf("holidays: invalid date %q: %w", raw, err)
	}
	d.Time = t
	return nil
}

// Calendar is a set of eligible windows.
type Calendar struct {
	Windows []Window `yaml:"holidays"`
}

// Load reads a holidays YAML file. A missing file yields an empty calendar,
// which the caller treats as "no calendar filtering".
func Load(path string) (*Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Calendar{}, nil
		}
		return nil, fmt.Errorf("holidays: read %q: %w", path, err)
	}

	var c Calendar
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("holidays: parse %q: %w", path, err)
	}
	return &c, nil
}

// Contains reports whether the date falls inside any window.
func (c *Calendar) Contains(d time.Time) bool {
	day := d.Truncate(24 * time.Hour)
	for _, w := range c.Windows {
		if !day.Before(w.Start.Time) && !day.After(w.End.Time) {
			return true
		}
	}
	return false
}

// Predicate returns the calendar as an opaque date predicate, or nil when
// the calendar has no windows so callers can skip filtering entirely.
func (c *Calendar) Predicate() func(time.Time) bool {
	if len(c.Windows) == 0 {
		return nil
	}
	return c.Contains
}

// DateRanges returns each window as a (start, end) pair, used to seed the
// acquisition query with travel windows worth searching.
func (c *Calendar) DateRanges() [][2]time.Time {
	out := make([][2]time.Time, 0, len(c.Windows))
	for _, w := range c.Windows {
		out = append(out, [2]time.Time{w.Start.Time, w.End.Time})
	}
	return out
}
