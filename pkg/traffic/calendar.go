package traffic

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// defaultHolidays is a deliberately small table of fixed-date US holidays.
// Floating holidays (Thanksgiving, Easter) are not derived; supply a
// calendar file for anything beyond this set.
var defaultHolidays = []string{
	"01-01", // New Year's Day
	"07-04", // Independence Day
	"12-24", // Christmas Eve
	"12-25", // Christmas Day
	"12-31", // New Year's Eve
}

// Calendar answers holiday lookups for pattern extraction. The zero value is
// not usable; construct with NewCalendar or LoadCalendar.
type Calendar struct {
	mu   sync.RWMutex
	days map[string]struct{}
}

// NewCalendar returns a calendar seeded with the built-in fixed-date table.
func NewCalendar() *Calendar {
	c := &Calendar{}
	c.replace(defaultHolidays)
	return c
}

func (c *Calendar) replace(days []string) {
	set := make(map[string]struct{}, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	c.mu.Lock()
	c.days = set
	c.mu.Unlock()
}

// IsHoliday reports whether the timestamp falls on a configured holiday.
func (c *Calendar) IsHoliday(ts time.Time) bool {
	key := ts.Format("01-02")
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.days[key]
	return ok
}

type calendarFile struct {
	Holidays []string `yaml:"holidays"`
}

// LoadCalendar reads a YAML calendar file of MM-DD entries:
//
//	holidays:
//	  - "01-01"
//	  - "07-04"
func LoadCalendar(path string) (*Calendar, error) {
	c := NewCalendar()
	if err := c.Reload(path); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload replaces the holiday set from the given file.
func (c *Calendar) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading calendar file: %w", err)
	}

	var f calendarFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing calendar file: %w", err)
	}

	for _, d := range f.Holidays {
		if _, err := time.Parse("01-02", d); err != nil {
			return fmt.Errorf("invalid holiday entry %q: %w", d, err)
		}
	}

	c.replace(f.Holidays)
	return nil
}

// Watch reloads the calendar whenever the file changes. It blocks until the
// watcher fails or stop is closed; run it in its own goroutine. onError is
// called for reload and watch failures and may be nil.
func (c *Calendar) Watch(path string, stop <-chan struct{}, onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating calendar watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := c.Reload(path); err != nil && onError != nil {
				onError(err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}
		case <-stop:
			return nil
		}
	}
}
