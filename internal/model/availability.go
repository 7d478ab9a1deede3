package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	// ClockLayout - формат времени суток в шаблоне
	ClockLayout = "15:04"
	// DateLayout - формат календарной даты в исключениях
	DateLayout = "2006-01-02"
)

// WeeklyWindow - окно доступности для одного дня недели
type WeeklyWindow struct {
	Day      string `json:"day"` // monday ... sunday
	IsActive bool   `json:"is_active"`
	Start    string `json:"start"` // "HH:MM", локальное время ментора
	End      string `json:"end"`
}

// DateOverride - исключение из недельного шаблона на конкретную дату
type DateOverride struct {
	Date      string `json:"date"` // "YYYY-MM-DD"
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
	IsBlocked bool   `json:"is_blocked"`
}

// Availability - календарный шаблон ментора
type Availability struct {
	MentorID           string         `json:"mentor_id"`
	Timezone           string         `json:"timezone"`
	Weekly             []WeeklyWindow `json:"weekly"`
	Overrides          []DateOverride `json:"overrides"`
	MinNoticeHours     int            `json:"min_notice_hours"`
	MaxSessionsPerWeek int            `json:"max_sessions_per_week"`
	InstantBooking     bool           `json:"instant_booking"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// WeekdayName возвращает имя дня недели в том виде, в котором оно хранится в шаблоне
func WeekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}

func validWeekday(day string) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if WeekdayName(d) == strings.ToLower(day) {
			return true
		}
	}
	return false
}

// ParseClock разбирает "HH:MM" в часы и минуты
func ParseClock(value string) (hour, minute int, err error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q", value)
	}
	return t.Hour(), t.Minute(), nil
}

// Location возвращает часовой пояс шаблона, по умолчанию fallback
func (a *Availability) Location(fallback *time.Location) *time.Location {
	if a.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// FirstActiveWindow ищет первое активное окно на день недели.
// Несколько активных окон на один день хранятся, но учитывается только первое.
func (a *Availability) FirstActiveWindow(day time.Weekday) *WeeklyWindow {
	name := WeekdayName(day)
	for i := range a.Weekly {
		w := &a.Weekly[i]
		if w.IsActive && strings.ToLower(w.Day) == name {
			return w
		}
	}
	return nil
}

// OverrideFor ищет исключение на календарную дату (время суток не учитывается)
func (a *Availability) OverrideFor(date time.Time) *DateOverride {
	key := date.Format(DateLayout)
	for i := range a.Overrides {
		if strings.TrimSpace(a.Overrides[i].Date) == key {
			return &a.Overrides[i]
		}
	}
	return nil
}

// Validate проверяет формат шаблона перед сохранением
func (a *Availability) Validate() error {
	if strings.TrimSpace(a.MentorID) == "" {
		return fmt.Errorf("mentor id is required")
	}
	if a.Timezone != "" {
		if _, err := time.LoadLocation(a.Timezone); err != nil {
			return fmt.Errorf("unknown timezone %q", a.Timezone)
		}
	}
	for _, w := range a.Weekly {
		if !validWeekday(w.Day) {
			return fmt.Errorf("unknown weekday %q", w.Day)
		}
		// Выключенный день может быть без времени
		if !w.IsActive && w.Start == "" && w.End == "" {
			continue
		}
		if err := validateWindow(w.Start, w.End); err != nil {
			return fmt.Errorf("%s: %w", w.Day, err)
		}
	}
	for _, o := range a.Overrides {
		if _, err := time.Parse(DateLayout, strings.TrimSpace(o.Date)); err != nil {
			return fmt.Errorf("invalid override date %q", o.Date)
		}
		if o.IsBlocked && o.Start == "" && o.End == "" {
			continue
		}
		if err := validateWindow(o.Start, o.End); err != nil {
			return fmt.Errorf("override %s: %w", o.Date, err)
		}
	}
	if a.MinNoticeHours < 0 {
		return fmt.Errorf("min notice hours must not be negative")
	}
	if a.MaxSessionsPerWeek < 0 {
		return fmt.Errorf("max sessions per week must not be negative")
	}
	return nil
}

func validateWindow(start, end string) error {
	sh, sm, err := ParseClock(start)
	if err != nil {
		return err
	}
	eh, em, err := ParseClock(end)
	if err != nil {
		return err
	}
	if eh*60+em <= sh*60+sm {
		return fmt.Errorf("window end must be after start")
	}
	return nil
}
