package notify

import (
	"fmt"
	"time"

	"github.com/aureeture/mentor_sessions/internal/model"
)

// FormatDateTime форматирует дату и время
func FormatDateTime(t time.Time) string {
	return t.Format("Mon, 02 Jan 2006 15:04 MST")
}

// FormatTimeRange форматирует диапазон времени
func FormatTimeRange(start, end time.Time) string {
	return fmt.Sprintf("%s-%s", start.Format("15:04"), end.Format("15:04"))
}

// FormatDuration форматирует длительность в минутах
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d h", hours)
	}
	return fmt.Sprintf("%d h %d min", hours, mins)
}

// StatusDisplay представляет отображение статуса сессии
type StatusDisplay struct {
	Emoji string
	Text  string
}

// GetStatusDisplay возвращает emoji и текст для статуса сессии
func GetStatusDisplay(status model.SessionStatus) StatusDisplay {
	displays := map[model.SessionStatus]StatusDisplay{
		model.SessionStatusDraft:               {"📝", "Draft"},
		model.SessionStatusScheduled:           {"📅", "Scheduled"},
		model.SessionStatusOngoing:             {"🟢", "In progress"},
		model.SessionStatusCompleted:           {"✅", "Completed"},
		model.SessionStatusCancelled:           {"❌", "Cancelled"},
		model.SessionStatusRescheduleRequested: {"🔁", "Reschedule requested"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return StatusDisplay{"❓", "Unknown"}
}
