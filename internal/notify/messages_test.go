package notify

import (
	"testing"
	"time"

	"github.com/aureeture/mentor_sessions/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{45, "45 min"},
		{60, "1 h"},
		{90, "1 h 30 min"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.minutes))
	}
}

func TestGetStatusDisplay(t *testing.T) {
	assert.Equal(t, "Scheduled", GetStatusDisplay(model.SessionStatusScheduled).Text)
	assert.Equal(t, "Unknown", GetStatusDisplay("lost").Text)
}

func TestRescheduleRequestedMessage(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	s := &model.Session{
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		DurationMinutes: 60,
		Status:          model.SessionStatusRescheduleRequested,
		MeetingLink:     "https://meet.example/abc",
	}
	r := model.RescheduleRequest{
		RequestedBy:   model.RequesterStudent,
		Reason:        "exam",
		ProposedStart: start.Add(24 * time.Hour),
		ProposedEnd:   start.Add(25 * time.Hour),
	}

	msg := RescheduleRequested(s, r)

	assert.Equal(t, "Reschedule requested", msg.Subject)
	assert.Contains(t, msg.Body, "The student asked to move the session.")
	assert.Contains(t, msg.Body, "Tue, 11 Mar 2025 10:00-11:00")
	assert.Contains(t, msg.Body, "exam")
	assert.Contains(t, msg.Body, "https://meet.example/abc")
}

func TestRescheduleDecidedMessage(t *testing.T) {
	s := &model.Session{StartTime: time.Now(), DurationMinutes: 30, Status: model.SessionStatusScheduled}

	assert.Equal(t, "Reschedule approved", RescheduleDecided(s, model.RescheduleDecisionApproved).Subject)
	assert.Equal(t, "Reschedule declined", RescheduleDecided(s, model.RescheduleDecisionRejected).Subject)
}
