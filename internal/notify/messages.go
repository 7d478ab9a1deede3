package notify

import (
	"fmt"
	"strings"

	"github.com/aureeture/mentor_sessions/internal/model"
)

// Message - тема и текст уведомления
type Message struct {
	Subject string
	Body    string
}

func sessionLines(s *model.Session) []string {
	status := GetStatusDisplay(s.Status)
	lines := []string{
		fmt.Sprintf("🗓 %s (%s)", FormatDateTime(s.StartTime), FormatDuration(s.DurationMinutes)),
		fmt.Sprintf("%s %s", status.Emoji, status.Text),
	}
	if s.MeetingLink != "" {
		lines = append(lines, "🔗 "+s.MeetingLink)
	}
	return lines
}

func build(subject string, intro string, s *model.Session, extra ...string) Message {
	lines := append([]string{intro, ""}, sessionLines(s)...)
	lines = append(lines, extra...)
	return Message{Subject: subject, Body: strings.Join(lines, "\n")}
}

// SessionBooked - сессия запланирована
func SessionBooked(s *model.Session) Message {
	return build("Mentoring session booked", "Your mentoring session is booked.", s)
}

// PaymentConfirmed - оплата подтверждена, сессия запланирована
func PaymentConfirmed(s *model.Session) Message {
	return build("Payment received", "Payment confirmed. Your mentoring session is scheduled.", s)
}

// RescheduleRequested - участник предложил новое время
func RescheduleRequested(s *model.Session, r model.RescheduleRequest) Message {
	extra := []string{
		fmt.Sprintf("➡️ Proposed: %s %s", r.ProposedStart.Format("Mon, 02 Jan 2006"), FormatTimeRange(r.ProposedStart, r.ProposedEnd)),
	}
	if r.Reason != "" {
		extra = append(extra, "💬 "+r.Reason)
	}
	return build("Reschedule requested", fmt.Sprintf("The %s asked to move the session.", r.RequestedBy), s, extra...)
}

// RescheduleDecided - по переносу принято решение
func RescheduleDecided(s *model.Session, decision model.RescheduleDecision) Message {
	if decision == model.RescheduleDecisionApproved {
		return build("Reschedule approved", "The session was moved to the new time.", s)
	}
	return build("Reschedule declined", "The reschedule request was declined; the original time stands.", s)
}

// SessionCancelled - сессия отменена
func SessionCancelled(s *model.Session) Message {
	var extra []string
	if s.CancellationReason != "" {
		extra = append(extra, "💬 "+s.CancellationReason)
	}
	return build("Session cancelled", "The mentoring session was cancelled.", s, extra...)
}
