package model

import "time"

// Slot - окно календаря ментора на конкретную дату.
// IsAvailable и IsBooked независимы: занятые окна показываются, а не скрываются.
type Slot struct {
	SlotID      string    `json:"slot_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	IsAvailable bool      `json:"is_available"`
	IsBooked    bool      `json:"is_booked"`
}

type MenteeStatus string

const (
	MenteeStatusActive MenteeStatus = "Active"
	MenteeStatusPaused MenteeStatus = "Paused"
	MenteeStatusNew    MenteeStatus = "New"
)

// MenteeSummary - производное представление отношений ментора с одним собеседником
type MenteeSummary struct {
	ID                string       `json:"id"`
	Name              string       `json:"name,omitempty"`
	Email             string       `json:"email,omitempty"`
	LastSession       *Session     `json:"last_session"`
	NextSession       *Session     `json:"next_session"`
	Progress          int          `json:"progress"`
	Status            MenteeStatus `json:"status"`
	TotalSessions     int          `json:"total_sessions"`
	CompletedSessions int          `json:"completed_sessions"`
}

// JoinResult - ответ шлюза подключения
type JoinResult struct {
	Channel string          `json:"channel"`
	Token   string          `json:"token"`
	Role    ParticipantRole `json:"role"`
}

// Presence - кто из участников уже подключался к сессии
type Presence struct {
	MentorJoinedAt *time.Time `json:"mentor_joined_at"`
	MenteeJoinedAt *time.Time `json:"mentee_joined_at"`
}
