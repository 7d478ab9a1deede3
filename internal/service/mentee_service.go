package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aureeture/mentor_sessions/internal/model"
	"go.uber.org/zap"
)

var menteeStatusOrder = map[model.MenteeStatus]int{
	model.MenteeStatusActive: 0,
	model.MenteeStatusPaused: 1,
	model.MenteeStatusNew:    2,
}

// AggregateMentees сводит историю сессий ментора по собеседникам.
// Чистая функция: ничего не пишет и пересчитывается на каждом чтении.
func AggregateMentees(sessions []*model.Session, now time.Time) []model.MenteeSummary {
	groups := make(map[string][]*model.Session)
	var keys []string
	for _, s := range sessions {
		key := model.CounterpartyKey(s)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], s)
	}

	summaries := make([]model.MenteeSummary, 0, len(keys))
	for _, key := range keys {
		summaries = append(summaries, summarize(key, groups[key], now))
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		oi, oj := menteeStatusOrder[summaries[i].Status], menteeStatusOrder[summaries[j].Status]
		if oi != oj {
			return oi < oj
		}
		return summaries[i].ID < summaries[j].ID
	})

	return summaries
}

func summarize(key string, sessions []*model.Session, now time.Time) model.MenteeSummary {
	summary := model.MenteeSummary{
		ID:            key,
		TotalSessions: len(sessions),
	}

	var lastAt time.Time
	for _, s := range sessions {
		if summary.Name == "" {
			summary.Name = s.CounterpartyName
		}
		if summary.Email == "" {
			summary.Email = s.CounterpartyEmail
		}

		if s.Status == model.SessionStatusCompleted {
			summary.CompletedSessions++
		}

		if s.Status == model.SessionStatusCompleted || s.EndTime.Before(now) {
			at := finishedAt(s)
			if summary.LastSession == nil || at.After(lastAt) {
				summary.LastSession = s
				lastAt = at
			}
		}

		if s.StartTime.After(now) && s.Status != model.SessionStatusDraft {
			if summary.NextSession == nil || s.StartTime.Before(summary.NextSession.StartTime) {
				summary.NextSession = s
			}
		}
	}

	if summary.TotalSessions > 0 {
		summary.Progress = int(math.Round(100 * float64(summary.CompletedSessions) / float64(summary.TotalSessions)))
	}

	switch {
	case summary.NextSession != nil:
		summary.Status = model.MenteeStatusActive
	case summary.CompletedSessions > 0:
		summary.Status = model.MenteeStatusPaused
	default:
		summary.Status = model.MenteeStatusNew
	}

	return summary
}

// finishedAt - фактическое окончание, иначе плановое, иначе начало
func finishedAt(s *model.Session) time.Time {
	if s.ActualEnd != nil {
		return *s.ActualEnd
	}
	if !s.EndTime.IsZero() {
		return s.EndTime
	}
	return s.StartTime
}

type MenteeService struct {
	sessionRepo SessionStore
	now         Clock
	logger      *zap.Logger
}

func NewMenteeService(sessionRepo SessionStore, now Clock, logger *zap.Logger) *MenteeService {
	if now == nil {
		now = time.Now
	}
	return &MenteeService{
		sessionRepo: sessionRepo,
		now:         now,
		logger:      logger,
	}
}

// ListMentees строит сводку по собеседникам; доступно только самому ментору
func (s *MenteeService) ListMentees(ctx context.Context, callerID, mentorID string) ([]model.MenteeSummary, error) {
	if callerID == "" || callerID != mentorID {
		return nil, fmt.Errorf("%w: only the mentor can list their mentees", ErrForbidden)
	}

	sessions, err := s.sessionRepo.ListByMentor(ctx, mentorID)
	if err != nil {
		return nil, fmt.Errorf("get mentor sessions: %w", err)
	}

	mentees := AggregateMentees(sessions, s.now())

	s.logger.Debug("Mentees aggregated",
		zap.String("mentor_id", mentorID),
		zap.Int("sessions", len(sessions)),
		zap.Int("mentees", len(mentees)),
	)

	return mentees, nil
}
