package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aureeture/mentor_sessions/internal/model"
	"go.uber.org/zap"
)

// maxSlotRangeDays ограничивает размер запрашиваемого календаря
const maxSlotRangeDays = 92

// ComputeSlots строит календарь ментора на даты [from, to] включительно;
// у from и to учитывается только календарная дата.
// Функция чистая: одинаковые входные данные дают одинаковый результат.
func ComputeSlots(availability *model.Availability, from, to time.Time, sessions []*model.Session, loc *time.Location) []model.Slot {
	if availability == nil {
		return []model.Slot{}
	}
	if loc == nil {
		loc = time.UTC
	}

	first := calendarDate(from, loc)
	last := calendarDate(to, loc)

	slots := []model.Slot{}
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		window := availability.FirstActiveWindow(day.Weekday())
		if window == nil {
			continue
		}

		// Блокирующее исключение подавляет шаблон на эту дату
		if override := availability.OverrideFor(day); override != nil && override.IsBlocked {
			continue
		}

		startHour, startMinute, err := model.ParseClock(window.Start)
		if err != nil {
			continue
		}
		endHour, endMinute, err := model.ParseClock(window.End)
		if err != nil {
			continue
		}

		slotStart := time.Date(day.Year(), day.Month(), day.Day(), startHour, startMinute, 0, 0, loc)
		slotEnd := time.Date(day.Year(), day.Month(), day.Day(), endHour, endMinute, 0, 0, loc)
		if !slotEnd.After(slotStart) {
			continue
		}

		slots = append(slots, model.Slot{
			SlotID:      fmt.Sprintf("%s-%02d", day.Format(model.DateLayout), startHour),
			Start:       slotStart,
			End:         slotEnd,
			IsAvailable: true,
			IsBooked:    isBooked(sessions, slotStart, slotEnd),
		})
	}

	return slots
}

// isBooked - окно занято запланированной или идущей сессией
func isBooked(sessions []*model.Session, start, end time.Time) bool {
	for _, s := range sessions {
		if s.Status != model.SessionStatusScheduled && s.Status != model.SessionStatusOngoing {
			continue
		}
		if s.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// calendarDate берёт календарную дату t и помещает её полночь в loc
func calendarDate(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

type AvailabilityService struct {
	availabilityRepo AvailabilityStore
	sessionRepo      SessionStore
	defaultLocation  *time.Location
	logger           *zap.Logger
}

func NewAvailabilityService(
	availabilityRepo AvailabilityStore,
	sessionRepo SessionStore,
	defaultLocation *time.Location,
	logger *zap.Logger,
) *AvailabilityService {
	if defaultLocation == nil {
		defaultLocation = time.UTC
	}
	return &AvailabilityService{
		availabilityRepo: availabilityRepo,
		sessionRepo:      sessionRepo,
		defaultLocation:  defaultLocation,
		logger:           logger,
	}
}

// GetAvailability возвращает шаблон ментора
func (s *AvailabilityService) GetAvailability(ctx context.Context, mentorID string) (*model.Availability, error) {
	availability, err := s.availabilityRepo.GetByMentorID(ctx, mentorID)
	if err != nil {
		return nil, fmt.Errorf("get availability: %w", err)
	}
	if availability == nil {
		return nil, fmt.Errorf("%w: availability for mentor %s", ErrNotFound, mentorID)
	}
	return availability, nil
}

// UpsertAvailability сохраняет шаблон; менять его может только сам ментор
func (s *AvailabilityService) UpsertAvailability(ctx context.Context, callerID string, availability *model.Availability) (*model.Availability, error) {
	if callerID == "" || callerID != availability.MentorID {
		return nil, fmt.Errorf("%w: only the mentor can change availability", ErrForbidden)
	}

	for i := range availability.Weekly {
		availability.Weekly[i].Day = strings.ToLower(strings.TrimSpace(availability.Weekly[i].Day))
	}

	if err := availability.Validate(); err != nil {
		return nil, validationf("%v", err)
	}

	if err := s.availabilityRepo.Upsert(ctx, availability); err != nil {
		return nil, fmt.Errorf("save availability: %w", err)
	}

	s.logger.Info("Availability updated",
		zap.String("mentor_id", availability.MentorID),
		zap.Int("weekly_windows", len(availability.Weekly)),
		zap.Int("overrides", len(availability.Overrides)),
	)

	return availability, nil
}

// GetSlots строит календарь ментора на диапазон дат.
// Сессии из хранилища - источник истины о занятости.
func (s *AvailabilityService) GetSlots(ctx context.Context, mentorID string, from, to time.Time) ([]model.Slot, error) {
	if to.Before(from) {
		return nil, validationf("to date must not be before from date")
	}
	if to.Sub(from) > maxSlotRangeDays*24*time.Hour {
		return nil, validationf("date range must not exceed %d days", maxSlotRangeDays)
	}

	availability, err := s.GetAvailability(ctx, mentorID)
	if err != nil {
		return nil, err
	}

	loc := availability.Location(s.defaultLocation)
	rangeStart := calendarDate(from, loc)
	rangeEnd := calendarDate(to, loc).AddDate(0, 0, 1)

	sessions, err := s.sessionRepo.ListByMentorInRange(ctx, mentorID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("get mentor sessions: %w", err)
	}

	slots := ComputeSlots(availability, from, to, sessions, loc)

	s.logger.Debug("Slots computed",
		zap.String("mentor_id", mentorID),
		zap.Time("from", rangeStart),
		zap.Time("to", rangeEnd),
		zap.Int("count", len(slots)),
	)

	return slots, nil
}
