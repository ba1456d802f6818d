package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	repo Repository
	log  *zap.Logger
}

func NewService(repo Repository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, log: log}
}

// Upsert validates t and stores it as the doctor's template for t.Day,
// replacing any previous one.
func (s *Service) Upsert(ctx context.Context, t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.repo.Upsert(ctx, t); err != nil {
		return fmt.Errorf("save template: %w", err)
	}

	s.log.Info("schedule template saved",
		zap.String("doctor_id", t.DoctorID.String()),
		zap.Stringer("day", t.Day),
		zap.Stringer("hours", t.Hours()),
		zap.Bool("active", t.Active),
	)
	return nil
}

func (s *Service) SetActive(ctx context.Context, doctorID uuid.UUID, day time.Weekday, active bool) (*Template, error) {
	t, err := s.repo.SetActive(ctx, doctorID, day, active)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("set template active: %w", err)
	}
	return t, nil
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Template, error) {
	ts, err := s.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return ts, nil
}

// ActiveTemplate returns the doctor's template for day, or ErrTemplateNotFound
// when there is none or it is deactivated.
func (s *Service) ActiveTemplate(ctx context.Context, doctorID uuid.UUID, day time.Weekday) (*Template, error) {
	t, err := s.repo.GetForDay(ctx, doctorID, day)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load template: %w", err)
	}
	if !t.Active {
		return nil, ErrTemplateNotFound
	}
	return t, nil
}
