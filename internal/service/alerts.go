package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cryptoalert/internal/alert"
	"cryptoalert/internal/models"
	"cryptoalert/internal/repository"
)

var ErrInvalidAlert = errors.New("invalid alert")

// AlertStore is the persistence the alert service needs.
type AlertStore interface {
	CreateAlert(ctx context.Context, item *models.Alert) error
	GetAlertByID(ctx context.Context, id string) (*models.Alert, error)
	SaveAlert(ctx context.Context, item *models.Alert) error
	SetAlertActive(ctx context.Context, id string, active bool) error
	DeleteAlert(ctx context.Context, id string, ownerID string) error
}

type CreateAlertInput struct {
	OwnerID         string
	ResourceKey     string
	ResourceSymbol  string
	ResourceName    string
	ConditionType   string
	Threshold       decimal.Decimal
	Repeat          bool
	CooldownMinutes int
}

// AlertService manages alert subscriptions on behalf of their owners.
type AlertService struct {
	Repo   AlertStore
	Logger *zap.Logger
}

func (s *AlertService) Create(ctx context.Context, in CreateAlertInput) (*models.Alert, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("alert store unavailable")
	}
	owner := strings.TrimSpace(in.OwnerID)
	if owner == "" {
		return nil, fmt.Errorf("%w: owner_id is required", ErrInvalidAlert)
	}
	key := strings.ToLower(strings.TrimSpace(in.ResourceKey))
	if key == "" {
		return nil, fmt.Errorf("%w: resource_key is required", ErrInvalidAlert)
	}
	cond, ok := models.ParseConditionType(in.ConditionType)
	if !ok {
		return nil, fmt.Errorf("%w: %v %q", ErrInvalidAlert, alert.ErrUnknownCondition, in.ConditionType)
	}
	if !in.Threshold.IsPositive() {
		return nil, fmt.Errorf("%w: threshold must be positive", ErrInvalidAlert)
	}
	if in.CooldownMinutes < 0 {
		return nil, fmt.Errorf("%w: cooldown_minutes must not be negative", ErrInvalidAlert)
	}

	item := &models.Alert{
		OwnerID:         owner,
		ResourceKey:     key,
		ResourceSymbol:  strings.ToUpper(strings.TrimSpace(in.ResourceSymbol)),
		ResourceName:    strings.TrimSpace(in.ResourceName),
		ConditionType:   cond,
		Threshold:       in.Threshold,
		IsActive:        true,
		Repeat:          in.Repeat,
		CooldownMinutes: in.CooldownMinutes,
	}
	if item.CooldownMinutes == 0 {
		item.CooldownMinutes = models.DefaultCooldownMinutes
	}
	if err := s.Repo.CreateAlert(ctx, item); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("alert created",
			zap.String("alert_id", item.ID),
			zap.String("owner_id", item.OwnerID),
			zap.String("resource_key", item.ResourceKey),
			zap.String("condition", string(item.ConditionType)),
		)
	}
	return item, nil
}

func (s *AlertService) SetActive(ctx context.Context, id string, active bool) (*models.Alert, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("alert store unavailable")
	}
	if err := s.Repo.SetAlertActive(ctx, id, active); err != nil {
		return nil, err
	}
	return s.Repo.GetAlertByID(ctx, id)
}

// Reset re-arms a triggered alert so it can fire again.
func (s *AlertService) Reset(ctx context.Context, id string) (*models.Alert, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("alert store unavailable")
	}
	item, err := s.Repo.GetAlertByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, repository.ErrNotFound
	}
	next := alert.Rearm(*item)
	if err := s.Repo.SaveAlert(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *AlertService) Delete(ctx context.Context, id, ownerID string) error {
	if s == nil || s.Repo == nil {
		return errors.New("alert store unavailable")
	}
	if err := s.Repo.DeleteAlert(ctx, id, ownerID); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("alert deleted", zap.String("alert_id", id), zap.String("owner_id", ownerID))
	}
	return nil
}
