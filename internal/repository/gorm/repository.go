package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cryptoalert/internal/models"
	"cryptoalert/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ repository.Repository = (*Store)(nil)

// triggerColumns are the fields the evaluator owns. Saving only these keeps
// an owner's concurrent deactivation from being overwritten by a cycle.
var triggerColumns = []string{
	"last_known_value",
	"is_triggered",
	"triggered_at",
	"trigger_value",
	"notifications_sent",
	"last_notification_at",
	"updated_at",
}

// --- monitor ---------------------------------------------------------------

func (s *Store) ListEligibleAlerts(ctx context.Context) ([]models.Alert, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Alert
	if err := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("is_active = ?", true).
		Where("is_triggered = ?", false).
		Order("created_at asc").
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SaveAlert(ctx context.Context, item *models.Alert) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.ID) == "" {
		return errors.New("alert id is required")
	}
	item.UpdatedAt = time.Now().UTC()
	res := s.db.WithContext(ctx).
		Model(&models.Alert{ID: item.ID}).
		Select(triggerColumns).
		Updates(item)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateLastKnownValue(ctx context.Context, id string, value decimal.Decimal) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_known_value": value,
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (s *Store) DeleteTriggeredAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("is_triggered = ?", true).
		Where("repeat = ?", false).
		Where("triggered_at IS NOT NULL").
		Where("triggered_at < ?", cutoff).
		Delete(&models.Alert{})
	return res.RowsAffected, res.Error
}

func (s *Store) CountAlertsByOwner(ctx context.Context, ownerID string) (repository.OwnerAlertCounts, error) {
	var out repository.OwnerAlertCounts
	if s == nil || s.db == nil {
		return out, nil
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return out, nil
	}
	type row struct {
		Active    int64
		Triggered int64
		Total     int64
	}
	var r row
	err := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Select(`
			COUNT(*) FILTER (WHERE is_active = true AND is_triggered = false) AS active,
			COUNT(*) FILTER (WHERE is_triggered = true) AS triggered,
			COUNT(*) AS total`).
		Where("owner_id = ?", ownerID).
		Scan(&r).Error
	if err != nil {
		return out, err
	}
	out.Active = r.Active
	out.Triggered = r.Triggered
	out.Total = r.Total
	return out, nil
}

// --- delivery log ----------------------------------------------------------

func (s *Store) InsertAlertNotification(ctx context.Context, item *models.AlertNotification) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) DeleteAlertNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.AlertNotification{})
	return res.RowsAffected, res.Error
}

func (s *Store) ListAlertNotifications(ctx context.Context, alertID string, limit int) ([]models.AlertNotification, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.AlertNotification
	if err := s.db.WithContext(ctx).
		Model(&models.AlertNotification{}).
		Where("alert_id = ?", strings.TrimSpace(alertID)).
		Order("created_at desc").
		Limit(normalizeLimit(limit, 50)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- alert CRUD ------------------------------------------------------------

func (s *Store) CreateAlert(ctx context.Context, item *models.Alert) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetAlertByID(ctx context.Context, id string) (*models.Alert, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, repository.ErrNotFound
	}
	var item models.Alert
	err := s.db.WithContext(ctx).Model(&models.Alert{}).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListAlerts(ctx context.Context, params repository.ListAlertsParams) ([]models.Alert, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyAlertFilters(s.db.WithContext(ctx).Model(&models.Alert{}), params)
	query = applyOrder(query, alertOrderColumn(params.OrderBy), params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Alert
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountAlerts(ctx context.Context, params repository.ListAlertsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := applyAlertFilters(s.db.WithContext(ctx).Model(&models.Alert{}), params).Count(&total).Error
	return total, err
}

func (s *Store) SetAlertActive(ctx context.Context, id string, active bool) error {
	if s == nil || s.db == nil {
		return nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ?", strings.TrimSpace(id)).
		Updates(map[string]any{
			"is_active":  active,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteAlert removes an alert. A non-empty ownerID restricts the delete to
// that owner's alerts.
func (s *Store) DeleteAlert(ctx context.Context, id string, ownerID string) error {
	if s == nil || s.db == nil {
		return nil
	}
	query := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id))
	if ownerID = strings.TrimSpace(ownerID); ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	res := query.Delete(&models.Alert{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// --- system settings -------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- helpers ---------------------------------------------------------------

func applyAlertFilters(query *gorm.DB, params repository.ListAlertsParams) *gorm.DB {
	if params.OwnerID != nil && strings.TrimSpace(*params.OwnerID) != "" {
		query = query.Where("owner_id = ?", strings.TrimSpace(*params.OwnerID))
	}
	if params.ResourceKey != nil && strings.TrimSpace(*params.ResourceKey) != "" {
		query = query.Where("resource_key = ?", strings.TrimSpace(*params.ResourceKey))
	}
	if params.Active != nil {
		query = query.Where("is_active = ?", *params.Active)
	}
	if params.Triggered != nil {
		query = query.Where("is_triggered = ?", *params.Triggered)
	}
	return query
}

func alertOrderColumn(orderBy string) string {
	switch strings.TrimSpace(orderBy) {
	case "created_at", "updated_at", "triggered_at", "resource_key", "notifications_sent":
		return strings.TrimSpace(orderBy)
	default:
		return ""
	}
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
