// Package sqlite implements a SQLite-backed InvitationStore driver using
// gorm. SQLite is the sole source of truth; there is no JSON mirror.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/scille-labs/invite-conduit/internal/store"
)

func init() {
	store.Register(driver{})
}

type driver struct{}

func (driver) Name() string { return "sqlite" }

func (driver) Open(ctx context.Context, dataDir string) (store.InvitationStore, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("sqlite store: data_dir is required")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("sqlite store: create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "invitations.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open database: %w", err)
	}

	if err := db.AutoMigrate(&invitationRow{}); err != nil {
		return nil, fmt.Errorf("sqlite store: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// invitationRow is the gorm model backing store.Invitation.
type invitationRow struct {
	OrganizationID     string    `gorm:"primaryKey;column:organization_id"`
	Token              string    `gorm:"primaryKey;column:token"` // hex
	Kind               string    `gorm:"column:kind"`
	GreeterUserID      string    `gorm:"column:greeter_user_id;index"`
	GreeterHumanHandle string    `gorm:"column:greeter_human_handle"`
	ClaimerEmail       string    `gorm:"column:claimer_email"`
	CreatedOn          time.Time `gorm:"column:created_on;index"`
	Status             string    `gorm:"column:status"`
	DeletedOn          time.Time `gorm:"column:deleted_on"`
	DeletedReason      string    `gorm:"column:deleted_reason"`
}

func (invitationRow) TableName() string { return "invitations" }

func toRow(inv *store.Invitation) *invitationRow {
	return &invitationRow{
		OrganizationID:     inv.OrganizationID,
		Token:              store.TokenToString(inv.Token),
		Kind:               string(inv.Kind),
		GreeterUserID:      inv.GreeterUserID,
		GreeterHumanHandle: inv.GreeterHumanHandle,
		ClaimerEmail:       inv.ClaimerEmail,
		CreatedOn:          inv.CreatedOn,
		Status:             string(inv.Status),
		DeletedOn:          inv.DeletedOn,
		DeletedReason:      string(inv.DeletedReason),
	}
}

func fromRow(r *invitationRow) (*store.Invitation, error) {
	token, err := store.TokenFromString(r.Token)
	if err != nil {
		return nil, err
	}
	return &store.Invitation{
		OrganizationID:     r.OrganizationID,
		Token:              token,
		Kind:               store.Kind(r.Kind),
		GreeterUserID:      r.GreeterUserID,
		GreeterHumanHandle: r.GreeterHumanHandle,
		ClaimerEmail:       r.ClaimerEmail,
		CreatedOn:          r.CreatedOn,
		Status:             store.Status(r.Status),
		DeletedOn:          r.DeletedOn,
		DeletedReason:      store.DeletedReason(r.DeletedReason),
	}, nil
}

// Store is a gorm+sqlite InvitationStore.
type Store struct {
	db *gorm.DB
}

func (s *Store) Create(ctx context.Context, org string, kind store.Kind, greeterUserID, greeterHumanHandle, claimerEmail string) (*store.Invitation, error) {
	inv := &store.Invitation{
		OrganizationID:     org,
		Token:              store.NewToken(),
		Kind:               kind,
		GreeterUserID:      greeterUserID,
		GreeterHumanHandle: greeterHumanHandle,
		ClaimerEmail:       claimerEmail,
		CreatedOn:          time.Now(),
		Status:             store.StatusIdle,
	}

	row := toRow(inv)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("sqlite store: create: %w", err)
	}
	return inv, nil
}

func (s *Store) Get(ctx context.Context, org string, token [16]byte) (*store.Invitation, error) {
	var row invitationRow
	result := s.db.WithContext(ctx).
		Where("organization_id = ? AND token = ?", org, store.TokenToString(token)).
		First(&row)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite store: get: %w", result.Error)
	}
	return fromRow(&row)
}

func (s *Store) Delete(ctx context.Context, org, greeterUserID string, token [16]byte, on time.Time, reason store.DeletedReason) error {
	var row invitationRow
	result := s.db.WithContext(ctx).
		Where("organization_id = ? AND token = ? AND greeter_user_id = ?", org, store.TokenToString(token), greeterUserID).
		First(&row)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return store.ErrNotFound
		}
		return fmt.Errorf("sqlite store: delete lookup: %w", result.Error)
	}
	if row.Status == string(store.StatusDeleted) {
		return store.ErrAlreadyDeleted
	}

	updates := map[string]interface{}{
		"status":         string(store.StatusDeleted),
		"deleted_on":     on,
		"deleted_reason": string(reason),
	}
	if err := s.db.WithContext(ctx).Model(&row).Updates(updates).Error; err != nil {
		return fmt.Errorf("sqlite store: delete: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, org, greeterUserID string) ([]*store.Invitation, error) {
	var rows []invitationRow
	if err := s.db.WithContext(ctx).
		Where("organization_id = ? AND greeter_user_id = ?", org, greeterUserID).
		Order("created_on ASC, token ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlite store: list: %w", err)
	}

	out := make([]*store.Invitation, 0, len(rows))
	for i := range rows {
		inv, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *Store) SetReady(ctx context.Context, org string, token [16]byte, ready bool) error {
	status := string(store.StatusIdle)
	if ready {
		status = string(store.StatusReady)
	}
	return s.db.WithContext(ctx).Model(&invitationRow{}).
		Where("organization_id = ? AND token = ? AND status != ?", org, store.TokenToString(token), string(store.StatusDeleted)).
		Update("status", status).Error
}

var _ store.InvitationStore = (*Store)(nil)
