// Package settings holds the per-event payment provider configuration and
// the field schema the host renders to collect it.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-payments/internal/logger"
)

var ErrNotConfigured = errors.New("settings: no provider settings for event")

// Field types understood by the host's generic settings form renderer.
const (
	FieldTypeText   = "text"
	FieldTypeSecret = "secret"
	FieldTypeChoice = "choice"
)

// Field describes one provider setting for generic rendering by the host.
type Field struct {
	Key     string   `json:"key"`
	Type    string   `json:"type"`
	Label   string   `json:"label"`
	Choices []string `json:"choices,omitempty"`
}

// Schema lists the settings every provider configuration needs. The host
// renders these generically; this service owns no form markup.
func Schema() []Field {
	return []Field{
		{Key: "merchant_id", Type: FieldTypeText, Label: "Merchant ID"},
		{Key: "public_key", Type: FieldTypeText, Label: "Public key"},
		{Key: "private_key", Type: FieldTypeSecret, Label: "Private key"},
		{Key: "currency", Type: FieldTypeText, Label: "Currency"},
		{Key: "environment", Type: FieldTypeChoice, Label: "Environment", Choices: []string{"production", "sandbox"}},
	}
}

// Settings is one event's provider configuration.
type Settings struct {
	bun.BaseModel `bun:"table:provider_settings"`

	EventID     string `bun:"event_id,pk" json:"event_id"`
	MerchantID  string `bun:"merchant_id" json:"merchant_id"`
	PublicKey   string `bun:"public_key" json:"public_key"`
	PrivateKey  string `bun:"private_key" json:"-"`
	Currency    string `bun:"currency" json:"currency"`
	Environment string `bun:"environment" json:"environment"`
}

// Validate checks the configuration is complete enough to build a gateway
// client from.
func (s *Settings) Validate() error {
	if s.Environment != "production" && s.Environment != "sandbox" {
		return fmt.Errorf("settings: invalid environment %q", s.Environment)
	}
	if s.Environment == "production" && s.PrivateKey == "" {
		return errors.New("settings: private key is required for production")
	}
	return nil
}

// Store persists provider settings per event.
type Store struct {
	Bun *bun.DB
	Log *logger.Logger
}

func NewStore(db *bun.DB, log *logger.Logger) *Store {
	return &Store{Bun: db, Log: log}
}

func (s *Store) Get(ctx context.Context, eventID string) (*Settings, error) {
	var cfg Settings
	err := s.Bun.NewSelect().
		Model(&cfg).
		Where("event_id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("settings: load for event %s: %w", eventID, err)
	}
	return &cfg, nil
}

func (s *Store) Put(ctx context.Context, cfg *Settings) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	_, err := s.Bun.NewInsert().
		Model(cfg).
		On("CONFLICT (event_id) DO UPDATE").
		Set("merchant_id = EXCLUDED.merchant_id").
		Set("public_key = EXCLUDED.public_key").
		Set("private_key = EXCLUDED.private_key").
		Set("currency = EXCLUDED.currency").
		Set("environment = EXCLUDED.environment").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settings: save for event %s: %w", cfg.EventID, err)
	}
	s.Log.LogDatabase("UPSERT", "provider_settings", fmt.Sprintf("Saved provider settings for event %s", cfg.EventID))
	return nil
}
