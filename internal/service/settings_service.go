package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"ton_miner/internal/domain"
	"ton_miner/internal/logger"
	"ton_miner/internal/repository"
)

var ErrInvalidSettings = errors.New("invalid settings")

// SettingsService owns the process-wide settings document
type SettingsService struct {
	repo     repository.DocumentStore
	defaults domain.Settings
	log      *slog.Logger

	mu      sync.RWMutex
	current domain.Settings
}

func NewSettingsService(repo repository.DocumentStore, defaults domain.Settings) *SettingsService {
	return &SettingsService{
		repo:     repo,
		defaults: defaults.Clone(),
		current:  defaults.Clone(),
		log:      logger.Component("settings"),
	}
}

// Load reads the stored document. Missing or broken keys fall back to defaults; it never fails.
func (s *SettingsService) Load(ctx context.Context) domain.Settings {
	raw, err := s.repo.Get(ctx, domain.SettingsKey)
	next := s.defaults.Clone()

	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.log.Info("no stored settings, using defaults")
	case err != nil:
		s.log.Error("failed to read settings, using defaults", "error", err)
	default:
		decoded, bad, derr := domain.DecodeSettings(raw, s.defaults)
		if derr != nil {
			s.log.Warn("stored settings unparseable, using defaults", "error", derr)
		} else {
			next = decoded
			if len(bad) > 0 {
				s.log.Warn("stored settings keys reset to defaults", "keys", bad)
			}
		}
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next.Clone()
}

// Get returns a copy of the current settings
func (s *SettingsService) Get() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Patch merges a partial JSON document over the current settings and persists the result.
// Unknown keys are ignored; any key that fails to decode rejects the whole patch.
func (s *SettingsService) Patch(ctx context.Context, raw []byte) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, bad, err := domain.DecodeSettings(raw, s.current)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if len(bad) > 0 {
		return domain.Settings{}, fmt.Errorf("%w: bad keys %s", ErrInvalidSettings, strings.Join(bad, ", "))
	}
	if err := ValidateSettings(next); err != nil {
		return domain.Settings{}, err
	}

	s.current = next
	s.persist(ctx, next)
	return next.Clone(), nil
}

func (s *SettingsService) persist(ctx context.Context, v domain.Settings) {
	raw, err := json.Marshal(v)
	if err == nil {
		err = s.repo.Put(context.WithoutCancel(ctx), domain.SettingsKey, raw)
	}
	if err != nil {
		PersistFailures.Inc()
		s.log.Error("failed to persist settings", "error", err)
	}
}

// ValidateSettings checks what key-by-key decoding cannot
func ValidateSettings(v domain.Settings) error {
	if v.SessionDuration < 0 || v.DailyGiftCooldown < 0 || v.FaucetCooldown < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidSettings)
	}
	if v.MinAddressLength < 0 {
		return fmt.Errorf("%w: min_address_length must not be negative", ErrInvalidSettings)
	}

	seen := make(map[string]struct{}, len(v.Tasks))
	for _, t := range v.Tasks {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("%w: task without id", ErrInvalidSettings)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: duplicate task %q", ErrInvalidSettings, t.ID)
		}
		seen[t.ID] = struct{}{}

		if t.Reward.IsNegative() {
			return fmt.Errorf("%w: task %q has negative reward", ErrInvalidSettings, t.ID)
		}
		switch t.Kind {
		case domain.TaskKindAd:
		case domain.TaskKindLink:
			if t.URL == "" {
				return fmt.Errorf("%w: link task %q has no url", ErrInvalidSettings, t.ID)
			}
		default:
			return fmt.Errorf("%w: task %q has unknown kind %q", ErrInvalidSettings, t.ID, t.Kind)
		}
	}
	return nil
}
