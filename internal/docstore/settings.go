package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ziadkadry99/ctxpack/internal/llm"
)

// GetUserSettings returns the requester's LLM preferences. A requester with
// no stored settings gets the zero value.
func (s *Store) GetUserSettings(ctx context.Context, requester string) (llm.UserSettings, error) {
	var us llm.UserSettings
	var models string
	err := s.db.QueryRowContext(ctx,
		`SELECT preferred_provider, models FROM user_settings WHERE requester = ?`, requester,
	).Scan(&us.PreferredProvider, &models)
	if errors.Is(err, sql.ErrNoRows) {
		return us, nil
	}
	if err != nil {
		return us, fmt.Errorf("getting user settings: %w", err)
	}
	if models != "" {
		if err := json.Unmarshal([]byte(models), &us.Models); err != nil {
			return us, fmt.Errorf("decoding model preferences: %w", err)
		}
	}
	return us, nil
}

// SaveUserSettings stores the requester's LLM preferences.
func (s *Store) SaveUserSettings(ctx context.Context, requester string, us llm.UserSettings) error {
	models := []byte("{}")
	if len(us.Models) > 0 {
		var err error
		if models, err = json.Marshal(us.Models); err != nil {
			return fmt.Errorf("encoding model preferences: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_settings (requester, preferred_provider, models, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(requester) DO UPDATE SET
		   preferred_provider = excluded.preferred_provider, models = excluded.models, updated_at = excluded.updated_at`,
		requester, us.PreferredProvider, string(models), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving user settings: %w", err)
	}
	return nil
}
