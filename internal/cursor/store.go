// Package cursor persists the per-(user, list) last-seen post id.
// Updates are per-key and atomic; the monotonicity guard lives in the
// database so a stale writer can never move a cursor backwards.
package cursor

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/replypilot/internal/logging"
	"github.com/replypilot/pkg/models"
)

var log = logging.Component("cursor")

// Store reads and advances cursors in the cursors table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Load reads the full cursor document for one account.
func (s *Store) Load(ctx context.Context, username string) (models.CursorDocument, error) {
	doc := models.CursorDocument{Users: map[string]models.UserState{}}

	rows, err := s.pool.Query(ctx,
		`SELECT list_name, list_id, slack_channel_id, latest_post_id
		 FROM cursors WHERE username = $1`, username)
	if err != nil {
		return doc, fmt.Errorf("failed to load cursors for %s: %w", username, err)
	}
	defer rows.Close()

	state := models.UserState{Lists: map[string]models.ListState{}}
	for rows.Next() {
		var name string
		var ls models.ListState
		if err := rows.Scan(&name, &ls.ID, &ls.SlackChannelID, &ls.LatestPostID); err != nil {
			return doc, fmt.Errorf("failed to scan cursor row: %w", err)
		}
		state.Lists[name] = ls
	}
	if err := rows.Err(); err != nil {
		return doc, fmt.Errorf("failed to read cursor rows: %w", err)
	}

	doc.Users[username] = state
	return doc, nil
}

// Advance moves one list's cursor forward. GREATEST keeps the stored
// value non-decreasing even if a slower cycle reports an older id.
func (s *Store) Advance(ctx context.Context, username, listName string, newLatest int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cursors (username, list_name, latest_post_id, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (username, list_name) DO UPDATE
		 SET latest_post_id = GREATEST(cursors.latest_post_id, EXCLUDED.latest_post_id),
		     updated_at = now()`,
		username, listName, newLatest)
	if err != nil {
		return fmt.Errorf("failed to advance cursor %s/%s: %w", username, listName, err)
	}

	log.Debug().
		Str("username", username).
		Str("list", listName).
		Int64("latest_post_id", newLatest).
		Msg("advanced cursor")
	return nil
}

// Register upserts a list's identity and notification channel without
// touching its cursor position.
func (s *Store) Register(ctx context.Context, username, listName, listID, slackChannelID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cursors (username, list_name, list_id, slack_channel_id, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (username, list_name) DO UPDATE
		 SET list_id = EXCLUDED.list_id,
		     slack_channel_id = EXCLUDED.slack_channel_id,
		     updated_at = now()`,
		username, listName, listID, slackChannelID)
	if err != nil {
		return fmt.Errorf("failed to register list %s/%s: %w", username, listName, err)
	}
	return nil
}
