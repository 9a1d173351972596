// Package training maintains the labeled-examples dataset the topic
// classifier is retrained on.
package training

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/replypilot/internal/logging"
)

var log = logging.Component("training")

// Dataset appends labeled posts to the durable labeled_examples table.
type Dataset struct {
	pool *pgxpool.Pool
}

func NewDataset(pool *pgxpool.Pool) *Dataset {
	return &Dataset{pool: pool}
}

// AddLabel records one manually labeled post.
func (d *Dataset) AddLabel(ctx context.Context, post, label string) error {
	if strings.TrimSpace(post) == "" || strings.TrimSpace(label) == "" {
		return fmt.Errorf("post and label are both required")
	}

	_, err := d.pool.Exec(ctx,
		`INSERT INTO labeled_examples (post, label) VALUES ($1, $2)`, post, label)
	if err != nil {
		return fmt.Errorf("failed to store labeled example: %w", err)
	}

	log.Info().Str("label", label).Msg("labeled example recorded")
	return nil
}

// Count returns the dataset size, used by the statistics endpoint.
func (d *Dataset) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := d.pool.QueryRow(ctx, `SELECT count(*) FROM labeled_examples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count labeled examples: %w", err)
	}
	return n, nil
}
