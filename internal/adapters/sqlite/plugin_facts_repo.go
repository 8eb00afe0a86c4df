package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/apm/internal/core/confidence"
)

// PluginFactsRepository implements secondary.PluginFactsRepository with SQLite.
type PluginFactsRepository struct {
	db *sql.DB
}

// NewPluginFactsRepository creates a new SQLite plugin facts repository.
func NewPluginFactsRepository(db *sql.DB) *PluginFactsRepository {
	return &PluginFactsRepository{db: db}
}

// GetPluginFacts returns the detected technologies of a project keyed by name.
func (r *PluginFactsRepository) GetPluginFacts(ctx context.Context, projectID string) (map[string]confidence.TechnologyFact, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT technology, confidence, description FROM plugin_facts WHERE project_id = ?",
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get plugin facts: %w", err)
	}
	defer rows.Close()

	facts := map[string]confidence.TechnologyFact{}
	for rows.Next() {
		var (
			tech string
			desc sql.NullString
			fact confidence.TechnologyFact
		)
		if err := rows.Scan(&tech, &fact.Confidence, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan plugin fact: %w", err)
		}
		fact.Description = desc.String
		facts[tech] = fact
	}
	return facts, rows.Err()
}

// SetPluginFact records or replaces one technology fact.
func (r *PluginFactsRepository) SetPluginFact(ctx context.Context, projectID, technology string, conf float64, description string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO plugin_facts (project_id, technology, confidence, description, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, technology) DO UPDATE SET confidence = excluded.confidence,
		 description = excluded.description, updated_at = excluded.updated_at`,
		projectID, technology, conf, nullString(description), formatTime(timeNow()),
	)
	if err != nil {
		return fmt.Errorf("failed to set plugin fact: %w", err)
	}
	return nil
}
