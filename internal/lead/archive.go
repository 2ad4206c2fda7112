package lead

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type repo struct {
	db *sqlx.DB
}

// NewRepo stores leads in the Postgres "leads" table.
func NewRepo(db *sqlx.DB) Repo {
	return &repo{db: db}
}

// OpenPostgres connects with lib/pq and checks the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	const op = "lead.OpenPostgres"

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return db, nil
}

type leadRow struct {
	ID             uuid.UUID      `db:"id"`
	Channel        string         `db:"channel"`
	ConversationID string         `db:"conversation_id"`
	Topics         pq.StringArray `db:"topics"`
	Name           string         `db:"name"`
	Phone          string         `db:"phone"`
	City           string         `db:"city"`
	Sphere         string         `db:"sphere"`
	Fingerprint    string         `db:"fingerprint"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r *repo) Save(ctx context.Context, l Lead) error {
	const op = "lead.repo.Save"

	row := leadRow{
		ID:             l.ID,
		Channel:        string(l.Channel),
		ConversationID: l.ConversationID,
		Topics:         pq.StringArray(l.Topics),
		Name:           l.Name,
		Phone:          l.Phone,
		City:           l.City,
		Sphere:         l.Sphere,
		Fingerprint:    l.Fingerprint(),
		CreatedAt:      l.CreatedAt,
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO leads (id, channel, conversation_id, topics, name, phone, city, sphere, fingerprint, created_at)
		VALUES (:id, :channel, :conversation_id, :topics, :name, :phone, :city, :sphere, :fingerprint, :created_at)
		ON CONFLICT (id) DO NOTHING
	`, row)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *repo) Recent(ctx context.Context, limit int) ([]Lead, error) {
	const op = "lead.repo.Recent"

	if limit <= 0 {
		limit = 50
	}
	var rows []leadRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, channel, conversation_id, topics, name, phone, city, sphere, fingerprint, created_at
		FROM leads
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]Lead, 0, len(rows))
	for _, row := range rows {
		out = append(out, Lead{
			ID:             row.ID,
			Channel:        Channel(row.Channel),
			ConversationID: row.ConversationID,
			Topics:         []string(row.Topics),
			Name:           row.Name,
			Phone:          row.Phone,
			City:           row.City,
			Sphere:         row.Sphere,
			CreatedAt:      row.CreatedAt,
		})
	}
	return out, nil
}
