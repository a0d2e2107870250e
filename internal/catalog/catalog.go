// Package catalog optionally records every processed episode in Postgres so
// progress across runs and machines can be queried.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"thirdcoast.systems/vodarchive/internal/episode"
	"thirdcoast.systems/vodarchive/internal/naming"
	"thirdcoast.systems/vodarchive/pkg/utils/markdown"
)

// Status is the last known outcome for an episode.
type Status string

const (
	StatusDownloaded Status = "downloaded"
	StatusUploaded   Status = "uploaded"
	StatusPartial    Status = "partial"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
	StatusIncomplete Status = "incomplete"
)

var ErrNotFound = errors.New("catalog: episode not found")

// Entry is one episode outcome.
type Entry struct {
	Record     episode.Record
	Source     string
	Status     Status
	FilesOK    int
	FilesTotal int
}

// Recorder receives episode outcomes.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Nop discards every entry. It is used when no database is configured.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

var namespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("roosterteeth.com"))

// EntryID is the stable row id for a numeric episode id. Bonus and regular
// records with the same base id get different ids.
func EntryID(numericID string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(numericID))
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres-backed Recorder.
type Store struct {
	db querier
}

func NewStore(db querier) *Store {
	return &Store{db: db}
}

const upsertEpisode = `
INSERT INTO episodes (
    id, numeric_id, slug, identifier, title, show_title, channel_title,
    air_date, season_number, episode_number, is_bonus, description, source,
    status, files_ok, files_total
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (id) DO UPDATE SET
    slug = EXCLUDED.slug,
    title = EXCLUDED.title,
    show_title = EXCLUDED.show_title,
    channel_title = EXCLUDED.channel_title,
    air_date = EXCLUDED.air_date,
    season_number = EXCLUDED.season_number,
    episode_number = EXCLUDED.episode_number,
    description = EXCLUDED.description,
    source = EXCLUDED.source,
    status = EXCLUDED.status,
    files_ok = EXCLUDED.files_ok,
    files_total = EXCLUDED.files_total,
    updated_at = NOW()`

func (s *Store) Record(ctx context.Context, e Entry) error {
	rec := e.Record
	if rec.NumericID == "" {
		return episode.ErrMissingID
	}

	var airDate pgtype.Date
	if rec.HasAirDate() {
		t, err := time.Parse(time.DateOnly, rec.AirDate)
		if err != nil {
			return fmt.Errorf("catalog: air date of %s: %w", rec.NumericID, err)
		}
		airDate = pgtype.Date{Time: t, Valid: true}
	}
	var epNum pgtype.Int4
	if rec.EpisodeNumber != nil {
		epNum = pgtype.Int4{Int32: int32(*rec.EpisodeNumber), Valid: true}
	}

	_, err := s.db.Exec(ctx, upsertEpisode,
		EntryID(rec.NumericID),
		rec.NumericID,
		rec.Slug,
		naming.ItemIdentifier(rec),
		rec.Title,
		rec.ShowTitle,
		rec.ChannelTitle,
		airDate,
		rec.SeasonNumber,
		epNum,
		rec.IsBonus(),
		markdown.New(rec.Description),
		e.Source,
		string(e.Status),
		e.FilesOK,
		e.FilesTotal,
	)
	if err != nil {
		return fmt.Errorf("catalog: upsert %s: %w", rec.NumericID, err)
	}
	return nil
}

// Row is a stored episode.
type Row struct {
	ID         uuid.UUID
	NumericID  string
	Identifier string
	Status     Status
	UpdatedAt  time.Time
}

func (s *Store) Get(ctx context.Context, numericID string) (*Row, error) {
	var r Row
	var status string
	err := s.db.QueryRow(ctx,
		`SELECT id, numeric_id, identifier, status, updated_at FROM episodes WHERE id = $1`,
		EntryID(numericID),
	).Scan(&r.ID, &r.NumericID, &r.Identifier, &status, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get %s: %w", numericID, err)
	}
	r.Status = Status(status)
	return &r, nil
}
