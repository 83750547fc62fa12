package etl

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BartekS5/cinesync/pkg/models"
	"github.com/BartekS5/cinesync/pkg/utils"
)

// SQLSource reads change ids and aggregates from the relational
// system-of-record.
type SQLSource struct {
	DB      *sql.DB
	Dialect Dialect
	// Schema prefixes every table name when set ("content").
	Schema string
}

func NewSQLSource(db *sql.DB, dialect Dialect, schema string) *SQLSource {
	return &SQLSource{DB: db, Dialect: dialect, Schema: schema}
}

func (s *SQLSource) table(name string) string {
	if s.Schema == "" {
		return name
	}
	return s.Schema + "." + name
}

func (s *SQLSource) coalesce(expr string) string {
	return fmt.Sprintf("COALESCE(%s, %s)", expr, s.Dialect.Epoch())
}

// changedQuery wraps a per-entity "id, updated_at" aggregation with the
// watermark filter, deterministic ordering and the batch limit.
func (s *SQLSource) changedQuery(inner string, limit int) string {
	return fmt.Sprintf(`SELECT id, updated_at FROM (%s) AS updates
WHERE updated_at > %s
ORDER BY updated_at, id
%s`, inner, s.Dialect.Placeholder(1), s.Dialect.Limit(limit))
}

func (s *SQLSource) changedFilmsQuery(limit int) string {
	d := s.Dialect
	inner := fmt.Sprintf(`SELECT %s AS id, %s AS updated_at
FROM %s fw
LEFT JOIN %s gfw ON gfw.film_work_id = fw.id
LEFT JOIN %s g ON g.id = gfw.genre_id
LEFT JOIN %s pfw ON pfw.film_work_id = fw.id
LEFT JOIN %s p ON p.id = pfw.person_id
GROUP BY fw.id, fw.modified`,
		d.IDText("fw.id"),
		d.Greatest(
			s.coalesce("fw.modified"),
			s.coalesce("MAX(g.modified)"),
			s.coalesce("MAX(p.modified)"),
			s.coalesce("MAX(gfw.created)"),
			s.coalesce("MAX(pfw.created)"),
		),
		s.table("film_work"), s.table("genre_film_work"), s.table("genre"),
		s.table("person_film_work"), s.table("person"))
	return s.changedQuery(inner, limit)
}

func (s *SQLSource) changedGenresQuery(limit int) string {
	d := s.Dialect
	inner := fmt.Sprintf(`SELECT %s AS id, %s AS updated_at
FROM %s g
LEFT JOIN %s gfw ON gfw.genre_id = g.id
LEFT JOIN %s fw ON fw.id = gfw.film_work_id
GROUP BY g.id, g.modified`,
		d.IDText("g.id"),
		d.Greatest(
			s.coalesce("g.modified"),
			s.coalesce("MAX(gfw.created)"),
			s.coalesce("MAX(fw.modified)"),
		),
		s.table("genre"), s.table("genre_film_work"), s.table("film_work"))
	return s.changedQuery(inner, limit)
}

func (s *SQLSource) changedPeopleQuery(limit int) string {
	d := s.Dialect
	inner := fmt.Sprintf(`SELECT %s AS id, %s AS updated_at
FROM %s p
LEFT JOIN %s pfw ON pfw.person_id = p.id
LEFT JOIN %s fw ON fw.id = pfw.film_work_id
GROUP BY p.id, p.modified`,
		d.IDText("p.id"),
		d.Greatest(
			s.coalesce("p.modified"),
			s.coalesce("MAX(pfw.created)"),
			s.coalesce("MAX(fw.modified)"),
		),
		s.table("person"), s.table("person_film_work"), s.table("film_work"))
	return s.changedQuery(inner, limit)
}

func (s *SQLSource) ListChangedFilms(ctx context.Context, since time.Time, limit int) ([]models.ChangeRecord, error) {
	return s.listChanged(ctx, s.changedFilmsQuery(limit), since)
}

func (s *SQLSource) ListChangedGenres(ctx context.Context, since time.Time, limit int) ([]models.ChangeRecord, error) {
	return s.listChanged(ctx, s.changedGenresQuery(limit), since)
}

func (s *SQLSource) ListChangedPeople(ctx context.Context, since time.Time, limit int) ([]models.ChangeRecord, error) {
	return s.listChanged(ctx, s.changedPeopleQuery(limit), since)
}

func (s *SQLSource) listChanged(ctx context.Context, query string, since time.Time) ([]models.ChangeRecord, error) {
	rows, err := s.DB.QueryContext(ctx, query, s.Dialect.BindTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to list changed ids: %w", err)
	}
	defer rows.Close()

	var out []models.ChangeRecord
	for rows.Next() {
		var id string
		var raw interface{}
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		updatedAt, err := utils.ConvertDateTime(raw)
		if err != nil {
			return nil, fmt.Errorf("effective time of %s: %w", id, err)
		}
		out = append(out, models.ChangeRecord{ID: id, UpdatedAt: updatedAt})
	}
	return out, rows.Err()
}

// FetchFilms loads the films with their genres and people. Relations are
// fetched by separate queries and grouped by film id here. Films removed
// since they were listed are simply missing from the result.
func (s *SQLSource) FetchFilms(ctx context.Context, ids []string) ([]models.FilmAggregate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	d := s.Dialect

	match, args := d.MatchAny("fw.id", 1, ids)
	query := fmt.Sprintf(`SELECT %s, fw.title, fw.description, fw.rating FROM %s fw WHERE %s`,
		d.IDText("fw.id"), s.table("film_work"), match)

	films := make(map[string]*models.FilmAggregate, len(ids))
	err := s.query(ctx, query, args, func(rows *sql.Rows) error {
		var id string
		var title, description, rawRating interface{}
		if err := rows.Scan(&id, &title, &description, &rawRating); err != nil {
			return err
		}
		rating, err := utils.ConvertToFloat(rawRating)
		if err != nil {
			return fmt.Errorf("rating of film %s: %w", id, err)
		}
		films[id] = &models.FilmAggregate{
			ID:          id,
			Title:       utils.ConvertToString(title),
			Description: utils.ConvertToString(description),
			Rating:      rating,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch films: %w", err)
	}
	if len(films) == 0 {
		return nil, nil
	}

	if err := s.enrichGenres(ctx, films, ids); err != nil {
		return nil, err
	}
	if err := s.enrichPeople(ctx, films, ids); err != nil {
		return nil, err
	}

	out := make([]models.FilmAggregate, 0, len(films))
	for _, id := range ids {
		if f, ok := films[id]; ok {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *SQLSource) enrichGenres(ctx context.Context, films map[string]*models.FilmAggregate, ids []string) error {
	d := s.Dialect
	match, args := d.MatchAny("gfw.film_work_id", 1, ids)
	query := fmt.Sprintf(`SELECT %s, %s, g.name, g.description
FROM %s gfw
JOIN %s g ON g.id = gfw.genre_id
WHERE %s
ORDER BY g.name, g.id`,
		d.IDText("gfw.film_work_id"), d.IDText("g.id"),
		s.table("genre_film_work"), s.table("genre"), match)

	err := s.query(ctx, query, args, func(rows *sql.Rows) error {
		var filmID, genreID string
		var name, description interface{}
		if err := rows.Scan(&filmID, &genreID, &name, &description); err != nil {
			return err
		}
		if f, ok := films[filmID]; ok {
			f.Genres = append(f.Genres, models.GenreRelation{
				ID:          genreID,
				Name:        utils.ConvertToString(name),
				Description: utils.ConvertToString(description),
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to fetch relation genres: %w", err)
	}
	return nil
}

func (s *SQLSource) enrichPeople(ctx context.Context, films map[string]*models.FilmAggregate, ids []string) error {
	d := s.Dialect
	match, args := d.MatchAny("pfw.film_work_id", 1, ids)
	query := fmt.Sprintf(`SELECT %s, %s, p.full_name, pfw.role
FROM %s pfw
JOIN %s p ON p.id = pfw.person_id
WHERE %s
ORDER BY p.full_name, p.id, pfw.role`,
		d.IDText("pfw.film_work_id"), d.IDText("p.id"),
		s.table("person_film_work"), s.table("person"), match)

	err := s.query(ctx, query, args, func(rows *sql.Rows) error {
		var filmID, personID string
		var name, role interface{}
		if err := rows.Scan(&filmID, &personID, &name, &role); err != nil {
			return err
		}
		if f, ok := films[filmID]; ok {
			f.People = append(f.People, models.PersonRelation{
				ID:   personID,
				Name: utils.ConvertToString(name),
				Role: utils.ConvertToString(role),
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to fetch relation people: %w", err)
	}
	return nil
}

func (s *SQLSource) FetchGenres(ctx context.Context, ids []string) ([]models.GenreAggregate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	d := s.Dialect
	match, args := d.MatchAny("g.id", 1, ids)
	query := fmt.Sprintf(`SELECT %s, g.name, g.description FROM %s g WHERE %s ORDER BY g.id`,
		d.IDText("g.id"), s.table("genre"), match)

	var out []models.GenreAggregate
	err := s.query(ctx, query, args, func(rows *sql.Rows) error {
		var id string
		var name, description interface{}
		if err := rows.Scan(&id, &name, &description); err != nil {
			return err
		}
		out = append(out, models.GenreAggregate{
			ID:          id,
			Name:        utils.ConvertToString(name),
			Description: utils.ConvertToString(description),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch genres: %w", err)
	}
	return out, nil
}

// FetchPeople returns one row per (person, film, role); people without
// films come back as a single row with empty film columns.
func (s *SQLSource) FetchPeople(ctx context.Context, ids []string) ([]models.PersonAggregate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	d := s.Dialect
	match, args := d.MatchAny("p.id", 1, ids)
	query := fmt.Sprintf(`SELECT %s, p.full_name, pfw.role, %s, fw.title, fw.rating
FROM %s p
LEFT JOIN %s pfw ON pfw.person_id = p.id
LEFT JOIN %s fw ON fw.id = pfw.film_work_id
WHERE %s
ORDER BY p.id, fw.id, pfw.role`,
		d.IDText("p.id"), d.IDText("fw.id"),
		s.table("person"), s.table("person_film_work"), s.table("film_work"), match)

	var out []models.PersonAggregate
	err := s.query(ctx, query, args, func(rows *sql.Rows) error {
		var id string
		var fullName, role, filmID, filmTitle, rawRating interface{}
		if err := rows.Scan(&id, &fullName, &role, &filmID, &filmTitle, &rawRating); err != nil {
			return err
		}
		rating, err := utils.ConvertToFloat(rawRating)
		if err != nil {
			return fmt.Errorf("rating of a film of person %s: %w", id, err)
		}
		out = append(out, models.PersonAggregate{
			ID:        id,
			FullName:  utils.ConvertToString(fullName),
			Role:      utils.ConvertToString(role),
			FilmID:    utils.ConvertToString(filmID),
			FilmTitle: utils.ConvertToString(filmTitle),
			Rating:    rating,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch people: %w", err)
	}
	return out, nil
}

func (s *SQLSource) query(ctx context.Context, query string, args []any, scan func(*sql.Rows) error) error {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Source adapters binding the SQL reader to one stream each.

type filmSource struct{ *SQLSource }

func (s filmSource) ListChanged(ctx context.Context, since time.Time, limit int) ([]models.ChangeRecord, error) {
	return s.ListChangedFilms(ctx, since, limit)
}

func (s filmSource) Fetch(ctx context.Context, ids []string) ([]models.FilmAggregate, error) {
	return s.FetchFilms(ctx, ids)
}

type genreSource struct{ *SQLSource }

func (s genreSource) ListChanged(ctx context.Context, since time.Time, limit int) ([]models.ChangeRecord, error) {
	return s.ListChangedGenres(ctx, since, limit)
}

func (s genreSource) Fetch(ctx context.Context, ids []string) ([]models.GenreAggregate, error) {
	return s.FetchGenres(ctx, ids)
}

type personSource struct{ *SQLSource }

func (s personSource) ListChanged(ctx context.Context, since time.Time, limit int) ([]models.ChangeRecord, error) {
	return s.ListChangedPeople(ctx, since, limit)
}

func (s personSource) Fetch(ctx context.Context, ids []string) ([]models.PersonAggregate, error) {
	return s.FetchPeople(ctx, ids)
}

func (s *SQLSource) Films() ChangeSource[models.FilmAggregate]    { return filmSource{s} }
func (s *SQLSource) Genres() ChangeSource[models.GenreAggregate]  { return genreSource{s} }
func (s *SQLSource) People() ChangeSource[models.PersonAggregate] { return personSource{s} }
