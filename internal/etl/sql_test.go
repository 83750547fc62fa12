package etl

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/BartekS5/cinesync/pkg/models"
	"github.com/BartekS5/cinesync/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const contentSchema = `
CREATE TABLE film_work (id TEXT PRIMARY KEY, title TEXT, description TEXT, rating REAL, created TEXT, modified TEXT);
CREATE TABLE genre (id TEXT PRIMARY KEY, name TEXT, description TEXT, created TEXT, modified TEXT);
CREATE TABLE person (id TEXT PRIMARY KEY, full_name TEXT, created TEXT, modified TEXT);
CREATE TABLE genre_film_work (id TEXT PRIMARY KEY, film_work_id TEXT, genre_id TEXT, created TEXT);
CREATE TABLE person_film_work (id TEXT PRIMARY KEY, film_work_id TEXT, person_id TEXT, role TEXT, created TEXT);
`

var (
	t1 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 = time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
)

func ts(t time.Time) string { return t.Format(utils.SQLiteTimeLayout) }

func newTestSource(t *testing.T) (*SQLSource, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(contentSchema)
	require.NoError(t, err)

	d, err := DialectFor("sqlite")
	require.NoError(t, err)
	return NewSQLSource(db, d, ""), db
}

func exec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	_, err := db.Exec(query, args...)
	require.NoError(t, err)
}

// seed creates one film with a genre and two people, all modified at t1.
func seed(t *testing.T, db *sql.DB) {
	exec(t, db, `INSERT INTO film_work VALUES (?, 'Star Wars', 'Space opera', 8.6, ?, ?)`, filmID, ts(t1), ts(t1))
	exec(t, db, `INSERT INTO genre VALUES (?, 'Sci-Fi', NULL, ?, ?)`, genreID, ts(t1), ts(t1))
	exec(t, db, `INSERT INTO person VALUES (?, 'George Lucas', ?, ?)`, personA, ts(t1), ts(t1))
	exec(t, db, `INSERT INTO person VALUES (?, 'Mark Hamill', ?, ?)`, personB, ts(t1), ts(t1))
	exec(t, db, `INSERT INTO genre_film_work VALUES ('gfw-1', ?, ?, ?)`, filmID, genreID, ts(t1))
	exec(t, db, `INSERT INTO person_film_work VALUES ('pfw-1', ?, ?, 'director', ?)`, filmID, personA, ts(t1))
	exec(t, db, `INSERT INTO person_film_work VALUES ('pfw-2', ?, ?, 'actor', ?)`, filmID, personB, ts(t1))
}

func ids(records []models.ChangeRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestListChangedFromZeroWatermark(t *testing.T) {
	src, db := newTestSource(t)
	seed(t, db)
	ctx := context.Background()

	films, err := src.ListChangedFilms(ctx, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, films, 1)
	assert.Equal(t, filmID, films[0].ID)
	assert.True(t, t1.Equal(films[0].UpdatedAt), "got %s", films[0].UpdatedAt)

	people, err := src.ListChangedPeople(ctx, time.Time{}, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{personA, personB}, ids(people))
}

func TestListChangedPropagatesRelatedChanges(t *testing.T) {
	src, db := newTestSource(t)
	seed(t, db)
	ctx := context.Background()

	films, err := src.ListChangedFilms(ctx, t1, 10)
	require.NoError(t, err)
	assert.Empty(t, films)

	exec(t, db, `UPDATE genre SET modified = ? WHERE id = ?`, ts(t2), genreID)

	films, err = src.ListChangedFilms(ctx, t1, 10)
	require.NoError(t, err)
	require.Len(t, films, 1)
	assert.Equal(t, filmID, films[0].ID)
	assert.True(t, t2.Equal(films[0].UpdatedAt))

	genres, err := src.ListChangedGenres(ctx, t1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{genreID}, ids(genres))

	// A film edit reaches every person credited in it.
	exec(t, db, `UPDATE film_work SET modified = ? WHERE id = ?`, ts(t2), filmID)
	people, err := src.ListChangedPeople(ctx, t1, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{personA, personB}, ids(people))
}

func TestListChangedIncludesGenreWithoutFilms(t *testing.T) {
	src, db := newTestSource(t)
	exec(t, db, `INSERT INTO genre VALUES (?, 'Documentary', NULL, ?, ?)`, genreID, ts(t1), ts(t1))

	genres, err := src.ListChangedGenres(context.Background(), time.Time{}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{genreID}, ids(genres))
}

func TestListChangedIsStrictAtWatermark(t *testing.T) {
	src, db := newTestSource(t)
	seed(t, db)
	ctx := context.Background()

	films, err := src.ListChangedFilms(ctx, t1, 10)
	require.NoError(t, err)
	assert.Empty(t, films)

	films, err = src.ListChangedFilms(ctx, t1.Add(-Epsilon), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{filmID}, ids(films))
}

func TestListChangedOrdersByTimeThenID(t *testing.T) {
	src, db := newTestSource(t)
	exec(t, db, `INSERT INTO film_work VALUES (?, 'C', NULL, NULL, ?, ?)`, personA, ts(t1), ts(t1))
	exec(t, db, `INSERT INTO film_work VALUES (?, 'B', NULL, NULL, ?, ?)`, otherFilm, ts(t1), ts(t1))
	exec(t, db, `INSERT INTO film_work VALUES (?, 'A', NULL, NULL, ?, ?)`, genreID, ts(t2), ts(t2))
	exec(t, db, `INSERT INTO film_work VALUES (?, 'D', NULL, NULL, ?, ?)`, filmID, ts(t1), ts(t1))

	films, err := src.ListChangedFilms(context.Background(), time.Time{}, 3)
	require.NoError(t, err)
	// otherFilm < filmID < personA lexically; genreID is newer.
	assert.Equal(t, []string{otherFilm, filmID, personA}, ids(films))
}

func TestFetchFilmsBuildsAggregates(t *testing.T) {
	src, db := newTestSource(t)
	seed(t, db)

	missing := "9c1dbd27-a37b-4b1d-8b2a-2d6a2c1c9d11"
	films, err := src.FetchFilms(context.Background(), []string{missing, filmID})
	require.NoError(t, err)
	require.Len(t, films, 1)

	f := films[0]
	assert.Equal(t, "Star Wars", *f.Title)
	assert.Equal(t, 8.6, *f.Rating)
	require.Len(t, f.Genres, 1)
	assert.Equal(t, genreID, f.Genres[0].ID)
	assert.Nil(t, f.Genres[0].Description)
	require.Len(t, f.People, 2)
	assert.Equal(t, "George Lucas", *f.People[0].Name)
	assert.Equal(t, "director", *f.People[0].Role)

	doc, err := TransformFilm(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mark Hamill"}, doc.ActorsNames)
}

func TestFetchPeopleReturnsOneRowPerRole(t *testing.T) {
	src, db := newTestSource(t)
	seed(t, db)
	exec(t, db, `INSERT INTO person_film_work VALUES ('pfw-3', ?, ?, 'writer', ?)`, filmID, personA, ts(t1))
	exec(t, db, `INSERT INTO person VALUES (?, 'Uncredited', ?, ?)`, personC, ts(t1), ts(t1))

	rows, err := src.FetchPeople(context.Background(), []string{personA, personC})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	docs, err := TransformPeople(rows)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	byID := map[string]models.PersonDocument{}
	for _, d := range docs {
		byID[d.DocumentID()] = d.(models.PersonDocument)
	}
	require.Len(t, byID[personA].Films, 1)
	assert.Equal(t, []string{"director", "writer"}, byID[personA].Films[0].Roles)
	assert.Empty(t, byID[personC].Films)
}

func TestFetchGenres(t *testing.T) {
	src, db := newTestSource(t)
	seed(t, db)

	genres, err := src.Genres().Fetch(context.Background(), []string{genreID})
	require.NoError(t, err)
	require.Len(t, genres, 1)
	assert.Equal(t, "Sci-Fi", *genres[0].Name)
}

func TestFetchWithNoIDsSkipsTheQuery(t *testing.T) {
	src, db := newTestSource(t)
	require.NoError(t, db.Close())
	ctx := context.Background()

	films, err := src.FetchFilms(ctx, nil)
	assert.NoError(t, err)
	assert.Empty(t, films)

	genres, err := src.FetchGenres(ctx, []string{})
	assert.NoError(t, err)
	assert.Empty(t, genres)

	people, err := src.FetchPeople(ctx, nil)
	assert.NoError(t, err)
	assert.Empty(t, people)
}

func TestDialectPlaceholders(t *testing.T) {
	pg, err := DialectFor("postgres")
	require.NoError(t, err)
	match, args := pg.MatchAny("fw.id", 1, []string{filmID})
	assert.Equal(t, "fw.id = ANY($1::uuid[])", match)
	assert.Len(t, args, 1)

	ms, err := DialectFor("sqlserver")
	require.NoError(t, err)
	match, args = ms.MatchAny("fw.id", 2, []string{filmID, genreID})
	assert.Equal(t, "fw.id IN (@p2, @p3)", match)
	assert.Len(t, args, 2)
	assert.Equal(t, "OFFSET 0 ROWS FETCH NEXT 5 ROWS ONLY", ms.Limit(5))

	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestFetchReadsTextRatingsAndRejectsBadOnes(t *testing.T) {
	src, db := newTestSource(t)
	exec(t, db, `INSERT INTO film_work VALUES (?, 'Solaris', NULL, ?, ?, ?)`, filmID, "8.10", ts(t1), ts(t1))
	exec(t, db, `INSERT INTO film_work VALUES (?, 'Broken', NULL, 'high', ?, ?)`, otherFilm, ts(t1), ts(t1))
	ctx := context.Background()

	films, err := src.FetchFilms(ctx, []string{filmID})
	require.NoError(t, err)
	require.Len(t, films, 1)
	assert.Equal(t, 8.1, *films[0].Rating)
	assert.Nil(t, films[0].Description)

	_, err = src.FetchFilms(ctx, []string{otherFilm})
	assert.ErrorContains(t, err, "rating of film")
}
