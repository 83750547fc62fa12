package etl

import (
	"errors"
	"testing"

	"github.com/BartekS5/cinesync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	filmID    = "3d825f60-9fff-4dfe-b294-1a45fa1e115d"
	genreID   = "120a21cf-9097-479e-904a-13dd7198c1dd"
	personA   = "5b4bf1bc-3397-4e83-9b17-8b10c6544ed1"
	personB   = "a5a8f573-3cee-4ccc-8a2b-91cb9f55250a"
	personC   = "26e83050-29ef-4163-a99d-b546cac208f8"
	otherFilm = "0312ed51-8833-413f-bff5-0e139c11264a"
)

func ptr[T any](v T) *T { return &v }

func TestTransformFilmBucketsPeopleByRole(t *testing.T) {
	agg := models.FilmAggregate{
		ID:     filmID,
		Title:  ptr("Star Wars"),
		Rating: ptr(8.6),
		Genres: []models.GenreRelation{{ID: genreID, Name: ptr("Sci-Fi")}},
		People: []models.PersonRelation{
			{ID: personA, Name: ptr("George Lucas"), Role: ptr("Director")},
			{ID: personA, Name: ptr("George Lucas"), Role: ptr(" writer ")},
			{ID: personB, Name: ptr("Mark Hamill"), Role: ptr("actor")},
			{ID: personC, Name: ptr("Someone"), Role: ptr("producer")},
		},
	}

	doc, err := TransformFilm(agg)
	require.NoError(t, err)

	assert.Equal(t, filmID, doc.DocumentID())
	assert.Equal(t, "Star Wars", *doc.Title)
	assert.Nil(t, doc.Description)
	assert.Equal(t, 8.6, doc.IMDbRating)
	assert.Equal(t, []string{"Sci-Fi"}, doc.GenreNames)
	assert.Equal(t, []string{"George Lucas"}, doc.DirectorsNames)
	assert.Equal(t, []string{"George Lucas"}, doc.WritersNames)
	assert.Equal(t, []string{"Mark Hamill"}, doc.ActorsNames)
	require.Len(t, doc.Actors, 1)
	assert.Equal(t, personB, doc.Actors[0].ID)
}

func TestTransformFilmNormalizesEmptyValues(t *testing.T) {
	agg := models.FilmAggregate{
		ID:          filmID,
		Title:       ptr("  "),
		Description: ptr("N/A"),
		Rating:      nil,
		Genres: []models.GenreRelation{
			{ID: genreID, Name: ptr("")},
		},
		People: []models.PersonRelation{
			{ID: personA, Name: ptr("none"), Role: ptr("actor")},
			{ID: personB, Name: ptr("Mark Hamill"), Role: ptr("actor")},
		},
	}

	doc, err := TransformFilm(agg)
	require.NoError(t, err)

	assert.Nil(t, doc.Title)
	assert.Nil(t, doc.Description)
	assert.Equal(t, 0.0, doc.IMDbRating)
	assert.NotNil(t, doc.Genres)
	assert.Empty(t, doc.Genres, "nameless genres are dropped")
	assert.Empty(t, doc.GenreNames)
	assert.NotNil(t, doc.Directors)
	require.Len(t, doc.Actors, 1, "nameless people are dropped")
	assert.Equal(t, personB, doc.Actors[0].ID)
	assert.Equal(t, []string{"Mark Hamill"}, doc.ActorsNames)
}

func TestTransformFilmKeepsZeroRating(t *testing.T) {
	doc, err := TransformFilm(models.FilmAggregate{ID: filmID, Rating: ptr(0.0)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, doc.IMDbRating)
}

func TestTransformRejectsMalformedIDs(t *testing.T) {
	_, err := TransformFilm(models.FilmAggregate{ID: ""})
	var malformed *MalformedError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, models.StreamFilms, malformed.Stream)

	_, err = TransformFilms([]models.FilmAggregate{
		{ID: filmID},
		{ID: filmID, People: []models.PersonRelation{{ID: "not-a-uuid", Role: ptr("actor")}}},
	})
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, filmID, malformed.ID)

	_, err = TransformGenres([]models.GenreAggregate{{ID: "42"}})
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, models.StreamGenres, malformed.Stream)
}

func TestTransformGenre(t *testing.T) {
	docs, err := TransformGenres([]models.GenreAggregate{
		{ID: genreID, Name: ptr("Drama"), Description: ptr("")},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0].(models.GenreDocument)
	assert.Equal(t, "Drama", *doc.Name)
	assert.Nil(t, doc.Description)
}

func TestTransformPeopleCollapsesRows(t *testing.T) {
	rows := []models.PersonAggregate{
		{ID: personA, FullName: ptr(""), Role: ptr("director"), FilmID: ptr(filmID), FilmTitle: ptr("Star Wars"), Rating: ptr(8.6)},
		{ID: personA, FullName: ptr("George Lucas"), Role: ptr("Writer"), FilmID: ptr(filmID), FilmTitle: ptr("Star Wars"), Rating: ptr(8.6)},
		{ID: personA, FullName: ptr("George Lucas"), Role: ptr("writer"), FilmID: ptr(filmID), FilmTitle: ptr("Star Wars"), Rating: ptr(8.6)},
		{ID: personA, FullName: ptr("George Lucas"), Role: ptr("n/a"), FilmID: ptr(otherFilm), FilmTitle: ptr("THX 1138")},
		{ID: personB, FullName: ptr("Nobody")},
	}

	docs, err := TransformPeople(rows)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	lucas := docs[0].(models.PersonDocument)
	assert.Equal(t, personA, lucas.ID)
	assert.Equal(t, "George Lucas", *lucas.FullName)
	require.Len(t, lucas.Films, 2)
	assert.Equal(t, filmID, lucas.Films[0].ID)
	assert.Equal(t, []string{"director", "writer"}, lucas.Films[0].Roles)
	assert.Equal(t, 8.6, lucas.Films[0].IMDbRating)
	assert.Equal(t, otherFilm, lucas.Films[1].ID)
	assert.Empty(t, lucas.Films[1].Roles)
	assert.Equal(t, 0.0, lucas.Films[1].IMDbRating)

	nobody := docs[1].(models.PersonDocument)
	assert.NotNil(t, nobody.Films)
	assert.Empty(t, nobody.Films)
}

func TestTransformPeopleRejectsBadFilmRelation(t *testing.T) {
	_, err := TransformPeople([]models.PersonAggregate{{ID: personA, FilmID: ptr("x")}})
	var malformed *MalformedError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, personA, malformed.ID)
}
