package etl

import (
	"strings"

	"github.com/BartekS5/cinesync/pkg/models"
	"github.com/BartekS5/cinesync/pkg/utils"
	"github.com/samber/lo"
)

const (
	roleDirector = "director"
	roleWriter   = "writer"
	roleActor    = "actor"
)

func normalizeRole(role *string) string {
	if role == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*role))
}

// TransformFilm builds the search document for one film. People are
// bucketed by role; unknown roles are dropped, and so are genres and
// people without a name.
func TransformFilm(a models.FilmAggregate) (models.FilmDocument, error) {
	if err := NewValidator(models.StreamFilms).ValidateFilm(a); err != nil {
		return models.FilmDocument{}, err
	}

	doc := models.FilmDocument{
		ID:             a.ID,
		Title:          utils.CleanString(a.Title),
		Description:    utils.CleanString(a.Description),
		IMDbRating:     utils.FloatOrZero(a.Rating),
		Genres:         make([]models.FilmGenre, 0, len(a.Genres)),
		GenreNames:     make([]string, 0, len(a.Genres)),
		Directors:      []models.FilmPerson{},
		Writers:        []models.FilmPerson{},
		Actors:         []models.FilmPerson{},
		DirectorsNames: []string{},
		WritersNames:   []string{},
		ActorsNames:    []string{},
	}

	for _, g := range a.Genres {
		name := utils.CleanString(g.Name)
		if name == nil {
			continue
		}
		doc.Genres = append(doc.Genres, models.FilmGenre{
			ID:          g.ID,
			Name:        name,
			Description: utils.CleanString(g.Description),
		})
		doc.GenreNames = append(doc.GenreNames, *name)
	}

	for _, p := range a.People {
		person := models.FilmPerson{ID: p.ID, Name: utils.CleanString(p.Name)}
		if person.Name == nil {
			continue
		}

		var bucket *[]models.FilmPerson
		var names *[]string
		switch normalizeRole(p.Role) {
		case roleDirector:
			bucket, names = &doc.Directors, &doc.DirectorsNames
		case roleWriter:
			bucket, names = &doc.Writers, &doc.WritersNames
		case roleActor:
			bucket, names = &doc.Actors, &doc.ActorsNames
		default:
			continue
		}
		*bucket = append(*bucket, person)
		*names = append(*names, *person.Name)
	}
	return doc, nil
}

func TransformFilms(aggs []models.FilmAggregate) ([]models.Document, error) {
	out := make([]models.Document, 0, len(aggs))
	for _, a := range aggs {
		doc, err := TransformFilm(a)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func TransformGenre(a models.GenreAggregate) (models.GenreDocument, error) {
	if err := NewValidator(models.StreamGenres).ValidateID(a.ID); err != nil {
		return models.GenreDocument{}, err
	}
	return models.GenreDocument{
		ID:          a.ID,
		Name:        utils.CleanString(a.Name),
		Description: utils.CleanString(a.Description),
	}, nil
}

func TransformGenres(aggs []models.GenreAggregate) ([]models.Document, error) {
	out := make([]models.Document, 0, len(aggs))
	for _, a := range aggs {
		doc, err := TransformGenre(a)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// TransformPeople collapses the per (person, film, role) rows into one
// document per person, in the order people first appear. The first
// non-empty name wins; each film lists every role the person had in it.
func TransformPeople(rows []models.PersonAggregate) ([]models.Document, error) {
	v := NewValidator(models.StreamPeople)

	var order []string
	people := make(map[string]*models.PersonDocument)
	films := make(map[string]map[string]int)

	for _, row := range rows {
		if err := v.ValidatePerson(row); err != nil {
			return nil, err
		}

		doc, ok := people[row.ID]
		if !ok {
			doc = &models.PersonDocument{ID: row.ID, Films: []models.PersonFilm{}}
			people[row.ID] = doc
			films[row.ID] = make(map[string]int)
			order = append(order, row.ID)
		}
		if doc.FullName == nil {
			doc.FullName = utils.CleanString(row.FullName)
		}

		if row.FilmID == nil {
			continue
		}
		idx, seen := films[row.ID][*row.FilmID]
		if !seen {
			doc.Films = append(doc.Films, models.PersonFilm{
				ID:         *row.FilmID,
				Title:      utils.CleanString(row.FilmTitle),
				IMDbRating: utils.FloatOrZero(row.Rating),
				Roles:      []string{},
			})
			idx = len(doc.Films) - 1
			films[row.ID][*row.FilmID] = idx
		}
		if role := normalizeRole(row.Role); !utils.IsEmptyLike(role) {
			doc.Films[idx].Roles = lo.Uniq(append(doc.Films[idx].Roles, role))
		}
	}

	return lo.Map(order, func(id string, _ int) models.Document {
		return *people[id]
	}), nil
}
