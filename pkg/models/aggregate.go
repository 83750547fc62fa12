package models

// FilmAggregate is a film_work row joined with its genres and people.
type FilmAggregate struct {
	ID          string
	Title       *string
	Description *string
	Rating      *float64
	Genres      []GenreRelation
	People      []PersonRelation
}

type GenreRelation struct {
	ID          string
	Name        *string
	Description *string
}

// PersonRelation is one person_film_work link. Role is the raw column
// value and is only normalized by the transformer.
type PersonRelation struct {
	ID   string
	Name *string
	Role *string
}

type GenreAggregate struct {
	ID          string
	Name        *string
	Description *string
}

// PersonAggregate is one (person, film, role) row. A person linked to
// several films, or to one film in several roles, yields several rows.
type PersonAggregate struct {
	ID        string
	FullName  *string
	Role      *string
	FilmID    *string
	FilmTitle *string
	Rating    *float64
}
