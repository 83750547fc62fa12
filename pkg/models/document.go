package models

// Document is anything the sink can upsert by id.
type Document interface {
	DocumentID() string
}

type FilmPerson struct {
	ID   string  `bson:"id" json:"id"`
	Name *string `bson:"name" json:"name"`
}

type FilmGenre struct {
	ID          string  `bson:"id" json:"id"`
	Name        *string `bson:"name" json:"name"`
	Description *string `bson:"description" json:"description"`
}

type FilmDocument struct {
	ID             string       `bson:"_id" json:"id"`
	Title          *string      `bson:"title" json:"title"`
	Description    *string      `bson:"description" json:"description"`
	IMDbRating     float64      `bson:"imdb_rating" json:"imdb_rating"`
	Genres         []FilmGenre  `bson:"genres" json:"genres"`
	GenreNames     []string     `bson:"genre_names" json:"genre_names"`
	Directors      []FilmPerson `bson:"directors" json:"directors"`
	Writers        []FilmPerson `bson:"writers" json:"writers"`
	Actors         []FilmPerson `bson:"actors" json:"actors"`
	DirectorsNames []string     `bson:"directors_names" json:"directors_names"`
	WritersNames   []string     `bson:"writers_names" json:"writers_names"`
	ActorsNames    []string     `bson:"actors_names" json:"actors_names"`
}

func (d FilmDocument) DocumentID() string { return d.ID }

type GenreDocument struct {
	ID          string  `bson:"_id" json:"id"`
	Name        *string `bson:"name" json:"name"`
	Description *string `bson:"description" json:"description"`
}

func (d GenreDocument) DocumentID() string { return d.ID }

// PersonFilm is one film a person took part in, with every role they had.
type PersonFilm struct {
	ID         string   `bson:"id" json:"id"`
	Title      *string  `bson:"title" json:"title"`
	IMDbRating float64  `bson:"imdb_rating" json:"imdb_rating"`
	Roles      []string `bson:"roles" json:"roles"`
}

type PersonDocument struct {
	ID       string       `bson:"_id" json:"id"`
	FullName *string      `bson:"full_name" json:"full_name"`
	Films    []PersonFilm `bson:"films" json:"films"`
}

func (d PersonDocument) DocumentID() string { return d.ID }
