package etl

import (
	"fmt"

	"github.com/BartekS5/cinesync/pkg/models"
	"github.com/google/uuid"
)

// Validator checks the fields an aggregate cannot be written without.
// Everything else has a normalization rule and is never rejected.
type Validator struct {
	Stream models.Stream
}

func NewValidator(stream models.Stream) *Validator {
	return &Validator{Stream: stream}
}

func (v *Validator) ValidateID(id string) error {
	if id == "" {
		return &MalformedError{Stream: v.Stream, ID: id, Reason: "missing required id"}
	}
	if _, err := uuid.Parse(id); err != nil {
		return &MalformedError{Stream: v.Stream, ID: id, Reason: fmt.Sprintf("id is not a UUID: %v", err)}
	}
	return nil
}

// ValidateRelation checks an id referenced from the aggregate owner.
func (v *Validator) ValidateRelation(ownerID, kind, id string) error {
	if id == "" {
		return &MalformedError{Stream: v.Stream, ID: ownerID, Reason: fmt.Sprintf("%s relation without id", kind)}
	}
	if _, err := uuid.Parse(id); err != nil {
		return &MalformedError{Stream: v.Stream, ID: ownerID, Reason: fmt.Sprintf("%s relation id %q is not a UUID", kind, id)}
	}
	return nil
}

func (v *Validator) ValidateFilm(a models.FilmAggregate) error {
	if err := v.ValidateID(a.ID); err != nil {
		return err
	}
	for _, g := range a.Genres {
		if err := v.ValidateRelation(a.ID, "genre", g.ID); err != nil {
			return err
		}
	}
	for _, p := range a.People {
		if err := v.ValidateRelation(a.ID, "person", p.ID); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) ValidatePerson(a models.PersonAggregate) error {
	if err := v.ValidateID(a.ID); err != nil {
		return err
	}
	if a.FilmID != nil {
		return v.ValidateRelation(a.ID, "film", *a.FilmID)
	}
	return nil
}
