package models

import (
	"fmt"
	"time"
)

// Stream names one independent synchronization lane.
type Stream string

const (
	StreamFilms  Stream = "films"
	StreamGenres Stream = "genres"
	StreamPeople Stream = "people"
)

// AllStreams lists the streams in the order the pipeline visits them.
var AllStreams = []Stream{StreamFilms, StreamGenres, StreamPeople}

func ParseStream(s string) (Stream, error) {
	for _, st := range AllStreams {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stream %q (expected one of films, genres, people)", s)
}

// ChangeRecord is one changed entity id paired with its effective
// modification time: the latest timestamp of the entity itself or of
// anything linked to it through the association tables.
type ChangeRecord struct {
	ID        string
	UpdatedAt time.Time
}
