package generator

import (
	"github.com/google/uuid"
)

// Generator produces a new value of type T on every call.
type Generator[T any] interface {
	Next() (T, error)
}

// UUIDV4Generator produces random UUIDv4 strings.
type UUIDV4Generator struct{}

func (g *UUIDV4Generator) Next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ Generator[string] = &UUIDV4Generator{}

// UUIDV7Generator produces UUIDv7 strings. They sort by creation time,
// which keeps play history and job ids in the order they were issued.
type UUIDV7Generator struct{}

func (g *UUIDV7Generator) Next() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ Generator[string] = &UUIDV7Generator{}
