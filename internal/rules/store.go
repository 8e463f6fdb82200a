package rules

import "context"

// Store persists declarative rule specs so a configured rule set survives
// restarts. The engine itself is memory-only; the server loads specs at
// startup and writes through on CRUD.
type Store interface {
	Upsert(ctx context.Context, spec *Spec) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]*Spec, error)
	// Replace swaps the entire stored set for the given one.
	Replace(ctx context.Context, specs []*Spec) error
}
