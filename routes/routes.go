package routes

import (
	"context"

	"cognichat/models"
)

// Answerer answers one question against the shared index.
type Answerer interface {
	Ask(ctx context.Context, question string) (*models.Answer, error)
}

// IndexController exposes the index lifecycle to operators.
type IndexController interface {
	Status() models.IndexStatus
	Rebuild(ctx context.Context) error
	Invalidate()
}
