package mongorepository

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// Cursor is a typed view over a driver cursor. It is lazy and one-shot:
// once drained or closed it cannot be rewound, only re-created by
// calling Find again.
type Cursor[T any] struct {
	cursor *mongo.Cursor
}

// Next advances to the next document. It returns false when the cursor
// is exhausted or failed; check Err after the loop.
func (c *Cursor[T]) Next(ctx context.Context) bool {
	return c.cursor.Next(ctx)
}

// Decode unmarshals the current document.
func (c *Cursor[T]) Decode(entity *T) error {
	return c.cursor.Decode(entity)
}

// All drains the remaining documents and closes the cursor.
func (c *Cursor[T]) All(ctx context.Context) ([]T, error) {
	var results []T
	if err := c.cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Close releases the server-side cursor.
func (c *Cursor[T]) Close(ctx context.Context) error {
	return c.cursor.Close(ctx)
}

// Err reports the first error observed during iteration.
func (c *Cursor[T]) Err() error {
	return c.cursor.Err()
}
