package inspect

import (
	"context"

	"mevscope/internal/model"
	"mevscope/internal/tree"
)

// Inspector detects one MEV pattern over a block's action tree. An
// implementation must not mutate the tree or metadata, must skip
// transactions lacking info, and returns an empty slice when no pattern is
// found. Inspectors never block on each other.
type Inspector interface {
	Name() string
	Inspect(ctx context.Context, t *tree.Tree, meta *model.Metadata) ([]model.Bundle, error)
}
