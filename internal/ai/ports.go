package ai

import "context"

// AI — external intelligence, knows nothing about tenants or storage
type AI interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, prompt string) (string, error)
}
