package oracle

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Generator is the LLM capability the orchestrator consumes. The interface
// lives with its consumer so tests can substitute a scripted fake and count
// invocations.
type Generator interface {
	Generate(ctx context.Context, system string, messages []*ai.Message) (string, error)
}

// GenkitGenerator implements Generator with a single genkit.Generate call.
type GenkitGenerator struct {
	g           *genkit.Genkit
	modelName   string
	temperature float64
}

// NewGenkitGenerator binds a Genkit instance to one model and temperature.
func NewGenkitGenerator(g *genkit.Genkit, modelName string, temperature float64) *GenkitGenerator {
	return &GenkitGenerator{g: g, modelName: modelName, temperature: temperature}
}

// Generate invokes the model once. There is no retry here: a duplicate call
// would duplicate billable invocations and downstream memory writes.
func (gg *GenkitGenerator) Generate(ctx context.Context, system string, messages []*ai.Message) (string, error) {
	resp, err := genkit.Generate(ctx, gg.g,
		ai.WithModelName(gg.modelName),
		ai.WithSystem(system),
		ai.WithMessages(messages...),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: gg.temperature}),
	)
	if err != nil {
		return "", fmt.Errorf("model invocation failed: %w", err)
	}
	return resp.Text(), nil
}
