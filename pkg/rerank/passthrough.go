package rerank

import "context"

// Passthrough keeps the retrieval order. Used when no cross-encoder is configured.
type Passthrough struct{}

func NewPassthrough() *Passthrough { return &Passthrough{} }

func (p *Passthrough) Name() string    { return "passthrough" }
func (p *Passthrough) Available() bool { return false }

func (p *Passthrough) Rerank(ctx context.Context, _ string, documents []string, topK int) ([]Scored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return identity(len(documents), topK), nil
}
