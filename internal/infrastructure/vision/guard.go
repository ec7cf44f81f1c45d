package vision

import (
	"context"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/core/ports"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/resilience"
)

// Guarded runs a vision model behind the resilience executor. The executor
// config decides the attempt count for resilience.OpVisionRequest.
type Guarded struct {
	model    ports.VisionModel
	executor *resilience.Executor
}

func NewGuarded(model ports.VisionModel, executor *resilience.Executor) *Guarded {
	return &Guarded{model: model, executor: executor}
}

func (g *Guarded) Name() string { return g.model.Name() }

func (g *Guarded) Complete(ctx context.Context, req domain.VisionRequest) (string, error) {
	if g.executor == nil {
		return g.model.Complete(ctx, req)
	}
	out, err := resilience.Call(ctx, g.executor, resilience.OpVisionRequest+"."+g.model.Name(),
		func(callCtx context.Context) (string, error) {
			return g.model.Complete(callCtx, req)
		}, Classify)
	if err != nil {
		return "", WrapTemporaryIfNeeded(g.model.Name()+" vision request", err)
	}
	return out, nil
}
