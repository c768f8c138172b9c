package relay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// LocalBackend generates text on the local model server.
type LocalBackend interface {
	Generate(ctx context.Context, prompt, model string) (string, error)
}

// HostedBackend generates text through the hosted LLM API.
type HostedBackend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Request is a validated chat request.
type Request struct {
	Message string
	Model   Model
}

// Dispatcher sends each request to exactly one backend.
type Dispatcher struct {
	local  LocalBackend
	hosted HostedBackend
	log    *zap.Logger
}

func NewDispatcher(local LocalBackend, hosted HostedBackend, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		local:  local,
		hosted: hosted,
		log:    logger.Named("dispatcher"),
	}
}

// Dispatch awaits a single backend call and returns its text.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	var (
		text string
		err  error
	)
	switch req.Model {
	case ModelLocal:
		text, err = d.local.Generate(ctx, req.Message, req.Model.String())
	case ModelHosted:
		text, err = d.hosted.Complete(ctx, req.Message)
	default:
		return "", &Error{Kind: KindUnsupportedModel, Err: fmt.Errorf("model %s", req.Model)}
	}

	fields := []zap.Field{
		zap.Stringer("model", req.Model),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		d.log.Warn("backend call failed", append(fields, zap.Stringer("kind", KindOf(err)), zap.Error(err))...)
		return "", err
	}
	d.log.Debug("backend call succeeded", append(fields, zap.Int("response_len", len(text)))...)
	return text, nil
}
