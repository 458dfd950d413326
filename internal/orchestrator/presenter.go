package orchestrator

import (
	"context"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/logging"
	"go.uber.org/zap"
)

// LogPresenter writes presenter calls to a logger. The daemon uses it
// because its clients read state through the session API instead.
type LogPresenter struct {
	logger *logging.Logger
}

// NewLogPresenter creates a LogPresenter. A nil logger discards output.
func NewLogPresenter(l *logging.Logger) *LogPresenter {
	if l == nil {
		l = logging.NewNop()
	}
	return &LogPresenter{logger: l.Named("presenter")}
}

func (p *LogPresenter) ShowTutorial(ctx context.Context, angle capture.Angle) {
	p.logger.Info(ctx, "tutorial", zap.String("title", angle.Title()), zap.String("instruction", angle.Instruction()))
}

func (p *LogPresenter) ShowRejection(ctx context.Context, angle capture.Angle, errs []string) {
	p.logger.Info(ctx, "recording rejected", zap.String("title", angle.Title()), zap.Strings("errors", errs))
}

func (p *LogPresenter) ShowWarnings(ctx context.Context, angle capture.Angle, warnings []string) {
	p.logger.Info(ctx, "recording accepted with warnings", zap.String("title", angle.Title()), zap.Strings("warnings", warnings))
}

func (p *LogPresenter) ShowCompleted(ctx context.Context, artifact *capture.Artifact) {
	p.logger.Info(ctx, "capture complete", zap.String("artifact.id", artifact.ID), zap.Int64("bytes", artifact.Size()))
}

func (p *LogPresenter) ShowFailure(ctx context.Context, err error) {
	p.logger.Warn(ctx, "capture problem", zap.Error(err))
}
