package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Quiet returns ctx carrying a logger that drops entries below level.
// A logger already at or above level is kept as is.
func Quiet(ctx context.Context, level zapcore.Level) context.Context {
	current := FromContext(ctx)
	if current.Level() >= level {
		return ctx
	}

	// IncreaseLevel only raises the threshold, so the file and console cores keep their own limits.
	return ToContext(ctx, current.WithOptions(zap.IncreaseLevel(level)))
}
