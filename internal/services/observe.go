package services

import (
	"context"

	"go.uber.org/zap"

	"ticktr/internal/notify"
	"ticktr/internal/status"
	"ticktr/monitoring"
)

// finish records the outcome of one operation. Rejections carrying a known
// error kind log at Warn, everything else at Error.
func finish(logger *zap.Logger, monitor *monitoring.Monitor, operation string, err error, fields ...zap.Field) {
	monitor.TrackOperation(operation, err)
	if err == nil {
		return
	}

	kind := status.Kind(err)
	fields = append(fields, zap.String("kind", kind), zap.Error(err))
	if kind == "internal" {
		logger.Error(operation+" failed", fields...)
		return
	}
	logger.Warn(operation+" rejected", fields...)
}

func publish(ctx context.Context, publisher notify.Publisher, logger *zap.Logger, eventID string, message map[string]any) {
	channel := notify.EventChannel(eventID)
	if err := publisher.Publish(ctx, channel, message); err != nil {
		logger.Warn("publish failed", zap.String("channel", channel), zap.Error(err))
	}
}
