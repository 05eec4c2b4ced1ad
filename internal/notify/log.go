package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes messages to the log. It stands in when no delivery
// channel is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Send(ctx context.Context, ownerID string, message string) error {
	if n.Logger == nil {
		return nil
	}
	n.Logger.Info("alert notification", zap.String("owner_id", ownerID), zap.String("message", message))
	return nil
}
