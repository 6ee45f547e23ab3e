package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cardlab-backend/internal/models"
)

// Notifier fans notifications out to a user's websocket connections via
// redis pub/sub; the hub on the other end does the delivery.
type Notifier struct {
	redis *redis.Client
}

func NewNotifier(redisClient *redis.Client) *Notifier {
	return &Notifier{redis: redisClient}
}

func (n *Notifier) Publish(ctx context.Context, userID uuid.UUID, msg models.Notification) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	n.redis.Publish(ctx, fmt.Sprintf("user_updates:%s", userID.String()), string(data))
}
