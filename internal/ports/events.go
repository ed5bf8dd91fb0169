package ports

import (
	"context"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
)

// EventPublisher broadcasts change events / Diffuse les événements de changement
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event)
}
