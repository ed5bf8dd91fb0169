package domain

import (
	"fmt"
	"time"
)

// Event actions / Actions d'événement
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event notifies subscribers that a resource changed / Notifie qu'une ressource a changé
type Event struct {
	Type     string    `json:"type"` // <resource>.<action>
	Resource string    `json:"resource"`
	ID       any       `json:"id"`
	At       time.Time `json:"at"`
}

// NewEvent builds event for resource and action / Construit l'événement pour ressource et action
func NewEvent(resource, action string, id any) Event {
	return Event{
		Type:     fmt.Sprintf("%s.%s", resource, action),
		Resource: resource,
		ID:       id,
		At:       time.Now().UTC(),
	}
}
