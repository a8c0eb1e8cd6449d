// Package auth holds the participant checks applied to deal and offer
// operations.
package auth

import (
	"errors"
	"fmt"
)

var ErrNoActor = errors.New("actor_id required")

// ForbiddenError indicates the actor is not allowed to act on the entity.
type ForbiddenError struct {
	Action string
	Entity string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("not allowed to %s %s", e.Action, e.Entity)
}

// RequireClient allows only the deal's client to drive it.
func RequireClient(actorID, clientID, action, entity string) error {
	if actorID == "" {
		return ErrNoActor
	}
	if actorID != clientID {
		return ForbiddenError{Action: action, Entity: entity}
	}
	return nil
}

// RequireSpecialist allows only the specialist to speak for themselves.
func RequireSpecialist(actorID, specialistID, action, entity string) error {
	return RequireClient(actorID, specialistID, action, entity)
}
