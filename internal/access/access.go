// Package access implements the request-level permission rules.
//
// Every service operation receives the acting user explicitly as an Actor.
// Nothing here reads request state; handlers build the Actor from the
// authenticated request and pass it down.
//
// The rules are evaluated at two levels:
//
//	CheckCollection: may this actor attempt this class of operation at all?
//	CheckObject:     may this actor perform it on this specific object?
//
// Both must pass. Check runs them in that order.
package access

import (
	"github.com/sakif/foodgram/internal/apperror"
)

// Actor is the caller of an operation. The zero value is the anonymous caller.
type Actor struct {
	UserID int64
}

// Anonymous is the unauthenticated caller.
var Anonymous = Actor{}

// User returns the actor for an authenticated user.
func User(id int64) Actor {
	return Actor{UserID: id}
}

// Authenticated reports whether the actor is a logged-in user.
func (a Actor) Authenticated() bool {
	return a.UserID > 0
}

// Action is the class of operation being attempted.
type Action int

const (
	ActionRead Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

// CheckCollection applies the collection-level rule: reads are open to
// everyone, every other action needs an authenticated actor.
func CheckCollection(actor Actor, action Action) error {
	if action == ActionRead {
		return nil
	}
	if !actor.Authenticated() {
		return apperror.Unauthorized()
	}
	return nil
}

// CheckObject applies the object-level rule: only the owner may update or
// delete an object.
func CheckObject(actor Actor, action Action, ownerID int64) error {
	switch action {
	case ActionUpdate, ActionDelete:
		if !actor.Authenticated() || actor.UserID != ownerID {
			return apperror.Forbidden("only the author can " + action.String() + " this recipe")
		}
	}
	return nil
}

// Check evaluates the collection rule, then calls owner to load the object
// and evaluates the object rule against the returned owner id. An error from
// owner is returned unchanged, so a missing object reports NotFound before
// any Forbidden.
func Check(actor Actor, action Action, owner func() (int64, error)) error {
	if err := CheckCollection(actor, action); err != nil {
		return err
	}
	ownerID, err := owner()
	if err != nil {
		return err
	}
	return CheckObject(actor, action, ownerID)
}
