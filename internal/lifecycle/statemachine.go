// Package lifecycle holds the booking state machine: which actions are legal
// from which status, and which roles may perform them.
package lifecycle

import (
	"time"

	"armada/internal/domain"
	"armada/internal/latefee"
	"armada/internal/models"
)

// legalFrom lists, per action, the statuses the action may start from.
var legalFrom = map[string][]string{
	models.ActionConfirm:      {models.StatusPending},
	models.ActionFinish:       {models.StatusConfirmed, models.StatusOngoing},
	models.ActionCancel:       {models.StatusPending, models.StatusConfirmed, models.StatusOngoing},
	models.ActionPromote:      {models.StatusConfirmed},
	models.ActionEnableFinish: {models.StatusConfirmed, models.StatusOngoing},
	models.ActionBackdateEdit: {models.StatusCompleted},
}

// forceableFinish are non-terminal statuses a privileged actor may finish from.
var forceableFinish = []string{models.StatusPending}

var targets = map[string]string{
	models.ActionConfirm: models.StatusConfirmed,
	models.ActionFinish:  models.StatusCompleted,
	models.ActionCancel:  models.StatusCancelled,
	models.ActionPromote: models.StatusOngoing,
}

// Target returns the status an action writes, or "" when it keeps the status.
func Target(action string) string {
	return targets[action]
}

// IsLegal reports whether action may start from status without any override.
func IsLegal(action, status string) bool {
	return contains(legalFrom[action], status)
}

// Authorize checks that the actor's role may perform the action at all.
func Authorize(action string, actor models.ActorContext) error {
	switch action {
	case models.ActionPromote, models.ActionEnableFinish:
		if actor.Role == models.RoleSystem || actor.Role.IsPrivileged() {
			return nil
		}
	case models.ActionRetryStep:
		if actor.Role.IsPrivileged() {
			return nil
		}
	default:
		if actor.Role.IsStaff() {
			return nil
		}
	}
	return domain.PermissionDeniedError{Action: action, Role: string(actor.Role)}
}

func CanConfirm(b *models.Booking, actor models.ActorContext) error {
	if err := Authorize(models.ActionConfirm, actor); err != nil {
		return err
	}
	return checkLegal(models.ActionConfirm, b)
}

// CanFinish validates a finish request. Forced is true when a privileged
// actor finishes a booking outside the normal confirmed/ongoing window.
func CanFinish(b *models.Booking, actor models.ActorContext) (forced bool, err error) {
	if err := Authorize(models.ActionFinish, actor); err != nil {
		return false, err
	}
	if b.IsTerminal() {
		return false, invalid(models.ActionFinish, b, "")
	}

	if !b.FinishEnabled && !actor.Role.IsPrivileged() {
		return false, domain.PermissionDeniedError{
			Action: models.ActionFinish,
			Role:   string(actor.Role),
			Msg:    "booking is not yet enabled for finishing",
		}
	}

	if IsLegal(models.ActionFinish, b.Status) {
		return false, nil
	}
	if contains(forceableFinish, b.Status) {
		if !actor.Role.IsPrivileged() {
			return false, domain.PermissionDeniedError{
				Action: models.ActionFinish,
				Role:   string(actor.Role),
				Msg:    "only admins may force-finish a " + b.Status + " booking",
			}
		}
		return true, nil
	}
	return false, invalid(models.ActionFinish, b, "")
}

func CanCancel(b *models.Booking, actor models.ActorContext) error {
	if err := Authorize(models.ActionCancel, actor); err != nil {
		return err
	}
	return checkLegal(models.ActionCancel, b)
}

// CanPromote allows confirmed -> ongoing once today lies within the rental period.
func CanPromote(b *models.Booking, actor models.ActorContext, now time.Time, loc *time.Location) error {
	if err := Authorize(models.ActionPromote, actor); err != nil {
		return err
	}
	if err := checkLegal(models.ActionPromote, b); err != nil {
		return err
	}
	if latefee.DaysBetween(b.StartDate, now, loc) < 0 {
		return invalid(models.ActionPromote, b, "rental period has not started")
	}
	if latefee.DaysBetween(now, b.EndDate, loc) < 0 {
		return invalid(models.ActionPromote, b, "rental period has ended")
	}
	return nil
}

// CanEnableFinish allows the finish gate to open once the end date is reached.
func CanEnableFinish(b *models.Booking, actor models.ActorContext, now time.Time, loc *time.Location) error {
	if err := Authorize(models.ActionEnableFinish, actor); err != nil {
		return err
	}
	if err := checkLegal(models.ActionEnableFinish, b); err != nil {
		return err
	}
	if b.FinishEnabled {
		return invalid(models.ActionEnableFinish, b, "finish is already enabled")
	}
	if latefee.DaysBetween(b.EndDate, now, loc) < 0 {
		return invalid(models.ActionEnableFinish, b, "end date not reached")
	}
	return nil
}

// CanEditBackdate validates a correction of a backdated booking's return date.
// Once the booking is reconciled (return date equals end date) only the two
// highest roles may change it again.
func CanEditBackdate(b *models.Booking, actor models.ActorContext, loc *time.Location) error {
	if err := Authorize(models.ActionBackdateEdit, actor); err != nil {
		return err
	}
	if !b.IsBackdated {
		return domain.ValidationError{Field: "booking", Msg: "only backdated bookings can be edited"}
	}
	if err := checkLegal(models.ActionBackdateEdit, b); err != nil {
		return err
	}
	if IsReconciled(b, loc) && !actor.Role.IsPrivileged() {
		return domain.PermissionDeniedError{
			Action: models.ActionBackdateEdit,
			Role:   string(actor.Role),
			Msg:    "booking is already reconciled",
		}
	}
	return nil
}

// IsReconciled reports whether the recorded return date equals the end date.
func IsReconciled(b *models.Booking, loc *time.Location) bool {
	return b.ActualReturnDate != nil && latefee.SameDay(*b.ActualReturnDate, b.EndDate, loc)
}

func checkLegal(action string, b *models.Booking) error {
	if !IsLegal(action, b.Status) {
		return invalid(action, b, "")
	}
	return nil
}

func invalid(action string, b *models.Booking, msg string) error {
	return domain.InvalidTransitionError{Action: action, From: b.Status, Msg: msg}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
