package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is shared by cart lines and orders. ALL is a query filter and is
// never stored.
type Status int

const (
	StatusInCart              Status = -1
	StatusAll                 Status = 0
	StatusWaitForConfirmation Status = 1
	StatusWaitForGetting      Status = 2
	StatusInProgress          Status = 3
	StatusDelivered           Status = 4
	StatusCancelled           Status = 5
)

var statusNames = map[Status]string{
	StatusInCart:              "IN_CART",
	StatusAll:                 "ALL",
	StatusWaitForConfirmation: "WAIT_FOR_CONFIRMATION",
	StatusWaitForGetting:      "WAIT_FOR_GETTING",
	StatusInProgress:          "IN_PROGRESS",
	StatusDelivered:           "DELIVERED",
	StatusCancelled:           "CANCELLED",
}

var statusLabels = map[Status]string{
	StatusInCart:              "In cart",
	StatusWaitForConfirmation: "Waiting for confirmation",
	StatusWaitForGetting:      "Waiting for pickup",
	StatusInProgress:          "Being delivered",
	StatusDelivered:           "Delivered",
	StatusCancelled:           "Cancelled",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Label is the customer-facing name of the status.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return s.String()
}

// Valid reports whether s can be stored on a line or an order.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Cancellable reports whether an order in this status may be cancelled.
func (s Status) Cancellable() bool {
	return s == StatusWaitForConfirmation
}

// CanAdvanceTo reports whether next is a forward fulfillment step from s.
// Cancellation is not an advance.
func (s Status) CanAdvanceTo(next Status) bool {
	if s < StatusWaitForConfirmation || s >= StatusDelivered {
		return false
	}
	return next > s && next <= StatusDelivered
}

// ParseStatus converts a stored or requested code into a Status.
func ParseStatus(code int) (Status, error) {
	s := Status(code)
	if _, ok := statusNames[s]; !ok {
		return 0, fmt.Errorf("domain: unknown status %d", code)
	}
	return s, nil
}

// LookupStatus resolves a status by its code ("4") or name ("DELIVERED",
// case-insensitive).
func LookupStatus(v string) (Status, error) {
	v = strings.TrimSpace(v)
	if code, err := strconv.Atoi(v); err == nil {
		return ParseStatus(code)
	}
	for s, name := range statusNames {
		if strings.EqualFold(name, v) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("domain: unknown status %q", v)
}
