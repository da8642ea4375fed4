package domain

import "errors"

// ErrFormNotFound is returned when a form ID cannot be found in the store
// or belongs to another organisation.
var ErrFormNotFound = errors.New("form not found")

// ErrNodeNotFound is returned when an action targets a node that is not in the tree.
var ErrNodeNotFound = errors.New("node not found")

// ErrInvalidParent is returned when children are added under a node that cannot hold them.
var ErrInvalidParent = errors.New("node cannot have children")

// ErrDuplicateNode is returned when a node ID is already used in the tree.
var ErrDuplicateNode = errors.New("duplicate node id")

// ErrInvalidAction is returned for malformed or unknown editor actions.
var ErrInvalidAction = errors.New("invalid action")

// ErrServiceNotFound is returned when a node ID does not reference a service.
var ErrServiceNotFound = errors.New("service not found")

// ErrEmployeeNotFound is returned when an employee ID cannot be found.
var ErrEmployeeNotFound = errors.New("employee not found")

// ErrOrganizationNotFound is returned when an organisation ID cannot be found.
var ErrOrganizationNotFound = errors.New("organization not found")

// ErrInvalidTimezone is returned when an organisation timezone is not a valid IANA name.
var ErrInvalidTimezone = errors.New("invalid timezone")

// ErrInvalidBusinessHours is returned for malformed business-hour windows.
var ErrInvalidBusinessHours = errors.New("invalid business hours")

// ErrProviderUnavailable is returned when the schedule provider cannot be reached.
// Callers may retry.
var ErrProviderUnavailable = errors.New("schedule provider unavailable")

// ErrRestoreWindowExpired is returned when restoring a form deleted too long ago.
var ErrRestoreWindowExpired = errors.New("restore window expired")

// ErrUnauthorized is returned when a request carries no valid credentials.
var ErrUnauthorized = errors.New("unauthorized")

// ErrInvalidInput is returned for malformed request parameters.
var ErrInvalidInput = errors.New("invalid input")

// ErrTemplateNotFound is returned when a template ID is not in the catalogue.
var ErrTemplateNotFound = errors.New("template not found")

// ErrWatchUnsupported is returned by stores that cannot stream change events.
var ErrWatchUnsupported = errors.New("store does not support watching")
