package queue

import "errors"

// Common errors
var (
	// ErrStoreNil is returned when a nil store is provided
	ErrStoreNil = errors.New("store cannot be nil")

	// ErrRegistryNil is returned when a nil registry is provided
	ErrRegistryNil = errors.New("registry cannot be nil")

	// ErrTaskNil is returned when attempting to insert a nil task
	ErrTaskNil = errors.New("task cannot be nil")

	// ErrTypeMissing is returned when a definition has an empty type name
	ErrTypeMissing = errors.New("task definition requires a type name")

	// ErrConstructorMissing is returned when a definition has no constructor
	ErrConstructorMissing = errors.New("task definition requires a constructor")

	// ErrUnknownTaskType is returned when building a task whose type was never registered
	ErrUnknownTaskType = errors.New("task type is not registered")

	// ErrPayloadUnmarshal is returned when a claimed row's payload cannot be decoded
	ErrPayloadUnmarshal = errors.New("failed to unmarshal task payload")

	// ErrStoreClosed is returned when using a store after Close
	ErrStoreClosed = errors.New("store is closed")

	// ErrAlreadyRunning is returned when starting a component that is not stopped
	ErrAlreadyRunning = errors.New("component is already running")

	// ErrNoRecurringTasks is returned when the scheduler starts with nothing to schedule
	ErrNoRecurringTasks = errors.New("no recurring task types registered")
)
