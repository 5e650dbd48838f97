package haven

import "errors"

// Common sentinel errors for the haven package.
var (
	// ErrNoMonitoredEntities is returned when a configuration names no entities.
	ErrNoMonitoredEntities = errors.New("no monitored entities configured")

	// ErrInvalidSensitivity is returned for an unrecognized sensitivity level.
	ErrInvalidSensitivity = errors.New("invalid sensitivity level")

	// ErrInvalidLearningPeriod is returned when learning_period_days is out of range.
	ErrInvalidLearningPeriod = errors.New("learning period must be between 1 and 30 days")

	// ErrInvalidMLLearningPeriod is returned when ml_learning_period_days is out of range.
	ErrInvalidMLLearningPeriod = errors.New("ML learning period must be between 1 and 30 days")

	// ErrInvalidRetrainPeriod is returned when retrain_period_days is out of range.
	ErrInvalidRetrainPeriod = errors.New("retrain period must be between 1 and 30 days")

	// ErrInvalidCrossSensorWindow is returned when cross_sensor_window_seconds is out of range.
	ErrInvalidCrossSensorWindow = errors.New("cross-sensor window must be between 30 and 900 seconds")

	// ErrInvalidSinkName is returned for a sink identifier that is not dot-qualified.
	ErrInvalidSinkName = errors.New("sink name must be a dot-qualified service name")

	// ErrStoreClosed is returned when operations are attempted on a closed snapshot store.
	ErrStoreClosed = errors.New("snapshot store is closed")

	// ErrSnapshotNotFound is returned when a snapshot document does not exist yet.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrCoordinatorRunning is returned when Start is called on a running coordinator.
	ErrCoordinatorRunning = errors.New("coordinator already running")

	// ErrNotConnected is returned when an event source operation requires a live connection.
	ErrNotConnected = errors.New("event source not connected")
)
