package haven

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Sensitivity selects how readily deviations are flagged.
type Sensitivity string

const (
	// SensitivityLow flags only extreme deviations (3 sigma).
	SensitivityLow Sensitivity = "low"
	// SensitivityMedium flags moderate deviations (2 sigma).
	SensitivityMedium Sensitivity = "medium"
	// SensitivityHigh flags any notable deviation (1 sigma).
	SensitivityHigh Sensitivity = "high"
)

// Threshold returns the Z-score threshold for the sensitivity level.
func (s Sensitivity) Threshold() float64 {
	switch s {
	case SensitivityLow:
		return 3.0
	case SensitivityHigh:
		return 1.0
	default:
		return 2.0
	}
}

// Contamination returns the expected anomaly rate the streaming model should
// assume for the sensitivity level.
func (s Sensitivity) Contamination() float64 {
	switch s {
	case SensitivityLow:
		return 0.01
	case SensitivityHigh:
		return 0.10
	default:
		return 0.05
	}
}

func (s Sensitivity) valid() bool {
	switch s {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
		return true
	}
	return false
}

// Default configuration values.
const (
	DefaultLearningPeriodDays       = 7
	DefaultMLLearningPeriodDays     = 7
	DefaultRetrainPeriodDays        = 14
	DefaultCrossSensorWindowSeconds = 300
	DefaultUpdateInterval           = 60 * time.Second
)

// Config defines one monitoring group.
type Config struct {
	// MonitoredEntities is the allow-list of entity ids. Required, non-empty.
	MonitoredEntities []string `yaml:"monitored_entities"`

	// Sensitivity selects the detection thresholds: low (3 sigma), medium
	// (2 sigma) or high (1 sigma).
	Sensitivity Sensitivity `yaml:"sensitivity"`

	// LearningPeriodDays is how many days of data the statistical baseline
	// needs before detection starts. Range [1, 30].
	LearningPeriodDays int `yaml:"learning_period_days"`

	// EnableNotifications turns notification dispatch on.
	EnableNotifications bool `yaml:"enable_notifications"`

	// EnableML turns the streaming ML subsystem on. Auto-disabled when the
	// ML capability is unavailable.
	EnableML bool `yaml:"enable_ml"`

	// MLLearningPeriodDays gates ML notifications separately from the
	// trained flag; early-model alerts are noisy even with enough samples.
	// Range [1, 30].
	MLLearningPeriodDays int `yaml:"ml_learning_period_days"`

	// RetrainPeriodDays is how often the online model is rebuilt by replay.
	// Range [1, 30].
	RetrainPeriodDays int `yaml:"retrain_period_days"`

	// CrossSensorWindowSeconds is the co-occurrence window for correlation
	// mining. Range [30, 900].
	CrossSensorWindowSeconds int `yaml:"cross_sensor_window_seconds"`

	// TrackAttributeChanges also records changes where only attributes
	// differ, not the state value.
	TrackAttributeChanges bool `yaml:"track_attribute_changes"`

	// NotifySinks are dot-qualified service names to forward notifications
	// to, e.g. "notify.mobile_app_anna".
	NotifySinks []string `yaml:"notify_sinks"`

	// UpdateInterval is the periodic tick. Defaults to one minute.
	UpdateInterval time.Duration `yaml:"update_interval"`
}

// DefaultConfig returns a configuration with defaults for everything except
// the monitored entity set, which callers must provide.
func DefaultConfig() Config {
	return Config{
		Sensitivity:              SensitivityMedium,
		LearningPeriodDays:       DefaultLearningPeriodDays,
		EnableNotifications:      true,
		EnableML:                 true,
		MLLearningPeriodDays:     DefaultMLLearningPeriodDays,
		RetrainPeriodDays:        DefaultRetrainPeriodDays,
		CrossSensorWindowSeconds: DefaultCrossSensorWindowSeconds,
		UpdateInterval:           DefaultUpdateInterval,
	}
}

// Validate checks the configuration. Validation failures are the only
// user-visible error class; everything else degrades gracefully.
func (c *Config) Validate() error {
	if len(c.MonitoredEntities) == 0 {
		return ErrNoMonitoredEntities
	}
	if c.Sensitivity == "" {
		c.Sensitivity = SensitivityMedium
	}
	if !c.Sensitivity.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSensitivity, c.Sensitivity)
	}
	if c.LearningPeriodDays < 1 || c.LearningPeriodDays > 30 {
		return fmt.Errorf("%w: got %d", ErrInvalidLearningPeriod, c.LearningPeriodDays)
	}
	if c.MLLearningPeriodDays < 1 || c.MLLearningPeriodDays > 30 {
		return fmt.Errorf("%w: got %d", ErrInvalidMLLearningPeriod, c.MLLearningPeriodDays)
	}
	if c.RetrainPeriodDays < 1 || c.RetrainPeriodDays > 30 {
		return fmt.Errorf("%w: got %d", ErrInvalidRetrainPeriod, c.RetrainPeriodDays)
	}
	if c.CrossSensorWindowSeconds < 30 || c.CrossSensorWindowSeconds > 900 {
		return fmt.Errorf("%w: got %d", ErrInvalidCrossSensorWindow, c.CrossSensorWindowSeconds)
	}
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = DefaultUpdateInterval
	}
	for _, id := range c.MonitoredEntities {
		if !ValidEntityID(strings.TrimSpace(id)) {
			return fmt.Errorf("invalid entity id %q", id)
		}
	}
	for _, sink := range c.NotifySinks {
		if _, _, err := ParseSinkName(sink); err != nil {
			return err
		}
	}
	return nil
}

// CrossSensorWindow returns the configured window as a duration.
func (c *Config) CrossSensorWindow() time.Duration {
	return time.Duration(c.CrossSensorWindowSeconds) * time.Second
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// monitoredSet builds the membership set for the ingestion filter.
func (c *Config) monitoredSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.MonitoredEntities))
	for _, id := range c.MonitoredEntities {
		set[strings.TrimSpace(id)] = struct{}{}
	}
	return set
}
