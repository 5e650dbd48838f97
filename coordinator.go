package haven

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Drop reasons for the ingestion filter, used as metric labels.
const (
	dropUnmonitored   = "unmonitored"
	dropInsignificant = "insignificant"
	dropHoliday       = "holiday"
	dropSnoozed       = "snoozed"
)

// recentEventsChecked bounds how many buffered events each tick rescoring
// pass looks at.
const recentEventsChecked = 10

// MLStatus summarizes the streaming ML subsystem for reporting.
type MLStatus struct {
	Enabled     bool       `json:"enabled"`
	Trained     bool       `json:"trained"`
	SampleCount int        `json:"sample_count"`
	LastTrained *time.Time `json:"last_trained"`
	NextRetrain *time.Time `json:"next_retrain"`
}

// Report is the state summary produced by each tick, the shape consumed
// by dashboards and sensor surfaces.
type Report struct {
	LastActivity        *time.Time           `json:"last_activity"`
	ActivityScore       float64              `json:"activity_score"`
	AnomalyDetected     bool                 `json:"anomaly_detected"`
	Confidence          float64              `json:"confidence"`
	DailyCount          int                  `json:"daily_count"`
	Anomalies           []AnomalyResult      `json:"anomalies"`
	MLAnomalies         []MLAnomalyResult    `json:"ml_anomalies"`
	MLStatus            MLStatus             `json:"ml_status"`
	CrossSensorPatterns []CrossSensorSummary `json:"cross_sensor_patterns"`
	Welfare             WelfareReport        `json:"welfare"`
}

// Coordinator drives one monitoring group: it filters the event stream
// into the detectors, runs the periodic detection and welfare pass,
// applies the notification policy, and persists snapshots.
//
// Ingestion and the tick both take the coordinator lock only for session
// state; the analyzer and ML engine carry their own locks, so event
// recording never blocks on tick I/O.
type Coordinator struct {
	cfg       Config
	monitored map[string]struct{}

	analyzer *PatternAnalyzer
	ml       MLEngine
	store    *SnapshotStore
	notifier *Notifier
	source   EventSource
	metrics  *Metrics
	logger   *slog.Logger
	nowFn    func() time.Time

	mu                   sync.Mutex
	recentEvents         []StateChangeEvent
	recentAnomalies      []AnomalyResult
	recentMLAnomalies    []MLAnomalyResult
	holidayMode          bool
	snoozeUntil          time.Time
	lastNotificationTime time.Time
	lastNotificationType string
	lastWelfareStatus    string

	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithStore sets the snapshot store used for persistence.
func WithStore(store *SnapshotStore) CoordinatorOption {
	return func(c *Coordinator) { c.store = store }
}

// WithNotifier sets the notification dispatcher.
func WithNotifier(n *Notifier) CoordinatorOption {
	return func(c *Coordinator) { c.notifier = n }
}

// WithEventSource sets the event source consumed by Start.
func WithEventSource(src EventSource) CoordinatorOption {
	return func(c *Coordinator) { c.source = src }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// WithMetrics sets the metric set. Defaults to a fresh registry.
func WithMetrics(m *Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// WithMLEngine overrides the ML engine. Mostly useful in tests.
func WithMLEngine(engine MLEngine) CoordinatorOption {
	return func(c *Coordinator) { c.ml = engine }
}

// WithClock overrides the time source. Mostly useful in tests.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.nowFn = now }
}

// NewCoordinator validates the configuration and assembles a coordinator.
func NewCoordinator(cfg Config, opts ...CoordinatorOption) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		cfg:       cfg,
		monitored: cfg.monitoredSet(),
		analyzer: NewPatternAnalyzer(
			cfg.Sensitivity.Threshold(), cfg.LearningPeriodDays),
		logger: slog.Default(),
		nowFn:  time.Now,
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.ml == nil {
		if cfg.EnableML && MLAvailable() {
			c.ml = NewMLPatternAnalyzer(
				cfg.Sensitivity.Contamination(), cfg.CrossSensorWindow())
		} else {
			c.ml = NoopMLEngine{}
		}
	}
	if c.metrics == nil {
		c.metrics = NewMetrics()
	}
	if c.notifier == nil {
		c.notifier = NewNotifier(NewMemoryNotificationLog(100),
			WithNotifierLogger(c.logger))
	}
	return c, nil
}

// Analyzer exposes the statistical pattern store for reporting surfaces.
func (c *Coordinator) Analyzer() *PatternAnalyzer { return c.analyzer }

// ML exposes the streaming ML engine.
func (c *Coordinator) ML() MLEngine { return c.ml }

// Metrics exposes the metric set for HTTP exposition.
func (c *Coordinator) Metrics() *Metrics { return c.metrics }

// Load restores persisted state. A missing snapshot is a fresh start,
// never an error. After loading, the ML model is rebuilt by replay when
// the stored log is large enough.
func (c *Coordinator) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	statDoc, err := c.store.LoadStatistical(ctx)
	if err != nil {
		return fmt.Errorf("load statistical snapshot: %w", err)
	}
	if statDoc != nil {
		c.analyzer = RestorePatternAnalyzer(&statDoc.Analyzer,
			c.cfg.Sensitivity.Threshold(), c.cfg.LearningPeriodDays)

		c.mu.Lock()
		if statDoc.Coordinator.LastNotificationTime != nil {
			c.lastNotificationTime = *statDoc.Coordinator.LastNotificationTime
		}
		c.lastNotificationType = statDoc.Coordinator.LastNotificationType
		c.lastWelfareStatus = statDoc.Coordinator.LastWelfareStatus
		c.holidayMode = statDoc.Coordinator.HolidayMode
		if statDoc.Coordinator.SnoozeUntil != nil {
			c.snoozeUntil = *statDoc.Coordinator.SnoozeUntil
		}
		c.mu.Unlock()

		c.logger.Debug("restored pattern data",
			"entities", len(c.analyzer.EntityIDs()))
	}

	if !c.cfg.EnableML {
		return nil
	}
	mlDoc, err := c.store.LoadML(ctx)
	if err != nil {
		return fmt.Errorf("load ml snapshot: %w", err)
	}
	if mlDoc != nil {
		c.ml = RestoreMLPatternAnalyzer(mlDoc,
			c.cfg.Sensitivity.Contamination(), c.cfg.CrossSensorWindow())
		c.logger.Debug("restored ml data",
			"events", c.ml.SampleCount(), "trained", c.ml.IsTrained())
		c.checkRetrain(c.nowFn())
	}
	return nil
}

// HandleEvent is the ingestion path. It filters by the monitored set and
// change significance, honors holiday and snooze state, and records into
// the detectors. It never blocks on I/O.
func (c *Coordinator) HandleEvent(ev StateChangeEvent) {
	if _, ok := c.monitored[ev.EntityID]; !ok {
		c.metrics.EventsDropped.WithLabelValues(dropUnmonitored).Inc()
		return
	}

	if ev.OldState.State == ev.NewState.State {
		if !c.cfg.TrackAttributeChanges || ev.OldState.Equal(ev.NewState) {
			c.metrics.EventsDropped.WithLabelValues(dropInsignificant).Inc()
			return
		}
	}

	now := c.nowFn()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now
	}

	c.mu.Lock()
	holiday := c.holidayMode
	snoozed := c.snoozedLocked(now)
	c.mu.Unlock()

	if holiday {
		c.metrics.EventsDropped.WithLabelValues(dropHoliday).Inc()
		return
	}
	if snoozed {
		// History stays complete for the next replay; no model updates,
		// no baseline updates.
		c.ml.LogEvent(ev)
		c.metrics.EventsDropped.WithLabelValues(dropSnoozed).Inc()
		return
	}

	c.analyzer.RecordStateChange(ev.EntityID, ev.Timestamp)
	c.ml.RecordEvent(ev)

	c.mu.Lock()
	c.recentEvents = append(c.recentEvents, ev)
	cutoff := ev.Timestamp.Add(-2 * c.cfg.CrossSensorWindow())
	kept := c.recentEvents[:0]
	for _, e := range c.recentEvents {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	c.recentEvents = kept
	c.mu.Unlock()

	c.metrics.EventsIngested.Inc()
	c.logger.Debug("recorded state change",
		"entity_id", ev.EntityID,
		"old_state", ev.OldState.State,
		"new_state", ev.NewState.State)
}

// SetHolidayMode suspends or resumes all recording and detection.
func (c *Coordinator) SetHolidayMode(on bool) {
	c.mu.Lock()
	c.holidayMode = on
	c.mu.Unlock()
	c.logger.Info("holiday mode changed", "enabled", on)
}

// HolidayMode reports whether holiday mode is active.
func (c *Coordinator) HolidayMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holidayMode
}

// Snooze suspends detection and notification until the given time. Raw
// events are still logged for ML history.
func (c *Coordinator) Snooze(until time.Time) {
	c.mu.Lock()
	c.snoozeUntil = until
	c.mu.Unlock()
	c.logger.Info("detection snoozed", "until", until)
}

// CancelSnooze resumes detection immediately.
func (c *Coordinator) CancelSnooze() {
	c.mu.Lock()
	c.snoozeUntil = time.Time{}
	c.mu.Unlock()
}

// Snoozed reports whether detection is currently snoozed.
func (c *Coordinator) Snoozed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snoozedLocked(c.nowFn())
}

func (c *Coordinator) snoozedLocked(now time.Time) bool {
	return !c.snoozeUntil.IsZero() && now.Before(c.snoozeUntil)
}

// checkRetrain trains a never-trained model once enough samples exist, and
// rebuilds a stale one after the retrain period, pruning ancient events
// first so the replay window stays bounded.
func (c *Coordinator) checkRetrain(now time.Time) {
	last, trained := c.ml.LastWarmup()
	if !trained {
		if c.ml.SampleCount() >= MinSamplesForML {
			c.logger.Info("training ml model for the first time",
				"samples", c.ml.SampleCount())
			if c.ml.Train(now) {
				c.metrics.Retrains.Inc()
			}
		}
		return
	}

	retrainAfter := time.Duration(c.cfg.RetrainPeriodDays) * 24 * time.Hour
	if now.Sub(last) <= retrainAfter {
		return
	}

	pruned := c.ml.PruneOldEvents(c.cfg.RetrainPeriodDays*2, now)
	c.logger.Info("retraining ml model",
		"last_trained", last, "period_days", c.cfg.RetrainPeriodDays,
		"pruned_events", pruned)
	if c.ml.Train(now) {
		c.metrics.Retrains.Inc()
	}
}

// Tick runs one detection and policy pass: statistical detection, ML
// rescoring of recent events, cross-sensor checks, welfare derivation,
// notification policy, and snapshot persistence. Welfare metrics are
// recomputed even while suppressed; detection and notification are not.
func (c *Coordinator) Tick(ctx context.Context) (*Report, error) {
	now := c.nowFn()

	c.mu.Lock()
	if !c.snoozeUntil.IsZero() && !now.Before(c.snoozeUntil) {
		c.snoozeUntil = time.Time{}
		c.logger.Info("snooze expired, detection resumed")
	}
	holiday := c.holidayMode
	snoozed := c.snoozedLocked(now)
	recent := append([]StateChangeEvent(nil), c.recentEvents...)
	c.mu.Unlock()

	suppressed := holiday || snoozed

	var statAnomalies []AnomalyResult
	var mlAnomalies []MLAnomalyResult

	if !suppressed {
		statAnomalies = c.analyzer.CheckForAnomalies(now)
		for range statAnomalies {
			c.metrics.AnomaliesDetected.WithLabelValues("statistical").Inc()
		}

		if c.cfg.EnableML {
			c.checkRetrain(now)

			if c.ml.IsTrained() {
				start := len(recent) - recentEventsChecked
				if start < 0 {
					start = 0
				}
				for _, ev := range recent[start:] {
					if res := c.ml.CheckAnomaly(ev); res != nil {
						mlAnomalies = append(mlAnomalies, *res)
						c.metrics.AnomaliesDetected.WithLabelValues("ml").Inc()
					}
				}

				cross := c.ml.CheckCrossSensorAnomalies(recent, now)
				mlAnomalies = append(mlAnomalies, cross...)
				for range cross {
					c.metrics.AnomaliesDetected.WithLabelValues("cross_sensor").Inc()
				}
			}
		}
	}

	welfare := c.analyzer.WelfareReportAt(now)

	c.mu.Lock()
	if len(statAnomalies) > 0 {
		c.recentAnomalies = statAnomalies
	}
	if len(mlAnomalies) > 0 {
		c.recentMLAnomalies = mlAnomalies
	}
	c.mu.Unlock()

	if c.cfg.EnableNotifications && !suppressed {
		c.dispatchNotifications(ctx, now, statAnomalies, mlAnomalies, welfare)
	} else {
		// Transitions are still tracked so resuming does not replay a
		// welfare notification for an already-known status.
		c.mu.Lock()
		c.lastWelfareStatus = welfare.Level.String()
		c.mu.Unlock()
	}

	c.updateGauges(welfare)
	c.persist(ctx)

	return c.buildReport(now, statAnomalies, mlAnomalies, welfare), nil
}

func (c *Coordinator) dispatchNotifications(ctx context.Context, now time.Time,
	statAnomalies []AnomalyResult, mlAnomalies []MLAnomalyResult, welfare WelfareReport) {

	if c.analyzer.IsLearningComplete(now) {
		for _, a := range statAnomalies {
			c.send(ctx, now, statNotification(a, c.analyzer.SensitivityThreshold()))
		}
	}

	if c.mlNotificationsReady(now) {
		for _, a := range mlAnomalies {
			c.send(ctx, now, mlNotification(a))
		}
	}

	status := welfare.Level.String()
	c.mu.Lock()
	transition := status != c.lastWelfareStatus
	c.lastWelfareStatus = status
	c.mu.Unlock()

	if transition && welfare.Level >= WelfareConcern {
		c.send(ctx, now, welfareNotification(welfare))
	}
}

// mlNotificationsReady gates ML notifications on both the trained flag and
// elapsed wall time since the first logged event. An early model has enough
// samples to score but not enough spread to be quiet.
func (c *Coordinator) mlNotificationsReady(now time.Time) bool {
	if !c.ml.IsTrained() {
		return false
	}
	first, ok := c.ml.FirstEventTime()
	if !ok {
		return false
	}
	minAge := time.Duration(c.cfg.MLLearningPeriodDays) * 24 * time.Hour
	return now.Sub(first) >= minAge
}

func (c *Coordinator) send(ctx context.Context, now time.Time, n Notification) {
	if err := c.notifier.Send(ctx, n); err != nil {
		c.logger.Warn("notification dispatch failed",
			"dedup_id", n.DedupID, "error", err)
	}
	c.metrics.NotificationsSent.WithLabelValues(string(n.Category)).Inc()

	c.mu.Lock()
	c.lastNotificationTime = now
	c.lastNotificationType = string(n.Category)
	c.mu.Unlock()
}

func (c *Coordinator) updateGauges(welfare WelfareReport) {
	now := c.nowFn()
	c.metrics.Confidence.Set(c.analyzer.Confidence(now))
	c.metrics.WelfareLevel.Set(float64(welfare.Level))
	c.metrics.ActivityScore.Set(c.analyzer.ActivityScore(now))
	c.metrics.MLSampleCount.Set(float64(c.ml.SampleCount()))
	c.metrics.CrossSensorPatternCount.Set(float64(len(c.ml.StrongPatterns(strongPatternMinStrength))))
}

// persist writes both snapshot documents. Failures are logged; a tick
// never aborts over storage.
func (c *Coordinator) persist(ctx context.Context) {
	if c.store == nil {
		return
	}

	doc := &StatisticalDocument{
		Analyzer:    *c.analyzer.Snapshot(),
		Coordinator: c.coordinatorDocument(),
	}
	if err := c.store.SaveStatistical(ctx, doc); err != nil {
		c.metrics.SnapshotSaves.WithLabelValues("error").Inc()
		c.logger.Warn("statistical snapshot save failed", "error", err)
	} else {
		c.metrics.SnapshotSaves.WithLabelValues("ok").Inc()
	}

	if c.cfg.EnableML {
		if err := c.store.SaveML(ctx, c.ml.Snapshot()); err != nil {
			c.metrics.SnapshotSaves.WithLabelValues("error").Inc()
			c.logger.Warn("ml snapshot save failed", "error", err)
		} else {
			c.metrics.SnapshotSaves.WithLabelValues("ok").Inc()
		}
	}
}

func (c *Coordinator) coordinatorDocument() CoordinatorDocument {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc := CoordinatorDocument{
		LastNotificationType: c.lastNotificationType,
		LastWelfareStatus:    c.lastWelfareStatus,
		HolidayMode:          c.holidayMode,
	}
	if !c.lastNotificationTime.IsZero() {
		t := c.lastNotificationTime
		doc.LastNotificationTime = &t
	}
	if !c.snoozeUntil.IsZero() {
		t := c.snoozeUntil
		doc.SnoozeUntil = &t
	}
	return doc
}

func (c *Coordinator) buildReport(now time.Time,
	statAnomalies []AnomalyResult, mlAnomalies []MLAnomalyResult, welfare WelfareReport) *Report {

	report := &Report{
		ActivityScore:   c.analyzer.ActivityScore(now),
		AnomalyDetected: len(statAnomalies) > 0 || len(mlAnomalies) > 0,
		Confidence:      c.analyzer.Confidence(now),
		DailyCount:      c.analyzer.TotalDailyCount(now),
		Anomalies:       statAnomalies,
		MLAnomalies:     mlAnomalies,
		Welfare:         welfare,
	}
	if last, ok := c.analyzer.LastActivityTime(); ok {
		report.LastActivity = &last
	}

	report.MLStatus = MLStatus{
		Enabled:     c.cfg.EnableML,
		Trained:     c.ml.IsTrained(),
		SampleCount: c.ml.SampleCount(),
	}
	if last, ok := c.ml.LastWarmup(); ok {
		t := last
		report.MLStatus.LastTrained = &t
		next := last.AddDate(0, 0, c.cfg.RetrainPeriodDays)
		report.MLStatus.NextRetrain = &next
	}
	if c.cfg.EnableML {
		report.CrossSensorPatterns = c.ml.StrongPatterns(0.3)
	}
	return report
}

// RecentAnomalies returns the anomalies from the most recent detecting tick.
func (c *Coordinator) RecentAnomalies() []AnomalyResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]AnomalyResult(nil), c.recentAnomalies...)
}

// RecentMLAnomalies returns the ML anomalies from the most recent
// detecting tick.
func (c *Coordinator) RecentMLAnomalies() []MLAnomalyResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]MLAnomalyResult(nil), c.recentMLAnomalies...)
}

// Start loads persisted state, begins consuming the event source, and
// runs the periodic tick until Stop.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrCoordinatorRunning
	}
	c.running = true
	c.stop = make(chan struct{})
	c.mu.Unlock()

	if err := c.Load(ctx); err != nil {
		return err
	}

	if c.source != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.source.Run(ctx, c.HandleEvent); err != nil {
				c.logger.Error("event source stopped", "error", err)
			}
		}()
	}

	c.wg.Add(1)
	go c.tickLoop(ctx)

	c.logger.Info("coordinator started",
		"entities", len(c.monitored),
		"sensitivity", c.cfg.Sensitivity,
		"ml_enabled", c.cfg.EnableML)
	return nil
}

func (c *Coordinator) tickLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Tick(ctx); err != nil {
				c.logger.Warn("tick failed", "error", err)
			}
		}
	}
}

// Stop halts the loops, closes the event source and persists a final
// snapshot.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	close(c.stop)
	c.mu.Unlock()

	var srcErr error
	if c.source != nil {
		srcErr = c.source.Close()
	}
	c.wg.Wait()

	c.persist(ctx)
	c.logger.Info("coordinator stopped")
	return srcErr
}

func statNotification(a AnomalyResult, threshold float64) Notification {
	title := "Unusual Activity Detected"
	if a.Type == AnomalyUnusualInactivity {
		title = "Unusual Inactivity Detected"
	}

	message := fmt.Sprintf(
		"**Entity:** `%s`\n\n"+
			"**Time Slot:** %s\n\n"+
			"**Details:** %s\n\n"+
			"**Z-Score:** %.2f (threshold: %.1f)\n\n"+
			"**Detection:** Statistical (Z-score)\n\n"+
			"**Time:** %s",
		a.EntityID, a.TimeSlot, a.Description, a.ZScore, threshold,
		a.Timestamp.Format("2006-01-02 15:04:05"))

	return Notification{
		Title:    title,
		Message:  message,
		DedupID:  DedupID(CategoryStatistical, a.EntityID, string(a.Type)),
		Category: CategoryStatistical,
		Priority: severityPriority(a.Severity),
		Sound:    severitySound(a.Severity),
	}
}

func mlNotification(a MLAnomalyResult) Notification {
	entityPart := a.EntityID
	if entityPart == "" {
		entityPart = "cross_sensor"
	}

	var title string
	switch a.Type {
	case MLAnomalyStreamingOutlier:
		title = "Unusual Pattern Detected (ML)"
	case MLAnomalyMissingCorrelation:
		title = "Missing Expected Activity"
	case MLAnomalyUnexpectedCorrelation:
		title = "Unexpected Activity Pattern"
	default:
		title = "Behavior Alert (ML)"
	}

	subject := a.EntityID
	if subject == "" {
		subject = "Cross-sensor pattern"
	}
	var related string
	if len(a.RelatedEntities) > 0 {
		related = fmt.Sprintf("**Related Entities:** %s\n\n",
			strings.Join(a.RelatedEntities, ", "))
	}

	message := fmt.Sprintf(
		"**Entity:** `%s`\n\n"+
			"%s"+
			"**Details:** %s\n\n"+
			"**ML Score:** %.3f\n\n"+
			"**Detection:** Machine Learning (%s)\n\n"+
			"**Time:** %s",
		subject, related, a.Description, a.AnomalyScore, a.Type,
		a.Timestamp.Format("2006-01-02 15:04:05"))

	return Notification{
		Title:    title,
		Message:  message,
		DedupID:  DedupID(CategoryML, entityPart, string(a.Type)),
		Category: CategoryML,
	}
}

func welfareNotification(report WelfareReport) Notification {
	title := "Welfare Check Recommended"
	priority := ""
	sound := ""
	if report.Level == WelfareAlert {
		title = "Welfare Alert"
		priority = "high"
		sound = "alarm"
	}

	message := fmt.Sprintf(
		"**Status:** %s\n\n"+
			"**Reasons:** %s\n\n"+
			"**Recommendation:** %s",
		strings.ToUpper(report.Level.String()),
		strings.Join(report.Reasons, "; "),
		report.Recommendation)

	return Notification{
		Title:    title,
		Message:  message,
		DedupID:  DedupID(CategoryWelfare, report.Level.String()),
		Category: CategoryWelfare,
		Priority: priority,
		Sound:    sound,
	}
}

func severityPriority(s Severity) string {
	if s >= SeveritySignificant {
		return "high"
	}
	return ""
}

func severitySound(s Severity) string {
	if s >= SeverityCritical {
		return "alarm"
	}
	return ""
}
