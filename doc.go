// Package haven provides a behavioural baseline and anomaly detection engine
// for home-automation welfare monitoring.
//
// Haven learns per-entity temporal activity patterns from a stream of
// timestamped state-change events and flags deviations from those patterns,
// grading them by severity and turning them into deduplicated notifications
// with elder-care welfare semantics.
//
// # Basic Usage
//
// Construct a coordinator for a monitoring group and feed it events:
//
//	cfg := haven.DefaultConfig()
//	cfg.MonitoredEntities = []string{"binary_sensor.kitchen_motion", "binary_sensor.bathroom_door"}
//
//	backend, err := haven.NewFileBackend("haven-data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := haven.NewSnapshotStore(backend, haven.WithCompression())
//
//	coord, err := haven.NewCoordinator(cfg, haven.WithStore(store))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := coord.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//	defer coord.Stop(context.Background())
//
//	coord.HandleEvent(haven.StateChangeEvent{
//	    EntityID:  "binary_sensor.kitchen_motion",
//	    Timestamp: time.Now(),
//	    OldState:  haven.StateSnapshot{State: "off"},
//	    NewState:  haven.StateSnapshot{State: "on"},
//	})
//
// # Features
//
// Statistical baseline:
//   - Per-entity incremental mean/variance accumulators over 7 weekdays x 96
//     fifteen-minute intervals (a lifetime histogram, no decay)
//   - Z-score anomaly detection with configurable sensitivity and severity bands
//   - Learning-period gate that suppresses detection until a baseline exists
//
// Streaming machine learning:
//   - Online half-space-trees outlier scoring over engineered per-event features
//   - Cross-sensor correlation mining with missing-correlation detection
//   - Deterministic model reconstruction by replaying the persisted event log
//
// Elder-care semantics:
//   - Time-since-activity concern grading and routine-progress tracking
//   - Aggregated welfare status (ok / check / concern / alert) with reasons
//     and a recommendation
//
// Operations:
//   - Holiday mode and snooze suppression
//   - Deduplicated notifications with pluggable external sinks
//   - Pluggable snapshot persistence (file, memory, SQLite, S3) with optional
//     snappy compression and AES-256-GCM encryption at rest
//   - Prometheus metrics per monitoring group
package haven
