// Package irrigation provides the watering program engine.
//
// A program is an ordered list of zones (valves) started either by its
// trigger rule or by an explicit command. Each zone runs a water/wait/repeat
// cycle counted down one tick at a time, so progress is published live and a
// stop request is observed within one tick.
//
// Architecture:
//
//	┌────────────────────────────────────────────────────────┐
//	│                Registry (registry.go)                   │
//	│  Owns programs, evaluates triggers on every host tick,  │
//	│  fans out stop requests (Broadcaster)                   │
//	│  ┌────────────────┐    ┌──────────────────────────┐    │
//	│  │TriggerEvaluator│    │   Program (program.go)   │    │
//	│  │ (trigger.go)   │    │ Idle ──start──▶ Running  │    │
//	│  └────────────────┘    │   ◀──finish / stop──     │    │
//	│                        └────────────┬─────────────┘    │
//	│                                     ▼                  │
//	│                        ┌──────────────────────────┐    │
//	│                        │ ZoneSequencer (zone.go)  │    │
//	│                        │ rain skip, water, wait,  │    │
//	│                        │ repeat, per-tick stop    │    │
//	│                        └──────────────────────────┘    │
//	└────────────────────────────────────────────────────────┘
//	     │ ValueSource      │ ActuatorPort     │ RestoreStore / RunLog
//	     ▼                  ▼                  ▼
//	 entity.Store     entity.SwitchActuator  SQLiteRepository
//
// # Trigger Rule
//
// A program starts when the clock minute equals its start time AND, when
// configured, the enable flag is on AND today is in the day list OR enough
// whole days have elapsed since the last automatic run. References that
// cannot be resolved make their clause false.
//
// # Thread Safety
//
// Registry, Program and TriggerEvaluator are safe for concurrent use. Each
// running program owns one goroutine; Stop never waits for it.
//
// # Usage
//
//	repo := irrigation.NewSQLiteRepository(db.DB, loc)
//	registry := irrigation.NewRegistry(irrigation.Dependencies{
//	    Values:    store,
//	    Actuators: actuator,
//	    Store:     repo,
//	    Runs:      repo,
//	    Notifier:  notifier,
//	    Clock:     irrigation.SystemClock{Location: loc},
//	    Logger:    log,
//	})
//
//	for _, cfg := range file.Programs {
//	    if _, err := registry.Register(ctx, cfg); err != nil {
//	        return err
//	    }
//	}
//
//	started := registry.Tick(ctx, time.Now())
package irrigation
