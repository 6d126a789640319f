package irrigation

import (
	"context"
	"math"
	"time"
)

// rainDisplayTicks is how long the rain indicator is shown before a skipped zone.
const rainDisplayTicks = 5

// secondsPerMinute converts configured minutes to countdown ticks.
const secondsPerMinute = 60

// runControl is the slice of program state a zone cycle needs: the stop
// flag, the progress counter and the transient display.
type runControl interface {
	stopped() bool
	setRemaining(seconds int)
	tickRemaining()
	setDisplay(name, icon string)
	restoreDisplay()
}

// zoneParams are the resolved values of one zone for one run.
type zoneParams struct {
	water   int // effective minutes, adjustment applied
	adjust  float64
	wait    int
	repeat  int
	raining bool
	ignore  bool
}

// totalSeconds is the countdown length of the whole water/wait/repeat cycle.
func (p zoneParams) totalSeconds() int {
	return ((p.water+p.wait)*p.repeat - p.wait) * secondsPerMinute
}

// ZoneSequencer drives one zone through its water/wait/repeat cycle.
type ZoneSequencer struct {
	values    ValueSource
	actuators ActuatorPort
	clock     Clock
	tick      time.Duration
	observer  RunObserver
	logger    Logger
}

// ZoneOutcome reports what a zone cycle did.
type ZoneOutcome struct {
	Continue bool       // false when a stop was observed and the program must abort
	Watered  bool       // the actuator was driven
	Skipped  SkipReason // set when the zone was passed over
}

// Run executes one zone. programName and programID label the display and
// telemetry; manual bypasses the rain sensor.
func (s *ZoneSequencer) Run(ctx context.Context, programID, programName string, zone ZoneConfig, ctl runControl, manual bool) ZoneOutcome {
	if ctl.stopped() {
		return ZoneOutcome{}
	}

	params, ok := s.resolve(ctx, programID, zone)
	if !ok {
		s.observer.ZoneSkipped(programID, zone.Name, SkipMissingWater)
		return ZoneOutcome{Continue: true, Skipped: SkipMissingWater}
	}

	if manual {
		s.logger.Debug("program manually triggered, rain sensor not evaluated",
			"program_id", programID, "zone", zone.Name)
	} else if params.raining && !params.ignore {
		s.logger.Info("raining, zone skipped", "program_id", programID, "zone", zone.Name)
		ctl.setDisplay(programName+"-"+zone.Name, RainIcon)
		completed := s.countdown(ctx, ctl, rainDisplayTicks, false)
		ctl.restoreDisplay()
		s.observer.ZoneSkipped(programID, zone.Name, SkipRain)
		return ZoneOutcome{Continue: completed, Skipped: SkipRain}
	}

	if params.water <= 0 {
		s.logger.Debug("watering time adjusted to zero, zone skipped",
			"program_id", programID, "zone", zone.Name)
		s.observer.ZoneSkipped(programID, zone.Name, SkipZeroDuration)
		return ZoneOutcome{Continue: true, Skipped: SkipZeroDuration}
	}

	s.logger.Debug("zone starting",
		"program_id", programID,
		"zone", zone.Name,
		"water", params.water,
		"water_adjust", params.adjust,
		"wait", params.wait,
		"repeat", params.repeat,
	)

	ctl.setRemaining(params.totalSeconds())
	s.cycle(ctx, programName, zone, params, ctl)

	if ctl.stopped() {
		return ZoneOutcome{Continue: false, Watered: true}
	}
	s.observer.ZoneWatered(programID, zone.Name, params.water, params.repeat)
	return ZoneOutcome{Continue: true, Watered: true}
}

// cycle runs the repeat loop: water, optionally wait, and switch off after
// the last repeat or on stop.
func (s *ZoneSequencer) cycle(ctx context.Context, programName string, zone ZoneConfig, p zoneParams, ctl runControl) {
	icon := zone.Icon
	if icon == "" {
		icon = DefaultIcon
	}

	for i := p.repeat; i > 0; i-- {
		if ctl.stopped() {
			break
		}

		ctl.setDisplay(programName+"-"+zone.Name, icon)
		s.switchOn(ctx, zone.Actuator)
		s.countdown(ctx, ctl, p.water*secondsPerMinute, true)

		if p.wait > 0 && i > 1 && !ctl.stopped() {
			ctl.setDisplay(programName+"-"+zone.Name, WaitIcon)
			s.switchOff(ctx, zone.Actuator)
			s.countdown(ctx, ctl, p.wait*secondsPerMinute, true)
		}

		if i <= 1 || ctl.stopped() {
			s.switchOff(ctx, zone.Actuator)
		}
	}
}

// countdown suspends for n ticks, re-checking the stop flag after every
// tick. When progress is set each tick decrements the remaining seconds.
// It returns false if a stop was observed.
func (s *ZoneSequencer) countdown(ctx context.Context, ctl runControl, n int, progress bool) bool {
	for i := 0; i < n; i++ {
		if progress {
			ctl.tickRemaining()
		}
		_ = s.clock.Sleep(ctx, s.tick) //nolint:errcheck // cancellation is observed through stopped()
		if ctl.stopped() {
			return false
		}
	}
	return true
}

// resolve reads every zone reference. It returns false when the required
// water duration cannot be read.
func (s *ZoneSequencer) resolve(ctx context.Context, programID string, zone ZoneConfig) (zoneParams, bool) {
	p := zoneParams{adjust: 1, repeat: 1}

	water, err := s.readFloat(ctx, zone.Water)
	if err != nil {
		s.logger.Error("water duration not found, zone skipped",
			"program_id", programID, "zone", zone.Name, "ref", zone.Water, "error", err)
		return p, false
	}

	if zone.WaterAdjust != "" {
		if adj, aerr := s.readFloat(ctx, zone.WaterAdjust); aerr == nil {
			p.adjust = adj
		} else {
			s.warnDefault(programID, zone, zone.WaterAdjust, aerr)
		}
	}
	p.water = EffectiveWaterMinutes(water, p.adjust)

	if zone.Wait != "" {
		if wait, werr := s.readFloat(ctx, zone.Wait); werr == nil && wait > 0 {
			p.wait = int(wait)
		} else if werr != nil {
			s.warnDefault(programID, zone, zone.Wait, werr)
		}
	}

	if zone.Repeat != "" {
		if rep, rerr := s.readFloat(ctx, zone.Repeat); rerr == nil {
			p.repeat = NormalizeRepeat(int(rep))
		} else {
			s.warnDefault(programID, zone, zone.Repeat, rerr)
		}
	}

	if zone.RainSensor != "" {
		if v, rerr := s.values.Read(ctx, zone.RainSensor); rerr == nil {
			p.raining = v.IsOn()
		} else {
			s.warnDefault(programID, zone, zone.RainSensor, rerr)
		}
	}

	if zone.IgnoreRainSensor != "" {
		if v, ierr := s.values.Read(ctx, zone.IgnoreRainSensor); ierr == nil {
			p.ignore = v.IsOn()
		} else {
			s.warnDefault(programID, zone, zone.IgnoreRainSensor, ierr)
		}
	}

	return p, true
}

func (s *ZoneSequencer) readFloat(ctx context.Context, ref string) (float64, error) {
	v, err := s.values.Read(ctx, ref)
	if err != nil {
		return 0, err
	}
	return v.Float()
}

func (s *ZoneSequencer) warnDefault(programID string, zone ZoneConfig, ref string, err error) {
	s.logger.Warn("zone reference not found, using default",
		"program_id", programID, "zone", zone.Name, "ref", ref, "error", err)
}

// switchOn turns the actuator on if it does not already read on.
func (s *ZoneSequencer) switchOn(ctx context.Context, ref string) {
	on, err := s.actuators.IsOn(ctx, ref)
	if err != nil {
		s.logger.Warn("actuator state unavailable", "actuator", ref, "error", err)
	}
	if on {
		return
	}
	if err := s.actuators.TurnOn(ctx, ref); err != nil {
		s.logger.Warn("actuator turn on failed", "actuator", ref, "error", err)
	}
}

// switchOff turns the actuator off if it reads on.
func (s *ZoneSequencer) switchOff(ctx context.Context, ref string) {
	on, err := s.actuators.IsOn(ctx, ref)
	if err != nil {
		s.logger.Warn("actuator state unavailable", "actuator", ref, "error", err)
		return
	}
	if !on {
		return
	}
	// Valve closing must land even after the run context is cancelled.
	if err := s.actuators.TurnOff(context.WithoutCancel(ctx), ref); err != nil {
		s.logger.Warn("actuator turn off failed", "actuator", ref, "error", err)
	}
}

// EffectiveWaterMinutes is ceil(water * adjust).
func EffectiveWaterMinutes(water, adjust float64) int {
	return int(math.Ceil(water * adjust))
}

// NormalizeRepeat maps a configured repeat count to the number of cycles run.
func NormalizeRepeat(repeat int) int {
	if repeat <= 0 {
		return 1
	}
	return repeat
}
