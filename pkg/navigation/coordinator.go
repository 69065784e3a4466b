package navigation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
	"github.com/varunjain2021/guido-1-sub002/pkg/journeysink"
	"github.com/varunjain2021/guido-1-sub002/pkg/util"
)

const persistTimeout = time.Minute

type StartRequest struct {
	UserID    string
	SessionID string

	Origin      *journey.Place
	Destination journey.Place
	Mode        journey.TravelMode

	// Canonical route values from a more authoritative source than the engine
	DistanceMeters  *int
	DurationSeconds *int
	StepCount       *int
}

// Coordinator runs one navigation session at a time. Every public method,
// telemetry callback and timer is serialised on mu.
type Coordinator struct {
	config Config
	engine RoutingEngine
	sink   journeysink.Sink
	clock  Clock
	events *EventHub

	// detached persistence work
	tasks conc.WaitGroup

	mu         sync.Mutex
	state      State
	generation uint64
	session    *session
	lastError  error
}

type session struct {
	generation uint64
	journey    *journey.Journey
	startedAt  time.Time

	listener *sessionListener
	batcher  *breadcrumbBatcher
	policy   *AnnouncementPolicy
	reroute  *rerouteDetector

	flushTimer  Timer
	revertTimer Timer
	revertSeq   int

	initialAnnouncementPending bool
	arrivedEmitted             bool

	guidance guidanceFields
}

func (s *session) stopTimers() {
	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}
	if s.revertTimer != nil {
		s.revertTimer.Stop()
	}
}

type Option func(*Coordinator)

func WithConfig(config Config) Option {
	return func(c *Coordinator) {
		c.config = config
	}
}

func WithClock(clock Clock) Option {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

func WithEventHub(events *EventHub) Option {
	return func(c *Coordinator) {
		c.events = events
	}
}

func NewCoordinator(engine RoutingEngine, sink journeysink.Sink, options ...Option) *Coordinator {
	c := &Coordinator{
		config: DefaultConfig(),
		engine: engine,
		sink:   sink,
		clock:  SystemClock(),
		events: NewEventHub(),
	}

	for _, option := range options {
		option(c)
	}

	return c
}

func (c *Coordinator) Events() *EventHub {
	return c.events
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Wait blocks until every detached persistence call has finished
func (c *Coordinator) Wait() {
	c.tasks.Wait()
}

// Shutdown cancels any active session, drains persistence and closes the event hub
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.Stop(ctx, true)
	c.Wait()
	c.events.Close()
}

func (c *Coordinator) setState(state State) {
	if c.state == state {
		return
	}

	log.Debug().Str("from", c.state.String()).Str("to", state.String()).Msg("Navigation state changed")
	c.state = state
}

// Start calculates a route and begins guidance. The lock is released while the
// engine and the sink are called; StateCalculating keeps other starts out and a
// Stop issued meanwhile aborts the start with ErrStartCancelled.
func (c *Coordinator) Start(ctx context.Context, request StartRequest) (*journey.Journey, error) {
	c.mu.Lock()
	if c.state.Navigating() {
		c.mu.Unlock()
		return nil, ErrAlreadyNavigating
	}
	if c.engine == nil {
		c.mu.Unlock()
		return nil, ErrNavigatorUnavailable
	}
	if request.Destination.Address == "" || !request.Destination.Coordinate.Valid() {
		c.mu.Unlock()
		return nil, ErrInvalidDestination
	}

	c.generation++
	generation := c.generation
	c.lastError = nil
	c.setState(StateCalculating)
	c.mu.Unlock()

	mode := request.Mode
	if mode == "" {
		mode = journey.TravelModeDriving
	}

	if err := c.engine.AcceptTerms(ctx); err != nil {
		return nil, c.failStart(generation, fmt.Errorf("%w: %v", ErrTermsNotAccepted, err))
	}

	route, err := c.engine.CalculateRoute(ctx, RouteRequest{
		Origin:      request.Origin,
		Destination: request.Destination,
		Mode:        mode,
	})
	if err != nil {
		return nil, c.failStart(generation, routeError(err))
	}
	if route == nil {
		return nil, c.failStart(generation, ErrNoRouteFound)
	}

	summary := &journey.RouteSummary{
		DistanceMeters:  util.SafeInt(route.DistanceMeters),
		DurationSeconds: util.SafeInt(route.DurationSeconds),
		StepCount:       len(route.Steps),
	}
	if request.DistanceMeters != nil {
		summary.DistanceMeters = *request.DistanceMeters
	}
	if request.DurationSeconds != nil {
		summary.DurationSeconds = *request.DurationSeconds
	}
	if request.StepCount != nil {
		summary.StepCount = *request.StepCount
	}

	j, err := journey.New(journey.NewJourneyOptions{
		UserID:       request.UserID,
		SessionID:    request.SessionID,
		Origin:       request.Origin,
		Destination:  request.Destination,
		Mode:         mode,
		RouteSummary: summary,
		StartedAt:    c.clock.Now(),
	})
	if err != nil {
		return nil, c.failStart(generation, fmt.Errorf("%w: %v", ErrInvalidDestination, err))
	}

	created, err := c.sink.CreateJourney(ctx, j.Snapshot())
	if err != nil {
		log.Error().Err(err).Str("journey", j.ID).Msg("Failed to create journey record, continuing with local journey")
		c.events.Publish(WarningEvent{JourneyID: j.ID, Operation: "create_journey", Message: err.Error()})
	} else if created != nil && created.ID != "" {
		j = created
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != generation {
		c.abandon(j)
		return nil, ErrStartCancelled
	}

	listener := &sessionListener{coordinator: c, generation: generation}
	c.engine.AddListener(listener)

	if err := c.engine.StartGuidance(ctx); err != nil {
		c.engine.RemoveListener(listener)
		c.abandon(j)

		return nil, c.fail(fmt.Errorf("%w: %v", ErrNavigatorUnavailable, err))
	}

	now := c.clock.Now()
	s := &session{
		generation: generation,
		journey:    j,
		startedAt:  now,
		listener:   listener,
		batcher:    newBreadcrumbBatcher(j.ID, c.sink, c.config.BreadcrumbBatchSize),
		policy:     NewAnnouncementPolicy(c.config),
		reroute: newRerouteDetector(c.config, now, RouteSnapshot{
			DistanceMeters:  summary.DistanceMeters,
			DurationSeconds: summary.DurationSeconds,
		}),
		initialAnnouncementPending: true,
	}
	s.guidance.remainingDistance = summary.DistanceMeters
	s.guidance.remainingTime = summary.DurationSeconds

	c.session = s
	c.armFlushTimer(s)
	c.setState(StateEnRoute)

	started := j.Snapshot()
	c.events.Publish(StartedEvent{Journey: started})

	log.Info().
		Str("journey", j.ID).
		Str("destination", j.Destination.DisplayName()).
		Str("mode", string(j.Mode)).
		Str("route", summary.String()).
		Msg("Navigation started")

	return started, nil
}

// abandon cancels a journey that was created but never reached guidance
func (c *Coordinator) abandon(j *journey.Journey) {
	if err := j.Cancel(c.clock.Now()); err != nil {
		return
	}

	final := j.Snapshot()
	c.persist(final.ID, "update_journey", false, func(ctx context.Context) error {
		return c.sink.UpdateJourney(ctx, final)
	})
}

// failStart records a start failure unless a Stop already took the coordinator
// back to idle
func (c *Coordinator) failStart(generation uint64, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != generation {
		return ErrStartCancelled
	}

	return c.fail(err)
}

func (c *Coordinator) fail(err error) error {
	c.lastError = err
	c.setState(StateError)
	c.events.Publish(ErrorEvent{Message: err.Error()})

	log.Error().Err(err).Msg("Navigation failed to start")

	return err
}

func routeError(err error) error {
	for _, known := range routeErrors {
		if errors.Is(err, known) {
			return err
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	return fmt.Errorf("%w: %v", ErrRouteCalculationFailed, err)
}

// withSession runs fn under the lock when the session of that generation is
// still current. Generation 0 matches any session.
func (c *Coordinator) withSession(generation uint64, fn func(s *session)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || (generation != 0 && s.generation != generation) {
		return
	}

	fn(s)
}

func (c *Coordinator) OnNavInfo(info NavInfo) {
	c.withSession(0, func(s *session) { c.handleNavInfo(s, info) })
}

func (c *Coordinator) OnRouteChanged() {
	c.withSession(0, c.handleRouteChanged)
}

func (c *Coordinator) OnRemainingTime(seconds float64) {
	c.withSession(0, func(s *session) { c.handleRemainingTime(s, seconds) })
}

func (c *Coordinator) OnRemainingDistance(meters float64) {
	c.withSession(0, func(s *session) { c.handleRemainingDistance(s, meters) })
}

func (c *Coordinator) OnLocation(sample LocationSample) {
	c.withSession(0, func(s *session) { c.handleLocation(s, sample) })
}

func (c *Coordinator) OnArrived(waypoint Waypoint) {
	c.arrived(0, waypoint)
}

func (c *Coordinator) handleNavInfo(s *session, info NavInfo) {
	if !c.state.Guiding() {
		return
	}

	now := c.clock.Now()
	guidance := &s.guidance

	guidance.lastTelemetryAt = now
	guidance.distanceToStep = util.SafeInt(info.DistanceToStepMeters)
	guidance.timeToStep = util.SafeInt(info.TimeToStepSeconds)
	guidance.stepsRemaining = len(info.RemainingSteps)

	if info.CurrentStep == nil {
		return
	}

	current := *info.CurrentStep
	guidance.currentStep = &current

	next := nextStep(current, info.RemainingSteps)
	guidance.nextInstruction = ""
	if next != nil {
		guidance.nextInstruction = next.Instruction
	}

	if s.initialAnnouncementPending {
		s.initialAnnouncementPending = false

		event := InitialDirectionsEvent{Current: newStepDescriptor(current, guidance.distanceToStep)}
		if next != nil {
			descriptor := newStepDescriptor(*next, util.SafeInt(info.DistanceToStepMeters+current.DistanceMeters))
			event.Next = &descriptor
		}

		s.policy.MarkAnnounced(current.Index, guidance.distanceToStep, now)
		c.events.Publish(event)

		return
	}

	if !s.policy.ShouldAnnounce(current.Index, guidance.distanceToStep, now) {
		return
	}

	if current.Index != s.policy.LastStepIndex() {
		c.recordCheckpoint(s, current, now)
	}

	c.events.Publish(ApproachingTurnEvent{
		Step:           newStepDescriptor(current, guidance.distanceToStep),
		DistanceMeters: guidance.distanceToStep,
	})
	s.policy.MarkAnnounced(current.Index, guidance.distanceToStep, now)
}

func nextStep(current Step, remaining []Step) *Step {
	for i := range remaining {
		if remaining[i].Index > current.Index {
			next := remaining[i]
			return &next
		}
	}

	return nil
}

func (c *Coordinator) recordCheckpoint(s *session, step Step, now time.Time) {
	coordinate := step.Coordinate
	if (coordinate == journey.Coordinate{} || !coordinate.Valid()) && s.guidance.lastLocation != nil {
		coordinate = *s.guidance.lastLocation
	}

	checkpoint := journey.Checkpoint{
		StepIndex:   step.Index,
		Instruction: step.Instruction,
		RoadName:    step.RoadName,
		Maneuver:    step.Maneuver,
		ArrivedAt:   now,
		Coordinate:  coordinate,
	}
	if n := len(s.journey.Checkpoints); n > 0 {
		distance := util.SafeInt(s.journey.Checkpoints[n-1].Coordinate.DistanceTo(coordinate))
		checkpoint.DistanceFromPreviousMeters = &distance
	}

	if err := s.journey.AppendCheckpoint(checkpoint); err != nil {
		log.Warn().Err(err).Str("journey", s.journey.ID).Msg("Dropping checkpoint")
		return
	}

	journeyID := s.journey.ID
	c.persist(journeyID, "append_checkpoint", false, func(ctx context.Context) error {
		return c.sink.AppendCheckpoint(ctx, journeyID, checkpoint)
	})
}

func (c *Coordinator) handleRouteChanged(s *session) {
	if !c.state.Guiding() {
		return
	}

	now := c.clock.Now()
	current := RouteSnapshot{
		DistanceMeters:  s.guidance.remainingDistance,
		DurationSeconds: s.guidance.remainingTime,
	}

	announce, reason := s.reroute.Evaluate(now, current, s.guidance.lastSpeedMps)
	if !announce {
		log.Debug().Str("journey", s.journey.ID).Str("reason", reason).Msg("Route change suppressed")
		return
	}

	s.journey.RecordReroute(now)
	c.setState(StateRerouting)
	c.events.Publish(ReroutingEvent{Reason: reason})

	log.Info().Str("journey", s.journey.ID).Int("reroutes", s.journey.RerouteCount).Str("reason", reason).Msg("Rerouting")

	c.scheduleRevert(s)
}

func (c *Coordinator) scheduleRevert(s *session) {
	if s.revertTimer != nil {
		s.revertTimer.Stop()
	}

	s.revertSeq++
	seq := s.revertSeq

	s.revertTimer = c.clock.AfterFunc(c.config.RerouteRevertDelay, func() {
		c.withSession(s.generation, func(s *session) {
			if s.revertSeq == seq && c.state == StateRerouting {
				c.setState(StateEnRoute)
			}
		})
	})
}

func (c *Coordinator) handleRemainingTime(s *session, seconds float64) {
	if c.state.Guiding() {
		s.guidance.remainingTime = util.SafeInt(seconds)
	}
}

func (c *Coordinator) handleRemainingDistance(s *session, meters float64) {
	if c.state.Guiding() {
		s.guidance.remainingDistance = util.SafeInt(meters)
	}
}

func (c *Coordinator) handleLocation(s *session, sample LocationSample) {
	if !c.state.Guiding() {
		return
	}

	timestamp := sample.Timestamp
	if timestamp.IsZero() {
		timestamp = c.clock.Now()
	}

	breadcrumb := journey.NewBreadcrumb(sample.Coordinate, timestamp, sample.SpeedMps, sample.AccuracyM, sample.Heading)
	if !breadcrumb.Coordinate.Valid() {
		log.Debug().Str("journey", s.journey.ID).Msg("Ignoring location sample with invalid coordinate")
		return
	}

	if err := s.journey.AppendBreadcrumb(breadcrumb); err != nil {
		log.Debug().Err(err).Str("journey", s.journey.ID).Msg("Ignoring location sample")
		return
	}

	location := breadcrumb.Coordinate
	s.guidance.lastLocation = &location
	s.guidance.lastSpeedMps = breadcrumb.SpeedMps

	if s.batcher.Add(breadcrumb) {
		c.flushAsync(s)
	}
}

func (c *Coordinator) armFlushTimer(s *session) {
	s.flushTimer = c.clock.AfterFunc(c.config.BreadcrumbFlushInterval, func() {
		c.withSession(s.generation, func(s *session) {
			c.flushAsync(s)
			c.armFlushTimer(s)
		})
	})
}

func (c *Coordinator) flushAsync(s *session) {
	batcher := s.batcher

	c.tasks.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		// failures are logged by the batcher and retried on the next flush
		batcher.Flush(ctx)
	})
}

// persist runs a sink call off the telemetry path. Failures are logged and,
// for the journey record itself, surfaced as a warning event.
func (c *Coordinator) persist(journeyID string, operation string, warn bool, call func(ctx context.Context) error) {
	c.tasks.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := call(ctx); err != nil {
			log.Error().Err(err).Str("journey", journeyID).Str("operation", operation).Msg("Journey persistence failed")

			if warn {
				c.events.Publish(WarningEvent{JourneyID: journeyID, Operation: operation, Message: err.Error()})
			}
		}
	})
}

func (c *Coordinator) arrived(generation uint64, waypoint Waypoint) {
	var arrivedGeneration uint64

	c.withSession(generation, func(s *session) {
		if !c.state.Guiding() {
			return
		}

		s.arrivedEmitted = true
		c.setState(StateArrived)
		c.events.Publish(ArrivedEvent{Journey: s.journey.Snapshot()})

		log.Info().Str("journey", s.journey.ID).Str("waypoint", waypoint.Title).Msg("Arrived")

		arrivedGeneration = s.generation
	})

	if arrivedGeneration != 0 {
		c.stop(context.Background(), false, arrivedGeneration)
	}
}

// Stop ends the active session and returns the final journey, or nil when
// nothing was navigating. A start still calculating is abandoned. Buffered
// breadcrumbs are flushed before the final journey record is written.
func (c *Coordinator) Stop(ctx context.Context, cancelled bool) *journey.Journey {
	return c.stop(ctx, cancelled, 0)
}

func (c *Coordinator) stop(ctx context.Context, cancelled bool, generation uint64) *journey.Journey {
	c.mu.Lock()
	s := c.session
	if s == nil && generation == 0 && c.state == StateCalculating {
		// Start is still talking to the engine or the sink and will see the
		// generation move on
		c.generation++
		c.setState(StateIdle)
		c.mu.Unlock()

		log.Info().Msg("Navigation start cancelled")
		return nil
	}
	if s == nil || (generation != 0 && s.generation != generation) {
		c.mu.Unlock()
		return nil
	}

	c.generation++
	stopGeneration := c.generation
	c.session = nil
	s.stopTimers()
	c.setState(StateStopped)
	c.mu.Unlock()

	c.engine.RemoveListener(s.listener)
	c.engine.StopGuidance()

	// the session is detached so nothing new is queued; let in-flight
	// appends land before the final whole-array update
	c.tasks.Wait()

	flushCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	if err := s.batcher.Flush(flushCtx); err != nil {
		log.Warn().Err(err).Str("journey", s.journey.ID).Msg("Final breadcrumb flush failed")
	}
	cancel()

	now := c.clock.Now()
	j := s.journey

	var err error
	if cancelled {
		err = j.Cancel(now)
	} else {
		err = j.Complete(now)
	}
	if err != nil {
		log.Warn().Err(err).Str("journey", j.ID).Msg("Journey already finished")
	}

	final := j.Snapshot()

	if cancelled {
		c.events.Publish(CancelledEvent{Journey: final})
	} else if !s.arrivedEmitted {
		c.events.Publish(ArrivedEvent{Journey: final})
	}

	c.persist(final.ID, "update_journey", true, func(ctx context.Context) error {
		return c.sink.UpdateJourney(ctx, final)
	})

	c.mu.Lock()
	if c.generation == stopGeneration {
		c.setState(StateIdle)
	}
	c.mu.Unlock()

	log.Info().
		Str("journey", final.ID).
		Str("status", string(final.Status())).
		Int("checkpoints", len(final.Checkpoints)).
		Int("breadcrumbs", len(final.Breadcrumbs)).
		Int("reroutes", final.RerouteCount).
		Msg("Navigation stopped")

	return final
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := Snapshot{
		State:     c.state,
		UpdatedAt: c.clock.Now(),
	}
	if c.lastError != nil {
		snapshot.LastError = c.lastError.Error()
	}

	s := c.session
	if s == nil {
		return snapshot
	}

	destination := s.journey.Destination
	snapshot.JourneyID = s.journey.ID
	snapshot.Destination = &destination
	snapshot.Mode = s.journey.Mode
	snapshot.RerouteCount = s.journey.RerouteCount
	snapshot.PendingBreadcrumbs = s.batcher.Pending()

	guidance := s.guidance
	snapshot.CurrentStepIndex = -1
	if guidance.currentStep != nil {
		snapshot.CurrentStepIndex = guidance.currentStep.Index
		snapshot.CurrentInstruction = guidance.currentStep.Instruction
		snapshot.CurrentRoadName = guidance.currentStep.RoadName
		snapshot.CurrentManeuver = guidance.currentStep.Maneuver
	}
	snapshot.NextInstruction = guidance.nextInstruction
	snapshot.DistanceToNextTurnMeters = guidance.distanceToStep
	snapshot.TimeToNextTurnSeconds = guidance.timeToStep
	snapshot.StepsRemaining = guidance.stepsRemaining
	snapshot.RemainingDistanceMeters = guidance.remainingDistance
	snapshot.RemainingTimeSeconds = guidance.remainingTime
	if guidance.lastLocation != nil {
		location := *guidance.lastLocation
		snapshot.LastLocation = &location
	}

	return snapshot
}

// sessionListener binds engine callbacks to the session that registered it,
// so callbacks delivered after that session ended are dropped
type sessionListener struct {
	coordinator *Coordinator
	generation  uint64
}

func (l *sessionListener) Arrived(waypoint Waypoint) {
	l.coordinator.arrived(l.generation, waypoint)
}

func (l *sessionListener) RouteChanged() {
	l.coordinator.withSession(l.generation, l.coordinator.handleRouteChanged)
}

func (l *sessionListener) RemainingTimeUpdated(seconds float64) {
	l.coordinator.withSession(l.generation, func(s *session) { l.coordinator.handleRemainingTime(s, seconds) })
}

func (l *sessionListener) RemainingDistanceUpdated(meters float64) {
	l.coordinator.withSession(l.generation, func(s *session) { l.coordinator.handleRemainingDistance(s, meters) })
}

func (l *sessionListener) NavInfoUpdated(info NavInfo) {
	l.coordinator.withSession(l.generation, func(s *session) { l.coordinator.handleNavInfo(s, info) })
}

// LocationUpdated lets an engine that also reports raw positions feed breadcrumbs
func (l *sessionListener) LocationUpdated(sample LocationSample) {
	l.coordinator.withSession(l.generation, func(s *session) { l.coordinator.handleLocation(s, sample) })
}
