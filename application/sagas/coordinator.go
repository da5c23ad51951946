package sagas

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"artion-backend/application/ports"
	"artion-backend/domain/core/entities"
	"artion-backend/domain/core/valueobjects"
	"artion-backend/domain/events"
)

// State is a coordinator state
type State string

const (
	StateIdle               State = "idle"
	StateProbing            State = "probing"
	StateAwaitingApproval   State = "awaiting_approval"
	StateReady              State = "ready"
	StateAuthorizing        State = "authorizing"
	StateProvisioning       State = "provisioning"
	StateCommitting         State = "committing"
	StateCommitted          State = "committed"
	StateAborted            State = "aborted"
	StateCompensationFailed State = "compensation_failed"
)

// IsBusy reports whether a phase is in flight
func (s State) IsBusy() bool {
	switch s {
	case StateProbing, StateAuthorizing, StateProvisioning, StateCommitting:
		return true
	}
	return false
}

// IsTerminal reports whether an attempt ended in this state
func (s State) IsTerminal() bool {
	switch s {
	case StateCommitted, StateAborted, StateCompensationFailed:
		return true
	}
	return false
}

// Label is the coarse rendering hint for the host
type Label string

const (
	LabelIdle  Label = "idle"
	LabelBusy  Label = "busy"
	LabelError Label = "error"
)

// Action hints shown on the host's primary button
const (
	ActionApprove = "Approve Items"
	ActionCreate  = "Create"
)

// User-facing messages
const (
	MessageRetryApproval = "try approval again"
	MessageRetryCommit   = "try commit again"
)

// OrphanMessage is shown when a compensating delete failed
func OrphanMessage(bundleID string) string {
	return fmt.Sprintf("contact support, bundle %s may be orphaned", bundleID)
}

var (
	// ErrSagaBusy rejects an action while another phase is in flight
	ErrSagaBusy = errors.New("saga is busy")

	// ErrNotReady rejects a commit unless every contract is authorized
	ErrNotReady = errors.New("bundle is not ready to commit")

	// ErrNothingToApprove rejects an approve when no contract awaits approval
	ErrNothingToApprove = errors.New("no contract awaits approval")

	// ErrDetached rejects actions on a closed session
	ErrDetached = errors.New("session is closed")
)

type failurePhase string

const (
	phaseNone          failurePhase = ""
	phaseAuthorization failurePhase = "authorization"
	phaseProvision     failurePhase = "provision"
	phaseCommit        failurePhase = "commit"
)

// Prober computes authorization status for a selection
type Prober interface {
	Probe(ctx context.Context, selection entities.Selection) entities.AuthorizationStatus
}

// Authorizer grants authorization on contracts
type Authorizer interface {
	Authorize(ctx context.Context, contracts []valueobjects.ContractAddress) error
}

// CoordinatorDeps holds the collaborators shared by every session
type CoordinatorDeps struct {
	Prober    Prober
	Driver    Authorizer
	Saga      *BundleCommitSaga
	Publisher ports.EventPublisher
	Orphans   ports.OrphanStore
	Metrics   ports.SagaMetrics
	Clock     ports.Clock
	Logger    *zap.Logger
}

// View is a snapshot of a coordinator for rendering
type View struct {
	SessionID        string                       `json:"session_id"`
	State            State                        `json:"state"`
	Label            Label                        `json:"label"`
	Message          string                       `json:"message,omitempty"`
	NextAction       string                       `json:"next_action,omitempty"`
	Selection        []valueobjects.Asset         `json:"selection"`
	SelectionVersion uint64                       `json:"selection_version"`
	Authorization    entities.AuthorizationStatus `json:"authorization"`
	Outcome          *entities.SagaOutcome        `json:"outcome,omitempty"`
}

// Coordinator is the per-session state machine driving probing,
// authorization and the bundle commit saga. It is safe for concurrent use;
// actions that arrive while a phase is in flight are rejected.
type Coordinator struct {
	id   string
	deps CoordinatorDeps

	mu           sync.Mutex
	state        State
	selection    entities.Selection
	status       entities.AuthorizationStatus
	message      string
	failure      failurePhase
	outcome      *entities.SagaOutcome
	listeners    map[int]func(View)
	nextListener int
	detached     bool
	logger       *zap.Logger
}

// NewCoordinator creates an idle coordinator
func NewCoordinator(id string, deps CoordinatorDeps) *Coordinator {
	if deps.Metrics == nil {
		deps.Metrics = ports.NoopMetrics{}
	}
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	sel := entities.NewSelection()
	return &Coordinator{
		id:        id,
		deps:      deps,
		state:     StateIdle,
		selection: sel,
		status:    entities.NewAuthorizationStatus(sel.Version(), nil),
		listeners: make(map[int]func(View)),
		logger:    deps.Logger.With(zap.String("session_id", id)),
	}
}

// ID returns the session id
func (c *Coordinator) ID() string { return c.id }

// State returns the current state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View returns a snapshot for rendering
func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Subscribe registers fn for every state change until the returned
// function is called or the coordinator is detached.
func (c *Coordinator) Subscribe(fn func(View)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return func() {}
	}
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// AddAsset adds an asset to the selection and re-probes
func (c *Coordinator) AddAsset(ctx context.Context, asset valueobjects.Asset) (View, error) {
	return c.changeSelection(ctx, func(s entities.Selection) (entities.Selection, bool) {
		return s.Add(asset)
	})
}

// RemoveAsset removes an asset from the selection and re-probes
func (c *Coordinator) RemoveAsset(ctx context.Context, key valueobjects.AssetKey) (View, error) {
	return c.changeSelection(ctx, func(s entities.Selection) (entities.Selection, bool) {
		return s.Remove(key)
	})
}

// OnSelectionChanged replaces the whole selection and re-probes
func (c *Coordinator) OnSelectionChanged(ctx context.Context, assets []valueobjects.Asset) (View, error) {
	return c.changeSelection(ctx, func(s entities.Selection) (entities.Selection, bool) {
		next := s.Clear()
		for _, a := range assets {
			next, _ = next.Add(a)
		}
		return next, true
	})
}

// RefreshAuthorization re-probes the current selection when no phase is in
// flight and the last attempt did not end in Committed or
// CompensationFailed. Otherwise it returns the last status.
func (c *Coordinator) RefreshAuthorization(ctx context.Context) (entities.AuthorizationStatus, error) {
	c.mu.Lock()
	if c.detached {
		c.mu.Unlock()
		return entities.AuthorizationStatus{}, ErrDetached
	}
	if !refreshable(c.state) {
		status := c.status
		c.mu.Unlock()
		return status, nil
	}
	c.mu.Unlock()

	c.probe(ctx, refreshable)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, nil
}

// Approve authorizes every contract still pending, then re-probes.
// From Aborted it re-probes first.
func (c *Coordinator) Approve(ctx context.Context) error {
	if err := c.reprobeIfAborted(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	if c.detached {
		c.mu.Unlock()
		return ErrDetached
	}
	if c.state.IsBusy() {
		c.mu.Unlock()
		return ErrSagaBusy
	}
	if c.state == StateReady {
		c.mu.Unlock()
		return nil
	}
	if c.state != StateAwaitingApproval {
		c.mu.Unlock()
		return ErrNothingToApprove
	}
	pending := c.status.Pending()
	c.transitionLocked(StateAuthorizing, "")
	c.unlockAndNotify()

	c.logger.Info("Authorizing contracts", zap.Int("contracts", len(pending)))

	start := time.Now()
	err := c.deps.Driver.Authorize(context.WithoutCancel(ctx), pending)
	c.deps.Metrics.RecordPhase("authorize", time.Since(start), err)

	if err != nil {
		c.logger.Warn("Authorization failed", zap.Error(err))
		c.mu.Lock()
		c.failure = phaseAuthorization
		c.transitionLocked(StateAborted, MessageRetryApproval)
		c.unlockAndNotify()
		c.publish(ctx, events.NewBundleAborted(c.id, c.id, string(phaseAuthorization), err.Error(), c.deps.Clock.Now()))
		return err
	}

	contracts := make([]string, 0, len(pending))
	for _, p := range pending {
		contracts = append(contracts, p.String())
	}
	c.publish(ctx, events.NewAuthorizationGranted(c.id, contracts, c.deps.Clock.Now()))

	c.probe(ctx, func(s State) bool { return s == StateAuthorizing })
	return nil
}

// Commit runs the bundle commit saga for draft. The draft is validated
// before anything else; rejected calls leave the state untouched. Once
// started, the attempt runs to an outcome even if ctx is cancelled.
func (c *Coordinator) Commit(ctx context.Context, draft entities.BundleDraft, authToken string) (entities.SagaOutcome, error) {
	if err := draft.Validate(); err != nil {
		return entities.SagaOutcome{}, err
	}
	if err := c.reprobeIfAborted(ctx); err != nil {
		return entities.SagaOutcome{}, err
	}

	c.mu.Lock()
	if c.detached {
		c.mu.Unlock()
		return entities.SagaOutcome{}, ErrDetached
	}
	if c.state.IsBusy() {
		c.mu.Unlock()
		return entities.SagaOutcome{}, ErrSagaBusy
	}
	if c.state != StateReady || !c.readyLocked() {
		c.mu.Unlock()
		return entities.SagaOutcome{}, ErrNotReady
	}

	sagaID := uuid.New().String()
	data := &BundleCommitData{
		SessionID: c.id,
		Draft:     draft,
		Selection: c.selection,
		AuthToken: authToken,
		StartAt:   c.deps.Clock.Now(),
	}
	c.outcome = nil
	c.transitionLocked(StateProvisioning, "")
	c.unlockAndNotify()

	logger := c.logger.With(zap.String("saga_id", sagaID))
	logger.Info("Bundle commit started", zap.Int("assets", data.Selection.Len()))
	c.publish(ctx, events.NewSagaStarted(sagaID, c.id, draft.Name, draft.Price.String(), data.Selection.Len(), c.deps.Clock.Now()))

	outcome := c.deps.Saga.Run(context.WithoutCancel(ctx), sagaID, data, func(step string) {
		if step == StepCommit {
			c.mu.Lock()
			c.transitionLocked(StateCommitting, "")
			c.unlockAndNotify()
		}
	})

	c.finish(ctx, sagaID, data, outcome, logger)
	return outcome, nil
}

// Detach clears the selection and drops every listener. In-flight phases
// run to completion; later actions fail with ErrDetached.
func (c *Coordinator) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detached = true
	c.listeners = make(map[int]func(View))
	c.selection = c.selection.Clear()
	c.status = entities.NewAuthorizationStatus(c.selection.Version(), nil)
	if !c.state.IsBusy() {
		c.state = StateIdle
		c.message = ""
	}
	c.logger.Info("Session detached")
}

func (c *Coordinator) finish(ctx context.Context, sagaID string, data *BundleCommitData, outcome entities.SagaOutcome, logger *zap.Logger) {
	now := c.deps.Clock.Now()

	c.mu.Lock()
	c.outcome = &outcome
	switch outcome.Kind {
	case entities.OutcomeCommitted:
		c.failure = phaseNone
		c.transitionLocked(StateCommitted, "")
	case entities.OutcomeCompensationFailed:
		c.failure = phaseCommit
		c.transitionLocked(StateCompensationFailed, OrphanMessage(outcome.BundleID))
	default:
		if data.Provisioned {
			c.failure = phaseCommit
		} else {
			c.failure = phaseProvision
		}
		c.transitionLocked(StateAborted, MessageRetryCommit)
	}
	phase := c.failure
	c.unlockAndNotify()

	switch outcome.Kind {
	case entities.OutcomeCommitted:
		logger.Info("Bundle committed", zap.String("bundle_id", outcome.BundleID))
		c.publish(ctx, events.NewBundleCommitted(sagaID, c.id, outcome.BundleID, now))
	case entities.OutcomeCompensationFailed:
		logger.Error("Bundle may be orphaned",
			zap.String("bundle_id", outcome.BundleID),
			zap.String("reason", outcome.Reason))
		c.recordOrphan(ctx, outcome, now)
		c.publish(ctx, events.NewCompensationFailed(sagaID, c.id, outcome.BundleID, outcome.Reason, now))
	default:
		logger.Warn("Bundle commit aborted",
			zap.String("phase", string(phase)),
			zap.String("reason", outcome.Reason))
		c.publish(ctx, events.NewBundleAborted(sagaID, c.id, string(phase), outcome.Reason, now))
	}
}

func (c *Coordinator) recordOrphan(ctx context.Context, outcome entities.SagaOutcome, now time.Time) {
	if c.deps.Orphans == nil {
		return
	}
	err := c.deps.Orphans.Record(context.WithoutCancel(ctx), entities.OrphanedBundle{
		BundleID:   outcome.BundleID,
		SessionID:  c.id,
		Reason:     outcome.Reason,
		Status:     entities.OrphanStatusOpen,
		RecordedAt: now,
	})
	if err != nil {
		c.logger.Error("Failed to record orphaned bundle",
			zap.String("bundle_id", outcome.BundleID),
			zap.Error(err))
	}
}

func (c *Coordinator) changeSelection(ctx context.Context, mutate func(entities.Selection) (entities.Selection, bool)) (View, error) {
	c.mu.Lock()
	if c.detached {
		c.mu.Unlock()
		return View{}, ErrDetached
	}
	next, changed := mutate(c.selection)
	if !changed {
		v := c.viewLocked()
		c.mu.Unlock()
		return v, nil
	}
	c.selection = next
	if c.state.IsBusy() && c.state != StateProbing {
		// The in-flight phase keeps its snapshot. The next action re-probes.
		v := c.viewLocked()
		c.unlockAndNotify()
		return v, nil
	}
	c.outcome = nil
	c.failure = phaseNone
	c.mu.Unlock()

	c.probe(ctx, selectionProbeable)
	return c.View(), nil
}

// refreshable reports whether a status refresh may re-probe from s
func refreshable(s State) bool {
	return !s.IsBusy() && s != StateCommitted && s != StateCompensationFailed
}

// selectionProbeable reports whether a selection change may re-probe from s.
// A newer selection may restart an in-flight probe.
func selectionProbeable(s State) bool {
	return !s.IsBusy() || s == StateProbing
}

// probe moves through Probing for the current selection when admit accepts
// the state found under the lock. Results computed for a selection version
// that is no longer current are discarded.
func (c *Coordinator) probe(ctx context.Context, admit func(State) bool) {
	c.mu.Lock()
	if c.detached || !admit(c.state) {
		c.mu.Unlock()
		return
	}
	sel := c.selection
	if sel.IsEmpty() {
		c.status = entities.NewAuthorizationStatus(sel.Version(), nil)
		c.transitionLocked(StateIdle, "")
		c.unlockAndNotify()
		return
	}
	c.transitionLocked(StateProbing, "")
	c.unlockAndNotify()

	status := c.deps.Prober.Probe(ctx, sel)

	c.mu.Lock()
	if c.detached || c.state != StateProbing || status.SelectionVersion() != c.selection.Version() {
		c.logger.Debug("Discarding stale probe",
			zap.Uint64("probed_version", status.SelectionVersion()),
			zap.Uint64("current_version", c.selection.Version()))
		c.mu.Unlock()
		return
	}
	c.status = status
	if status.IsClear() {
		c.transitionLocked(StateReady, "")
	} else {
		c.transitionLocked(StateAwaitingApproval, "")
	}
	c.unlockAndNotify()
}

func (c *Coordinator) reprobeIfAborted(ctx context.Context) error {
	c.mu.Lock()
	if c.detached {
		c.mu.Unlock()
		return ErrDetached
	}
	c.mu.Unlock()
	c.probe(ctx, func(s State) bool { return s == StateAborted })
	return nil
}

func (c *Coordinator) readyLocked() bool {
	return !c.selection.IsEmpty() &&
		c.status.IsClear() &&
		c.status.SelectionVersion() == c.selection.Version()
}

func (c *Coordinator) transitionLocked(next State, message string) {
	if c.state != next {
		c.logger.Debug("State transition",
			zap.String("from", string(c.state)),
			zap.String("state", string(next)))
	}
	c.state = next
	c.message = message
}

// unlockAndNotify releases the lock and then calls every listener with
// the view taken while locked.
func (c *Coordinator) unlockAndNotify() {
	v := c.viewLocked()
	listeners := make([]func(View), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}

func (c *Coordinator) viewLocked() View {
	v := View{
		SessionID:        c.id,
		State:            c.state,
		Label:            c.labelLocked(),
		Message:          c.message,
		NextAction:       c.nextActionLocked(),
		Selection:        c.selection.Assets(),
		SelectionVersion: c.selection.Version(),
		Authorization:    c.status,
	}
	if c.outcome != nil {
		o := *c.outcome
		v.Outcome = &o
	}
	return v
}

func (c *Coordinator) labelLocked() Label {
	switch {
	case c.state.IsBusy():
		return LabelBusy
	case c.state == StateAborted || c.state == StateCompensationFailed:
		return LabelError
	default:
		return LabelIdle
	}
}

func (c *Coordinator) nextActionLocked() string {
	switch c.state {
	case StateAwaitingApproval:
		return ActionApprove
	case StateReady:
		return ActionCreate
	case StateAborted:
		if c.failure == phaseAuthorization {
			return ActionApprove
		}
		return ActionCreate
	}
	return ""
}

func (c *Coordinator) publish(ctx context.Context, event events.DomainEvent) {
	if c.deps.Publisher == nil {
		return
	}
	if err := c.deps.Publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		c.logger.Warn("Failed to publish event",
			zap.String("event_type", event.GetEventType()),
			zap.Error(err))
	}
}
