package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"phone-agent/internal/events"
	"phone-agent/internal/store"
	"phone-agent/internal/telephony"
)

var (
	ErrNotFound       = errors.New("workflow: not found")
	ErrAlreadyRunning = errors.New("workflow: already running for business")
	ErrInvalidRequest = errors.New("workflow: invalid request")
)

// ConcurrencyLimiter caps simultaneous outbound calls. Optional; nil
// means unlimited.
type ConcurrencyLimiter interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Service runs the verify-then-gather workflow per business target.
//
// Workflows are retained in memory until cancelled or process restart;
// there is no automatic eviction. Call-ended events are matched back to
// a workflow by call SID, which is the only linkage between the
// call-level machines and this one.
type Service struct {
	Dialer  telephony.Dialer
	Store   store.Store        // outcome reads; optional
	Limiter ConcurrencyLimiter // optional

	Clock func() time.Time

	VerificationTimeout time.Duration
	InformationTimeout  time.Duration
	BatchDelay          time.Duration

	bus *events.Bus
	log *slog.Logger

	mu     sync.Mutex
	flows  map[string]*Workflow
	bySid  map[string]string // call sid -> business id
	timers map[string]*time.Timer
}

const (
	defaultVerificationTimeout = 5 * time.Minute
	defaultInformationTimeout  = 10 * time.Minute
	defaultBatchDelay          = 2 * time.Second
)

func NewService(bus *events.Bus, dialer telephony.Dialer, st store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		Dialer:              dialer,
		Store:               st,
		Clock:               time.Now,
		VerificationTimeout: defaultVerificationTimeout,
		InformationTimeout:  defaultInformationTimeout,
		BatchDelay:          defaultBatchDelay,
		bus:                 bus,
		log:                 log,
		flows:               make(map[string]*Workflow),
		bySid:               make(map[string]string),
		timers:              make(map[string]*time.Timer),
	}
}

// Register subscribes the service to call teardown events.
func (s *Service) Register() {
	s.bus.CallEnded.Subscribe(func(ev events.CallEnded) { s.handleCallEnded(ev.CallID) })
	s.bus.CallTerminated.Subscribe(func(ev events.CallTerminated) { s.handleCallEnded(ev.CallID) })
}

// Start begins a workflow for one business target. Call placement
// failure is the one hard failure: it is returned to the caller and
// recorded on the workflow.
func (s *Service) Start(ctx context.Context, req StartRequest) (Workflow, error) {
	if req.BusinessID == "" || req.PhoneNumber == "" || req.Goal == "" {
		return Workflow{}, ErrInvalidRequest
	}

	now := s.Clock()
	s.mu.Lock()
	if existing, ok := s.flows[req.BusinessID]; ok && !existing.terminal() {
		s.mu.Unlock()
		return Workflow{}, ErrAlreadyRunning
	}
	wf := &Workflow{
		BusinessID:       req.BusinessID,
		PhoneNumber:      req.PhoneNumber,
		Goal:             req.Goal,
		CompanyName:      req.CompanyName,
		SkipVerification: req.SkipVerification,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.flows[req.BusinessID] = wf
	s.mu.Unlock()

	if req.SkipVerification {
		s.setStatus(req.BusinessID, StatusVerified, "")
		if err := s.startInformationPhase(ctx, req.BusinessID); err != nil {
			return s.snapshot(req.BusinessID), err
		}
		return s.snapshot(req.BusinessID), nil
	}

	s.setStatus(req.BusinessID, StatusVerifying, "")
	verifyGoal := fmt.Sprintf("Verify that this number reaches %s", req.CompanyName)
	callID, err := s.placeCall(ctx, telephony.OutboundCallRequest{
		To:          req.PhoneNumber,
		Goal:        verifyGoal,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		s.setStatus(req.BusinessID, StatusFailed, err.Error())
		return s.snapshot(req.BusinessID), fmt.Errorf("workflow: verification call placement: %w", err)
	}

	s.mu.Lock()
	if wf, ok := s.flows[req.BusinessID]; ok {
		wf.VerificationCallSid = callID
		wf.UpdatedAt = s.Clock()
		s.bySid[callID] = req.BusinessID
	}
	s.mu.Unlock()

	s.armTimer(req.BusinessID, "verify", callID, s.VerificationTimeout)
	return s.snapshot(req.BusinessID), nil
}

// RunBatch starts workflows sequentially with a fixed inter-start delay
// so call origination never bursts. One target's failure is recorded and
// the rest of the batch continues.
func (s *Service) RunBatch(ctx context.Context, reqs []StartRequest) []BatchResult {
	results := make([]BatchResult, 0, len(reqs))
	for i, req := range reqs {
		if i > 0 {
			select {
			case <-ctx.Done():
				results = append(results, BatchResult{BusinessID: req.BusinessID, Error: ctx.Err().Error()})
				continue
			case <-time.After(s.BatchDelay):
			}
		}
		if _, err := s.Start(ctx, req); err != nil {
			s.log.Warn("batch target failed", "business_id", req.BusinessID, "err", err)
			results = append(results, BatchResult{BusinessID: req.BusinessID, Error: err.Error()})
			continue
		}
		results = append(results, BatchResult{BusinessID: req.BusinessID, Started: true})
	}
	return results
}

// Get returns a copy of the workflow for a business.
func (s *Service) Get(businessID string) (Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.flows[businessID]
	if !ok {
		return Workflow{}, ErrNotFound
	}
	return *wf, nil
}

// List returns copies of all retained workflows.
func (s *Service) List() []Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Workflow, 0, len(s.flows))
	for _, wf := range s.flows {
		out = append(out, *wf)
	}
	return out
}

// Cancel deletes the workflow and stops its timers. Cancellation is the
// only eviction path besides process restart.
func (s *Service) Cancel(businessID string) error {
	s.mu.Lock()
	wf, ok := s.flows[businessID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.flows, businessID)
	delete(s.bySid, wf.VerificationCallSid)
	delete(s.bySid, wf.InformationCallSid)
	for _, phase := range []string{"verify", "info"} {
		if t, ok := s.timers[businessID+":"+phase]; ok {
			t.Stop()
			delete(s.timers, businessID+":"+phase)
		}
	}
	s.mu.Unlock()
	s.log.Info("workflow cancelled", "business_id", businessID)
	return nil
}

func (s *Service) startInformationPhase(ctx context.Context, businessID string) error {
	s.mu.Lock()
	wf, ok := s.flows[businessID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	req := telephony.OutboundCallRequest{
		To:          wf.PhoneNumber,
		Goal:        wf.Goal,
		CompanyName: wf.CompanyName,
	}
	s.mu.Unlock()

	s.setStatus(businessID, StatusGatheringInfo, "")
	callID, err := s.placeCall(ctx, req)
	if err != nil {
		s.setStatus(businessID, StatusFailed, err.Error())
		return fmt.Errorf("workflow: information call placement: %w", err)
	}

	s.mu.Lock()
	if wf, ok := s.flows[businessID]; ok {
		wf.InformationCallSid = callID
		wf.UpdatedAt = s.Clock()
		s.bySid[callID] = businessID
	}
	s.mu.Unlock()

	s.armTimer(businessID, "info", callID, s.InformationTimeout)
	return nil
}

func (s *Service) placeCall(ctx context.Context, req telephony.OutboundCallRequest) (string, error) {
	if s.Limiter != nil {
		ok, err := s.Limiter.Acquire(ctx)
		if err != nil {
			return "", fmt.Errorf("workflow: call capacity check: %w", err)
		}
		if !ok {
			return "", errors.New("workflow: concurrent call limit reached")
		}
	}
	callID, err := telephony.Initiate(ctx, s.Dialer, s.bus, req)
	if err != nil {
		if s.Limiter != nil {
			_ = s.Limiter.Release(context.Background())
		}
		return "", err
	}
	return callID, nil
}

// handleCallEnded resolves which workflow and phase the ended call
// belonged to and advances the state machine.
func (s *Service) handleCallEnded(callID string) {
	s.mu.Lock()
	businessID, ok := s.bySid[callID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.bySid, callID)
	wf, ok := s.flows[businessID]
	if !ok {
		s.mu.Unlock()
		return
	}
	isVerification := wf.VerificationCallSid == callID
	status := wf.Status
	s.mu.Unlock()

	if s.Limiter != nil {
		_ = s.Limiter.Release(context.Background())
	}

	outcome := s.readOutcome(callID)

	if isVerification {
		if status != StatusVerifying {
			return
		}
		s.stopTimer(businessID, "verify")
		if outcome.Success {
			s.mu.Lock()
			if wf, ok := s.flows[businessID]; ok && wf.Status == StatusVerifying {
				wf.Status = StatusVerified
				wf.VerificationResult = outcome.Response
				wf.UpdatedAt = s.Clock()
			}
			s.mu.Unlock()
			s.log.Info("verification succeeded", "business_id", businessID)
			// Information gathering starts automatically; no manual
			// trigger required.
			if err := s.startInformationPhase(context.Background(), businessID); err != nil {
				s.log.Error("information phase start failed", "business_id", businessID, "err", err)
			}
			return
		}
		s.setStatus(businessID, StatusFailedVerification, "verification call did not confirm the business")
		return
	}

	if status != StatusGatheringInfo {
		return
	}
	s.stopTimer(businessID, "info")
	if outcome.Success {
		s.mu.Lock()
		if wf, ok := s.flows[businessID]; ok && wf.Status == StatusGatheringInfo {
			wf.Status = StatusCompleted
			wf.InformationResult = outcome.Response
			wf.UpdatedAt = s.Clock()
		}
		s.mu.Unlock()
		s.log.Info("workflow completed", "business_id", businessID)
		return
	}
	s.setStatus(businessID, StatusFailed, "information call ended without capturing a result")
}

func (s *Service) readOutcome(callID string) store.Outcome {
	if s.Store == nil {
		return store.Outcome{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o, err := s.Store.GetOutcome(ctx, callID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("outcome read failed", "call_id", callID, "err", err)
		}
		return store.Outcome{}
	}
	return o
}

// armTimer schedules the absolute phase deadline. The callback is
// existence-gated: it re-checks that the workflow still exists, is still
// in the phase, and still owns the call SID before forcing a failure.
func (s *Service) armTimer(businessID, phase, callID string, d time.Duration) {
	key := businessID + ":" + phase
	t := time.AfterFunc(d, func() { s.phaseTimeout(businessID, phase, callID) })
	s.mu.Lock()
	if old, ok := s.timers[key]; ok {
		old.Stop()
	}
	s.timers[key] = t
	s.mu.Unlock()
}

func (s *Service) stopTimer(businessID, phase string) {
	key := businessID + ":" + phase
	s.mu.Lock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()
}

func (s *Service) phaseTimeout(businessID, phase, callID string) {
	s.mu.Lock()
	wf, ok := s.flows[businessID]
	if !ok {
		s.mu.Unlock()
		return
	}
	switch phase {
	case "verify":
		if wf.Status != StatusVerifying || wf.VerificationCallSid != callID {
			s.mu.Unlock()
			return
		}
		wf.Status = StatusFailedVerification
		wf.Error = "verification phase timed out"
	case "info":
		if wf.Status != StatusGatheringInfo || wf.InformationCallSid != callID {
			s.mu.Unlock()
			return
		}
		wf.Status = StatusFailed
		wf.Error = "information phase timed out"
	}
	wf.UpdatedAt = s.Clock()
	s.mu.Unlock()

	s.log.Warn("workflow phase timed out", "business_id", businessID, "phase", phase)
	s.bus.Hangup.Publish(events.Hangup{CallID: callID, Reason: "phase timeout"})
}

func (s *Service) setStatus(businessID string, st Status, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wf, ok := s.flows[businessID]; ok {
		wf.Status = st
		if errMsg != "" {
			wf.Error = errMsg
		}
		wf.UpdatedAt = s.Clock()
	}
}

func (s *Service) snapshot(businessID string) Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wf, ok := s.flows[businessID]; ok {
		return *wf
	}
	return Workflow{}
}
