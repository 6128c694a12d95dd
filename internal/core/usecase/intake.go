package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/claims-intake/internal/core/domain"
	"github.com/kirillkom/claims-intake/internal/core/ports"
)

type IntakeOptions struct {
	// IncidentDateDefaultToday enables today's date as the last incident date fallback.
	IncidentDateDefaultToday bool

	Now   func() time.Time
	NewID func() string
}

// IntakeUseCase drives claim drafts from first field to accepted submission.
type IntakeUseCase struct {
	store     ports.DraftStore
	predictor ports.Predictor
	backend   ports.ClaimsBackend
	ledger    ports.SubmissionLedger
	publisher ports.NoticePublisher
	observer  ports.WorkflowObserver
	opts      IntakeOptions

	// flights keeps at most one prediction per draft id.
	flights singleflight.Group

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*draftSession
}

// draftSession is the live owner of one draft. Its context ends when the draft is discarded.
type draftSession struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

func NewIntakeUseCase(
	store ports.DraftStore,
	predictor ports.Predictor,
	backend ports.ClaimsBackend,
	ledger ports.SubmissionLedger,
	publisher ports.NoticePublisher,
	observer ports.WorkflowObserver,
	opts IntakeOptions,
) *IntakeUseCase {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &IntakeUseCase{
		store:      store,
		predictor:  predictor,
		backend:    backend,
		ledger:     ledger,
		publisher:  publisher,
		observer:   observer,
		opts:       opts,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		sessions:   make(map[string]*draftSession),
	}
}

func (uc *IntakeUseCase) Aggregate(values domain.FieldValues) domain.DamageTotals {
	return AggregateDamages(values)
}

func (uc *IntakeUseCase) CreateDraft(ctx context.Context, initial domain.FieldValues) (*domain.DraftView, error) {
	if err := domain.ValidateValues(initial); err != nil {
		return nil, err
	}

	draft := domain.NewClaimDraft(uc.opts.NewID(), uc.opts.Now())
	for name, value := range initial {
		if value != nil {
			draft.Fields[name] = value
		}
	}
	if err := uc.store.Save(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	uc.mu.Lock()
	uc.sessions[draft.ID] = uc.newSession()
	uc.mu.Unlock()

	slog.Info("draft_created", "draft_id", draft.ID)
	return uc.view(draft), nil
}

func (uc *IntakeUseCase) GetDraft(ctx context.Context, id string) (*domain.DraftView, error) {
	s, err := uc.session(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.ctx.Err() != nil {
		return nil, draftNotFound(id)
	}
	draft, err := uc.loadDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	return uc.view(draft), nil
}

// UpdateFields merges values into the draft. A nil value clears the field.
// Changing any predictive field drops the current prediction.
func (uc *IntakeUseCase) UpdateFields(ctx context.Context, id string, values domain.FieldValues) (*domain.DraftView, error) {
	if err := domain.ValidateValues(values); err != nil {
		return nil, err
	}

	s, err := uc.session(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, draftNotFound(id)
	}

	draft, err := uc.loadDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if applyFieldValues(draft, values) {
		draft.Revision++
		draft.InvalidatePrediction()
	}
	draft.UpdatedAt = uc.opts.Now()
	if err := uc.store.Save(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return uc.view(draft), nil
}

// MoveToStep navigates the form. Moving forward validates every step being left.
// Arriving at the review step starts a prediction when none is usable.
func (uc *IntakeUseCase) MoveToStep(ctx context.Context, id string, step domain.Step) (*domain.DraftView, error) {
	if !step.Valid() {
		return nil, domain.NewValidationError(map[string]string{"step": fmt.Sprintf("unknown step %d", int(step))})
	}

	s, err := uc.session(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, draftNotFound(id)
	}

	draft, err := uc.loadDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if step > draft.Step {
		leaving := make([]domain.Step, 0, int(step-draft.Step))
		for st := draft.Step; st < step; st++ {
			leaving = append(leaving, st)
		}
		if err := domain.ValidateFields(draft.Fields, leaving...); err != nil {
			return nil, err
		}
	}

	draft.Step = step
	draft.UpdatedAt = uc.opts.Now()
	if err := uc.store.Save(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	if step == domain.StepReview && !CanSubmit(draft.GateState()) && draft.PredictionStatus != domain.PredictionPredicting {
		uc.startPrediction(s, id)
	}
	return uc.view(draft), nil
}

// RequestPrediction starts (or joins) a prediction for the draft and waits for it.
// An explicit request replaces any earlier prediction.
func (uc *IntakeUseCase) RequestPrediction(ctx context.Context, id string) (*domain.DraftView, error) {
	s, err := uc.session(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, draftNotFound(id)
	}
	flight := uc.startPrediction(s, id)
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
	}
	return uc.GetDraft(ctx, id)
}

// Submit posts the claim when the gate is open. With the gate closed it starts
// a prediction instead (or reports the one in flight) and posts nothing.
func (uc *IntakeUseCase) Submit(ctx context.Context, id string, stepValues domain.FieldValues) (*domain.SubmissionRecord, error) {
	if err := domain.ValidateValues(stepValues); err != nil {
		return nil, validationFailed(err, "Please correct the highlighted fields.")
	}

	s, err := uc.session(ctx, id)
	if err != nil {
		return nil, err
	}

	var outbox []domain.Notice
	defer func() { uc.publish(outbox...) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, draftNotFound(id)
	}

	draft, err := uc.loadDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	stored := draft.Fields.Clone()
	if applyFieldValues(draft, stepValues) {
		draft.Revision++
		draft.InvalidatePrediction()
	}
	draft.UpdatedAt = uc.opts.Now()

	if !CanSubmit(draft.GateState()) {
		if err := uc.store.Save(ctx, draft); err != nil {
			return nil, fmt.Errorf("save draft: %w", err)
		}
		if draft.PredictionStatus == domain.PredictionPredicting {
			return nil, domain.WrapError(domain.ErrPredictionPending, "submit", fmt.Errorf("draft=%s", id))
		}
		uc.startPrediction(s, id)
		slog.Info("submission_gate_closed", "draft_id", id, "action", "prediction_triggered")
		return nil, domain.WrapError(domain.ErrPredictionRequired, "submit", fmt.Errorf("draft=%s", id))
	}

	start := time.Now()
	incidentDate, ok := resolveIncidentDate(stepValues, stored, uc.today)
	if !ok {
		subErr := &domain.SubmissionError{
			Kind:    domain.SubmissionValidationFailed,
			Message: "Please enter the incident date before submitting the claim.",
			Fields:  map[string]string{domain.FieldAccidentDate: "is required"},
		}
		outbox = append(outbox, uc.rejectSubmission(ctx, draft, subErr, domain.FieldAccidentDate, start))
		return nil, subErr
	}
	if err := domain.ValidateFields(draft.Fields); err != nil {
		subErr := validationFailed(err, "Please correct the highlighted fields.")
		outbox = append(outbox, uc.rejectSubmission(ctx, draft, subErr, "", start))
		return nil, subErr
	}

	payload := BuildClaimPayload(draft.Fields, incidentDate, *draft.Prediction, AggregateDamages(draft.Fields))

	submitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	ack, err := uc.backend.SubmitClaim(submitCtx, payload)
	discarded := s.ctx.Err() != nil
	if err != nil {
		if discarded {
			uc.observeSubmission("discarded", time.Since(start))
			slog.Info("claim_submit_discarded", "draft_id", id, "error", err)
			return nil, domain.WrapError(domain.ErrDraftNotFound, "submit", fmt.Errorf("draft=%s discarded: %w", id, err))
		}
		subErr, ok := domain.AsSubmissionError(err)
		if !ok {
			subErr = &domain.SubmissionError{Kind: domain.SubmissionUnknown, Err: err}
		}
		outbox = append(outbox, uc.rejectSubmission(ctx, draft, subErr, "", start))
		return nil, subErr
	}

	record := domain.SubmissionRecord{
		Reference:        uc.opts.NewID(),
		ClaimID:          ack.ClaimID,
		Recognized:       ack.Recognized,
		DraftID:          id,
		Title:            payload.Title,
		SettlementAmount: payload.MLPrediction.SettlementAmount,
		ConfidenceScore:  payload.MLPrediction.ConfidenceScore,
		Source:           payload.MLPrediction.Source,
		SubmittedAt:      uc.opts.Now(),
	}
	outcome := "accepted"
	if !ack.Recognized {
		outcome = "accepted_unrecognized"
		slog.Warn("claim_submit_unrecognized_response", "draft_id", id, "reference", record.Reference)
	}
	if uc.ledger != nil {
		if err := uc.ledger.Record(ctx, record); err != nil {
			slog.Warn("submission_ledger_write_failed", "draft_id", id, "reference", record.Reference, "error", err)
		}
	}

	// The backend kept the claim, but a discarded draft is not written back.
	if !discarded {
		draft.Reset()
		draft.Confirmation = &record
		confirmationID := record.ClaimID
		if confirmationID == "" {
			confirmationID = record.Reference
		}
		notice := uc.newNotice(id, domain.NoticeClaimSubmitted, domain.NoticeSuccess, "Claim submitted. Reference: "+confirmationID, "")
		draft.AddNotice(notice)
		if err := uc.store.Save(ctx, draft); err != nil {
			slog.Error("draft_reset_failed", "draft_id", id, "error", err)
		}
		outbox = append(outbox, notice)
	}
	uc.observeSubmission(outcome, time.Since(start))
	slog.Info("claim_submitted", "draft_id", id, "claim_id", record.ClaimID, "reference", record.Reference, "amount", record.SettlementAmount)
	return &record, nil
}

// Discard tears the draft down. In-flight predictions and submissions are
// cancelled and their results dropped.
func (uc *IntakeUseCase) Discard(ctx context.Context, id string) error {
	s, err := uc.session(ctx, id)
	if err != nil {
		return err
	}

	// A submission holds s.mu for its whole backend call.
	s.cancel()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	<-uc.flights.DoChan(id, func() (any, error) { return nil, nil })

	// The closed session stays registered until the draft is gone from the store.
	deleteErr := uc.store.Delete(ctx, id)
	uc.mu.Lock()
	if uc.sessions[id] == s {
		delete(uc.sessions, id)
	}
	uc.mu.Unlock()
	if deleteErr != nil {
		return fmt.Errorf("delete draft: %w", deleteErr)
	}
	slog.Info("draft_discarded", "draft_id", id)
	return nil
}

func (uc *IntakeUseCase) GetSubmission(ctx context.Context, reference string) (*domain.SubmissionRecord, error) {
	if uc.ledger == nil {
		return nil, domain.WrapError(domain.ErrSubmissionNotFound, "get submission", fmt.Errorf("reference=%s", reference))
	}
	return uc.ledger.Get(ctx, reference)
}

// Close cancels every live session and waits for in-flight predictions to settle.
func (uc *IntakeUseCase) Close() {
	uc.rootCancel()

	uc.mu.Lock()
	sessions := make(map[string]*draftSession, len(uc.sessions))
	for id, s := range uc.sessions {
		sessions[id] = s
	}
	uc.mu.Unlock()

	for id, s := range sessions {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		<-uc.flights.DoChan(id, func() (any, error) { return nil, nil })
	}
}

// startPrediction must be called with s.mu held and s open.
func (uc *IntakeUseCase) startPrediction(s *draftSession, id string) <-chan singleflight.Result {
	return uc.flights.DoChan(id, func() (any, error) {
		return nil, uc.runPrediction(s, id)
	})
}

func (uc *IntakeUseCase) runPrediction(s *draftSession, id string) error {
	start := time.Now()
	ctx := s.ctx

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return context.Canceled
	}
	draft, err := uc.loadDraft(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := domain.ValidateFields(draft.Fields); err != nil {
		notice := uc.newNotice(id, domain.NoticeValidationFailed, domain.NoticeWarning, "Complete the required fields before requesting a settlement estimate.", "")
		draft.AddNotice(notice)
		saveErr := uc.store.Save(ctx, draft)
		s.mu.Unlock()
		if saveErr != nil {
			return fmt.Errorf("save draft: %w", saveErr)
		}
		uc.publish(notice)
		return err
	}

	input := BuildPredictionInput(draft.Fields)
	revision := draft.Revision
	draft.Prediction = nil
	draft.PredictionErrorKind = ""
	draft.PredictionMessage = ""
	draft.PredictionStatus = domain.PredictionPredicting
	if err := uc.store.Save(ctx, draft); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("save draft: %w", err)
	}
	s.mu.Unlock()

	retries := 0
	onRetry := func(attempt int, err error) {
		retries++
		slog.Warn("prediction_retry", "draft_id", id, "attempt", attempt, "error", err)
		if retries == 1 {
			uc.notify(s, id, uc.newNotice(id, domain.NoticePredictionRetrying, domain.NoticeWarning,
				"The prediction service did not answer. Retrying...", ""))
		}
	}
	result, predErr := uc.predictor.Predict(ctx, input, onRetry)

	var outbox []domain.Notice
	defer func() { uc.publish(outbox...) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || ctx.Err() != nil {
		uc.observePrediction("discarded", retries, time.Since(start))
		return context.Canceled
	}

	draft, err = uc.loadDraft(ctx, id)
	if err != nil {
		return err
	}
	if draft.Revision != revision {
		draft.PredictionStatus = domain.PredictionNone
		if err := uc.store.Save(ctx, draft); err != nil {
			return fmt.Errorf("save draft: %w", err)
		}
		uc.observePrediction("stale", retries, time.Since(start))
		slog.Info("prediction_discarded_stale", "draft_id", id, "revision", revision, "current_revision", draft.Revision)
		return nil
	}

	var notice domain.Notice
	if predErr != nil {
		predictionErr, ok := domain.AsPredictionError(predErr)
		if !ok {
			predictionErr = &domain.PredictionError{Kind: domain.PredictionUnknown, Err: predErr}
		}
		draft.PredictionStatus = domain.PredictionUnavailable
		draft.PredictionErrorKind = predictionErr.Kind
		draft.PredictionMessage = predictionErr.UserMessage()
		notice = uc.newNotice(id, domain.NoticePredictionFailed, domain.NoticeError, predictionErr.UserMessage(), "")
		draft.AddNotice(notice)
		if err := uc.store.Save(ctx, draft); err != nil {
			return fmt.Errorf("save draft: %w", err)
		}
		outbox = append(outbox, notice)
		uc.observePrediction("failure", retries, time.Since(start))
		slog.Warn("prediction_failed", "draft_id", id, "kind", string(predictionErr.Kind), "retries", retries, "error", predErr)
		return predictionErr
	}

	result.Revision = revision
	result.PredictedAt = uc.opts.Now()
	if result.Source == "" {
		result.Source = domain.PredictionSourceML
	}
	draft.Prediction = &result
	draft.PredictionStatus = domain.PredictionReady
	notice = uc.newNotice(id, domain.NoticePredictionSucceeded, domain.NoticeSuccess,
		fmt.Sprintf("Estimated settlement: %.2f", result.SettlementAmount), "")
	draft.AddNotice(notice)
	if err := uc.store.Save(ctx, draft); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	outbox = append(outbox, notice)
	uc.observePrediction("success", retries, time.Since(start))
	slog.Info("prediction_ready", "draft_id", id, "settlement_amount", result.SettlementAmount, "confidence_score", result.ConfidenceScore, "retries", retries)
	return nil
}

// rejectSubmission records a failed submission on the draft without clearing its fields.
// The returned notice is for the caller to publish once the session is unlocked.
func (uc *IntakeUseCase) rejectSubmission(ctx context.Context, draft *domain.ClaimDraft, subErr *domain.SubmissionError, field string, start time.Time) domain.Notice {
	kind := domain.NoticeClaimFailed
	if subErr.Kind == domain.SubmissionValidationFailed {
		kind = domain.NoticeValidationFailed
	}
	notice := uc.newNotice(draft.ID, kind, domain.NoticeError, subErr.UserMessage(), field)
	draft.AddNotice(notice)
	if err := uc.store.Save(ctx, draft); err != nil {
		slog.Error("draft_save_failed", "draft_id", draft.ID, "error", err)
	}
	uc.observeSubmission(string(subErr.Kind), time.Since(start))
	slog.Error("claim_submit_failed", "draft_id", draft.ID, "kind", string(subErr.Kind), "error", subErr)
	return notice
}

func (uc *IntakeUseCase) notify(s *draftSession, id string, notice domain.Notice) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	draft, err := uc.loadDraft(s.ctx, id)
	if err == nil {
		draft.AddNotice(notice)
		err = uc.store.Save(s.ctx, draft)
	}
	s.mu.Unlock()
	if err != nil {
		slog.Warn("notice_store_failed", "draft_id", id, "kind", string(notice.Kind), "error", err)
	}
	uc.publish(notice)
}

// publish fans notices out to the broker. Callers must not hold a session lock.
func (uc *IntakeUseCase) publish(notices ...domain.Notice) {
	if uc.publisher == nil {
		return
	}
	for _, notice := range notices {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := uc.publisher.PublishNotice(ctx, notice); err != nil {
			slog.Warn("notice_publish_failed", "draft_id", notice.DraftID, "kind", string(notice.Kind), "error", err)
		}
		cancel()
	}
}

func (uc *IntakeUseCase) newNotice(draftID string, kind domain.NoticeKind, level domain.NoticeLevel, message, field string) domain.Notice {
	return domain.Notice{
		ID:        uc.opts.NewID(),
		DraftID:   draftID,
		Kind:      kind,
		Level:     level,
		Message:   message,
		Field:     field,
		CreatedAt: uc.opts.Now(),
	}
}

func (uc *IntakeUseCase) session(ctx context.Context, id string) (*draftSession, error) {
	uc.mu.Lock()
	s, ok := uc.sessions[id]
	uc.mu.Unlock()
	if ok {
		return s, nil
	}

	// Drafts kept in a shared store outlive the process that created them.
	draft, err := uc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	uc.mu.Lock()
	if s, ok := uc.sessions[id]; ok {
		uc.mu.Unlock()
		return s, nil
	}
	s = uc.newSession()
	s.mu.Lock()
	uc.sessions[id] = s
	uc.mu.Unlock()
	defer s.mu.Unlock()

	// No flight in this process owns a prediction left marked in progress.
	if draft.PredictionStatus == domain.PredictionPredicting {
		draft.PredictionStatus = domain.PredictionNone
		if err := uc.store.Save(ctx, draft); err != nil {
			slog.Warn("draft_recover_failed", "draft_id", id, "error", err)
		}
	}
	return s, nil
}

func (uc *IntakeUseCase) newSession() *draftSession {
	ctx, cancel := context.WithCancel(uc.rootCtx)
	return &draftSession{ctx: ctx, cancel: cancel}
}

func (uc *IntakeUseCase) loadDraft(ctx context.Context, id string) (*domain.ClaimDraft, error) {
	draft, err := uc.store.Get(ctx, id)
	if err != nil {
		if domain.IsKind(err, domain.ErrDraftNotFound) {
			uc.mu.Lock()
			if s, ok := uc.sessions[id]; ok {
				s.cancel()
				delete(uc.sessions, id)
			}
			uc.mu.Unlock()
		}
		return nil, err
	}
	if draft.Fields == nil {
		draft.Fields = domain.FieldValues{}
	}
	return draft, nil
}

func (uc *IntakeUseCase) view(draft *domain.ClaimDraft) *domain.DraftView {
	return &domain.DraftView{
		ClaimDraft: draft,
		StepName:   draft.Step.String(),
		Totals:     AggregateDamages(draft.Fields),
		CanSubmit:  CanSubmit(draft.GateState()),
	}
}

func (uc *IntakeUseCase) today() (time.Time, bool) {
	if !uc.opts.IncidentDateDefaultToday {
		return time.Time{}, false
	}
	return uc.opts.Now(), true
}

func (uc *IntakeUseCase) observePrediction(outcome string, retries int, duration time.Duration) {
	if uc.observer != nil {
		uc.observer.ObservePrediction(outcome, retries, duration)
	}
}

func (uc *IntakeUseCase) observeSubmission(outcome string, duration time.Duration) {
	if uc.observer != nil {
		uc.observer.ObserveSubmission(outcome, duration)
	}
}

// applyFieldValues merges values into the draft and reports whether a predictive field changed.
func applyFieldValues(draft *domain.ClaimDraft, values domain.FieldValues) bool {
	changed := false
	for name, value := range values {
		old, had := draft.Fields[name]
		if value == nil {
			if !had {
				continue
			}
			delete(draft.Fields, name)
		} else {
			if had && reflect.DeepEqual(old, value) {
				continue
			}
			draft.Fields[name] = value
		}
		if field, ok := domain.LookupField(name); ok && field.Predictive() {
			changed = true
		}
	}
	return changed
}

func validationFailed(err error, message string) *domain.SubmissionError {
	subErr := &domain.SubmissionError{
		Kind:    domain.SubmissionValidationFailed,
		Message: message,
		Err:     err,
	}
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		subErr.Fields = validationErr.Fields
	}
	return subErr
}

func draftNotFound(id string) error {
	return domain.WrapError(domain.ErrDraftNotFound, "load draft", fmt.Errorf("id=%s", id))
}
