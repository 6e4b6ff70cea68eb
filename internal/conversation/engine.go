package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/helpline1930/helpline/internal/flow"
	"github.com/helpline1930/helpline/internal/models"
	"github.com/helpline1930/helpline/internal/record"
	"github.com/helpline1930/helpline/internal/validate"
)

// DefaultThreshold is the minimum classifier confidence for auto-routing
// a free-text message from idle straight into a flow.
const DefaultThreshold = 0.55

// Engine computes conversation transitions. It is pure with respect to
// the stores it is given: the caller owns snapshot persistence and the
// execution of returned effects, which makes the whole state machine
// testable with in-memory fakes.
type Engine struct {
	records    RecordStore
	classifier Classifier
	responder  Responder
	threshold  float64
}

// EngineOpts holds parameters for creating an Engine. Classifier and
// Responder are optional; without them idle free text falls back to the
// generic menu hint and catalog misses re-prompt without clarification.
type EngineOpts struct {
	Records    RecordStore
	Classifier Classifier
	Responder  Responder
	Threshold  float64
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.Records == nil {
		return nil, fmt.Errorf("conversation: engine: record store is required")
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{
		records:    opts.Records,
		classifier: opts.Classifier,
		responder:  opts.Responder,
		threshold:  threshold,
	}, nil
}

// greetings are the tokens that (re)open the menu from any state.
var greetings = map[string]bool{
	"start": true, "menu": true, "hi": true, "hello": true, "help": true,
}

// exitTokens are the only tokens that leave the free-form query state.
var exitTokens = map[string]bool{"start": true, "menu": true}

// Handle computes one transition. It always terminates in a state change
// or a user-visible message (or both), never a silent drop.
func (e *Engine) Handle(ctx context.Context, snap Snapshot, ev Event) (Snapshot, []Effect) {
	input := ev.Input()
	norm := strings.ToLower(input)

	if ev.Kind != KindImage && greetings[norm] {
		// In the free-form query state only the explicit exit tokens
		// return to the menu; "hi" there is a question, not a command.
		if snap.State.Flow != FlowOther || exitTokens[norm] {
			return snap.reset(State{Flow: FlowMenu}), []Effect{menuEffect(snap.SenderID)}
		}
	}

	switch snap.State.Flow {
	case FlowIdle:
		return e.handleIdle(ctx, snap, ev, input)
	case FlowMenu:
		return e.handleMenu(snap, input)
	case FlowComplaint:
		return e.handleComplaint(ctx, snap, ev, input)
	case FlowStatus:
		return e.handleStatus(snap, ev, input)
	case FlowUnfreeze:
		return e.handleUnfreeze(snap, ev, input)
	case FlowOther:
		return e.handleOther(ctx, snap, input)
	}
	return snap.reset(Idle), []Effect{e.text(snap, msgIdleFallback)}
}

// --- idle ---

func (e *Engine) handleIdle(ctx context.Context, snap Snapshot, ev Event, input string) (Snapshot, []Effect) {
	if ev.Kind == KindImage || input == "" {
		return snap, []Effect{e.text(snap, msgIdleFallback)}
	}

	if e.classifier != nil {
		intent, confidence, err := e.classifier.DetectIntent(ctx, input)
		if err != nil {
			log.Printf("conversation: detect intent: %v", err)
		} else if confidence > e.threshold {
			if next, effects, ok := e.enterIntent(ctx, snap, intent, input); ok {
				return next, effects
			}
		}
	}
	return snap, []Effect{e.text(snap, msgIdleFallback)}
}

// enterIntent routes a classified message directly into a flow entry
// point, skipping the menu. Unknown intents report ok=false.
func (e *Engine) enterIntent(ctx context.Context, snap Snapshot, intent Intent, input string) (Snapshot, []Effect, bool) {
	switch intent {
	case IntentFinancial:
		next, effects := e.enterFinancial(snap)
		return next, effects, true
	case IntentSocial:
		next, effects := e.enterSocial(snap)
		return next, effects, true
	case IntentStatus:
		next := snap.reset(State{Flow: FlowStatus, Phase: PhaseAskReference})
		return next, []Effect{e.text(snap, msgAskReference)}, true
	case IntentUnfreeze:
		next := snap.reset(State{Flow: FlowUnfreeze, Phase: PhaseAskAccount})
		return next, []Effect{e.text(snap, msgAskAccount)}, true
	case IntentOther:
		next := snap.reset(State{Flow: FlowOther})
		return next, []Effect{e.text(snap, e.answerQuery(ctx, input))}, true
	}
	return snap, nil, false
}

// enterFinancial creates a draft record classified as financial fraud and
// asks for the specific type.
func (e *Engine) enterFinancial(snap Snapshot) (Snapshot, []Effect) {
	id, err := e.records.Create(snap.SenderID, "A", "financial")
	if err != nil {
		return e.storeFailure(snap, err)
	}
	next := snap.reset(State{Flow: FlowComplaint, Phase: PhaseFinancialType}).
		setScratch(scratchRecordID, fmt.Sprint(id))
	return next, []Effect{selectionEffect(snap.SenderID, "Select the type of financial fraud:", flow.FinancialTypes)}
}

// enterSocial creates a draft record classified as social media fraud and
// asks for the platform.
func (e *Engine) enterSocial(snap Snapshot) (Snapshot, []Effect) {
	id, err := e.records.Create(snap.SenderID, "A", "social")
	if err != nil {
		return e.storeFailure(snap, err)
	}
	next := snap.reset(State{Flow: FlowComplaint, Phase: PhaseSocialPlatform}).
		setScratch(scratchRecordID, fmt.Sprint(id))
	return next, []Effect{selectionEffect(snap.SenderID, "Which platform is involved?", flow.SocialPlatforms)}
}

// --- menu ---

func (e *Engine) handleMenu(snap Snapshot, input string) (Snapshot, []Effect) {
	opt, ok := flow.MainMenu.Match(input)
	if !ok {
		// Containment: an open menu re-prompts instead of falling
		// through to the idle fallback.
		return snap, []Effect{menuEffect(snap.SenderID)}
	}

	switch opt.ID {
	case "A":
		id, err := e.records.Create(snap.SenderID, "A", "")
		if err != nil {
			return e.storeFailure(snap, err)
		}
		next := snap.reset(State{Flow: FlowComplaint, Phase: PhaseChooseCategory}).
			setScratch(scratchRecordID, fmt.Sprint(id))
		return next, []Effect{selectionEffect(snap.SenderID, msgChooseCategory, flow.ComplaintCategories)}
	case "B":
		next := snap.reset(State{Flow: FlowStatus, Phase: PhaseAskReference})
		return next, []Effect{e.text(snap, msgAskReference)}
	case "C":
		next := snap.reset(State{Flow: FlowUnfreeze, Phase: PhaseAskAccount})
		return next, []Effect{e.text(snap, msgAskAccount)}
	default: // "D"
		next := snap.reset(State{Flow: FlowOther})
		return next, []Effect{e.text(snap, msgOtherIntro)}
	}
}

// --- new complaint ---

func (e *Engine) handleComplaint(ctx context.Context, snap Snapshot, ev Event, input string) (Snapshot, []Effect) {
	switch snap.State.Phase {
	case PhaseChooseCategory:
		return e.chooseCategory(ctx, snap, input)
	case PhaseFinancialType:
		return e.chooseFromCatalog(snap, input, flow.FinancialTypes,
			"Select the type of financial fraud:", e.records.SetFraudType, e.startPersonalInfo)
	case PhaseSocialPlatform:
		return e.choosePlatform(snap, input)
	case PhaseSocialSubtype:
		return e.chooseSubtype(snap, input)
	case PhasePersonalInfo:
		return e.collectField(snap, ev, input, flow.PersonalInfo, e.startDocuments)
	case PhaseDocuments:
		return e.collectDocuments(snap, ev, input)
	}
	return snap.reset(Idle), []Effect{e.text(snap, msgSessionExpired)}
}

func (e *Engine) chooseCategory(ctx context.Context, snap Snapshot, input string) (Snapshot, []Effect) {
	opt, ok := flow.ComplaintCategories.Match(input)
	if !ok {
		// Graceful degradation: explain before re-showing the choice.
		effects := []Effect{}
		if clarify := e.clarify(ctx, input, msgChooseCategory); clarify != "" {
			effects = append(effects, e.text(snap, clarify))
		}
		effects = append(effects, selectionEffect(snap.SenderID, msgChooseCategory, flow.ComplaintCategories))
		return snap, effects
	}

	id := snap.recordID()
	switch opt.ID {
	case "1":
		if err := e.records.SetCategory(id, "financial"); err != nil {
			return e.storeFailure(snap, err)
		}
		next := snap.withState(State{Flow: FlowComplaint, Phase: PhaseFinancialType})
		return next, []Effect{selectionEffect(snap.SenderID, "Select the type of financial fraud:", flow.FinancialTypes)}
	default: // "2"
		if err := e.records.SetCategory(id, "social"); err != nil {
			return e.storeFailure(snap, err)
		}
		next := snap.withState(State{Flow: FlowComplaint, Phase: PhaseSocialPlatform})
		return next, []Effect{selectionEffect(snap.SenderID, "Which platform is involved?", flow.SocialPlatforms)}
	}
}

// chooseFromCatalog handles a selection state: a hit stores the chosen
// label and advances, a miss re-sends the same catalog without losing
// prior state.
func (e *Engine) chooseFromCatalog(snap Snapshot, input string, c flow.Catalog, body string,
	store func(uint, string) error, advance func(Snapshot) (Snapshot, []Effect)) (Snapshot, []Effect) {

	opt, ok := c.Match(input)
	if !ok {
		return snap, []Effect{selectionEffect(snap.SenderID, body, c)}
	}
	if err := store(snap.recordID(), opt.Label); err != nil {
		return e.storeFailure(snap, err)
	}
	return advance(snap)
}

func (e *Engine) choosePlatform(snap Snapshot, input string) (Snapshot, []Effect) {
	opt, ok := flow.SocialPlatforms.Match(input)
	if !ok {
		return snap, []Effect{selectionEffect(snap.SenderID, "Which platform is involved?", flow.SocialPlatforms)}
	}
	if err := e.records.SetFraudType(snap.recordID(), opt.Label); err != nil {
		return e.storeFailure(snap, err)
	}
	subtypes, ok := flow.SocialSubtypes(opt.ID)
	if !ok {
		return e.storeFailure(snap, fmt.Errorf("no subtype catalog for platform %q", opt.ID))
	}
	next := snap.withState(State{Flow: FlowComplaint, Phase: PhaseSocialSubtype}).
		setScratch(scratchPlatform, opt.ID)
	return next, []Effect{selectionEffect(snap.SenderID, "What happened on "+opt.Label+"?", subtypes)}
}

func (e *Engine) chooseSubtype(snap Snapshot, input string) (Snapshot, []Effect) {
	subtypes, ok := flow.SocialSubtypes(snap.Scratch[scratchPlatform])
	if !ok {
		return snap.reset(Idle), []Effect{e.text(snap, msgSessionExpired)}
	}
	opt, ok := subtypes.Match(input)
	if !ok {
		return snap, []Effect{selectionEffect(snap.SenderID, "What happened?", subtypes)}
	}
	if err := e.records.SetSubType(snap.recordID(), opt.Label); err != nil {
		return e.storeFailure(snap, err)
	}
	return e.startPersonalInfo(snap)
}

// startPersonalInfo begins the 11-field collection for a complaint.
func (e *Engine) startPersonalInfo(snap Snapshot) (Snapshot, []Effect) {
	next := snap.withState(State{Flow: FlowComplaint, Phase: PhasePersonalInfo, Step: 0})
	return next, []Effect{e.text(snap, firstFieldPrompt(flow.PersonalInfo))}
}

// startDocuments moves a complaint into the upload-collection phase.
func (e *Engine) startDocuments(snap Snapshot) (Snapshot, []Effect) {
	next := snap.withState(State{Flow: FlowComplaint, Phase: PhaseDocuments})
	return next, []Effect{documentsEffect(snap.SenderID, msgDocumentsIntro)}
}

// collectField walks a schema one answer at a time. A failed validation
// re-prompts the same field and mutates nothing; a valid answer is stored
// under its canonical field id and the index advances. Completing the
// schema hands off to done.
func (e *Engine) collectField(snap Snapshot, ev Event, input string, schema flow.Schema,
	done func(Snapshot) (Snapshot, []Effect)) (Snapshot, []Effect) {

	step := snap.State.Step
	if step >= len(schema) {
		return done(snap)
	}
	if ev.Kind == KindImage || !schema.Accepts(step, input) {
		return snap, []Effect{e.text(snap, fieldReprompt(schema, step))}
	}

	id := snap.recordID()
	if err := e.records.SetField(id, schema[step].ID, input); err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return snap.reset(Idle), []Effect{e.text(snap, msgSessionExpired)}
		}
		return e.storeFailure(snap, err)
	}

	if step+1 < len(schema) {
		st := snap.State
		st.Step = step + 1
		return snap.withState(st), []Effect{e.text(snap, fieldPrompt(schema, step+1))}
	}
	return done(snap)
}

func (e *Engine) collectDocuments(snap Snapshot, ev Event, input string) (Snapshot, []Effect) {
	if ev.Kind == KindImage {
		if ev.ImageRef == "" {
			return snap, []Effect{documentsEffect(snap.SenderID, msgDocumentsIntro)}
		}
		if err := e.records.AppendDocument(snap.recordID(), ev.ImageRef); err != nil {
			if errors.Is(err, record.ErrNotFound) {
				return snap.reset(Idle), []Effect{e.text(snap, msgSessionExpired)}
			}
			return e.storeFailure(snap, err)
		}
		return snap, []Effect{documentsEffect(snap.SenderID, msgDocumentReceived)}
	}

	switch strings.ToLower(input) {
	case "done":
		return e.finalize(snap, msgComplaintSubmitted)
	case "more":
		return snap, []Effect{e.text(snap, msgSendNextDocument)}
	default:
		return snap, []Effect{documentsEffect(snap.SenderID, msgDocumentsIntro)}
	}
}

// finalize runs the shared flow exit: assign the reference number and
// submitted status atomically, then request the report artifact, the ops
// notification and the user confirmation. The status guard makes a
// duplicate "done" a no-op instead of minting a second reference.
func (e *Engine) finalize(snap Snapshot, confirm func(string) string) (Snapshot, []Effect) {
	id := snap.recordID()
	rec, err := e.records.Get(id)
	if err != nil {
		return snap.reset(Idle), []Effect{e.text(snap, msgSessionExpired)}
	}
	if rec.Status == "submitted" {
		return snap.reset(Idle), []Effect{e.text(snap, msgAlreadySubmitted(rec.ReferenceNumber))}
	}

	ref, err := e.records.Finalize(id)
	if err != nil {
		if errors.Is(err, record.ErrAlreadySubmitted) {
			if rec2, err2 := e.records.Get(id); err2 == nil {
				return snap.reset(Idle), []Effect{e.text(snap, msgAlreadySubmitted(rec2.ReferenceNumber))}
			}
			return snap.reset(Idle), []Effect{e.text(snap, msgSessionExpired)}
		}
		return e.storeFailure(snap, err)
	}

	effects := []Effect{
		RenderReportEffect{RecordID: id},
		NotifyEffect{RecordID: id, Reference: ref, Category: categoryLabel(rec)},
		e.text(snap, confirm(ref)),
	}
	return snap.reset(Idle), effects
}

// --- status check ---

func (e *Engine) handleStatus(snap Snapshot, ev Event, input string) (Snapshot, []Effect) {
	switch snap.State.Phase {
	case PhaseAskReference:
		return e.askReference(snap, ev, input)
	case PhaseVerify:
		return e.collectVerify(snap, ev, input)
	}
	return snap.reset(Idle), []Effect{e.text(snap, msgSessionExpired)}
}

func (e *Engine) askReference(snap Snapshot, ev Event, input string) (Snapshot, []Effect) {
	if ev.Kind == KindImage {
		return snap, []Effect{e.text(snap, msgAskReference)}
	}

	var (
		rec *models.Complaint
		err error
	)
	switch {
	case record.MatchReference(input):
		rec, err = e.records.LatestByReference(input)
	case validate.Phone(input):
		rec, err = e.records.LatestByPhone(lastTenDigits(input))
	default:
		return snap, []Effect{e.text(snap, msgBadReference)}
	}

	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return snap.reset(Idle), []Effect{e.text(snap, msgNoComplaints)}
		}
		return e.storeFailure(snap, err)
	}

	next := snap.reset(State{Flow: FlowStatus, Phase: PhaseVerify, Step: 0}).
		setScratch(scratchRecordID, fmt.Sprint(rec.ID))
	return next, []Effect{
		e.text(snap, msgVerifyIntro),
		e.text(snap, fieldPrompt(flow.VerifyInfo, 0)),
	}
}

// collectVerify walks the verification subset, storing answers in scratch
// only — the looked-up record is never mutated by a status check.
func (e *Engine) collectVerify(snap Snapshot, ev Event, input string) (Snapshot, []Effect) {
	schema := flow.VerifyInfo
	step := snap.State.Step
	if ev.Kind == KindImage || !schema.Accepts(step, input) {
		return snap, []Effect{e.text(snap, fieldReprompt(schema, step))}
	}

	next := snap.setScratch(scratchVerify+fmt.Sprint(step), input)
	if step+1 < len(schema) {
		next = next.withState(State{Flow: FlowStatus, Phase: PhaseVerify, Step: step + 1})
		return next, []Effect{e.text(snap, fieldPrompt(schema, step+1))}
	}

	rec, err := e.records.Get(next.recordID())
	if err != nil {
		return next.reset(Idle), []Effect{e.text(snap, msgSessionExpired)}
	}
	if !verifyMatches(rec, next.Scratch) {
		return next.reset(Idle), []Effect{e.text(snap, msgVerifyFailed)}
	}

	ref := rec.ReferenceNumber
	if ref == "" {
		ref = fmt.Sprintf("#%d (draft)", rec.ID)
	}
	report := msgStatusReport(ref, rec.Status, categoryLabel(rec), rec.CreatedAt.Format("02/01/2006"))
	return next.reset(Idle), []Effect{e.text(snap, report)}
}

// verifyMatches compares the collected verification answers against the
// record: name case-insensitively, date of birth across the accepted
// formats, phone by its last ten digits.
func verifyMatches(rec *models.Complaint, scratch map[string]string) bool {
	name := strings.TrimSpace(scratch[scratchVerify+"0"])
	dob := canonicalDOB(scratch[scratchVerify+"1"])
	phone := lastTenDigits(scratch[scratchVerify+"2"])
	return strings.EqualFold(name, strings.TrimSpace(rec.Name)) &&
		dob == canonicalDOB(rec.DateOfBirth) &&
		phone != "" && phone == lastTenDigits(rec.PhoneNumber)
}

// canonicalDOB renders the three accepted date formats as DD/MM/YYYY so
// a record filed in one format verifies in another. Anything else is
// returned trimmed and compares exactly.
func canonicalDOB(s string) string {
	s = strings.TrimSpace(s)
	if len(s) != 10 {
		return s
	}
	switch {
	case s[2] == '/' && s[5] == '/':
		return s
	case s[2] == '-' && s[5] == '-':
		return s[:2] + "/" + s[3:5] + "/" + s[6:]
	case s[4] == '-' && s[7] == '-':
		return s[8:] + "/" + s[5:7] + "/" + s[:4]
	}
	return s
}

// --- account unfreeze ---

func (e *Engine) handleUnfreeze(snap Snapshot, ev Event, input string) (Snapshot, []Effect) {
	switch snap.State.Phase {
	case PhaseAskAccount:
		if ev.Kind == KindImage || input == "" {
			return snap, []Effect{e.text(snap, msgAskAccount)}
		}
		id, err := e.records.Create(snap.SenderID, "C", "account_unfreeze")
		if err != nil {
			return e.storeFailure(snap, err)
		}
		if err := e.records.SetAccountNumber(id, input); err != nil {
			return e.storeFailure(snap, err)
		}
		next := snap.reset(State{Flow: FlowUnfreeze, Phase: PhasePersonalInfo, Step: 0}).
			setScratch(scratchRecordID, fmt.Sprint(id))
		return next, []Effect{e.text(snap, "Account Number: "+input+"\n\n"+firstFieldPrompt(flow.UnfreezeInfo))}
	case PhasePersonalInfo:
		return e.collectField(snap, ev, input, flow.UnfreezeInfo, func(s Snapshot) (Snapshot, []Effect) {
			return e.finalize(s, msgUnfreezeSubmitted)
		})
	}
	return snap.reset(Idle), []Effect{e.text(snap, msgSessionExpired)}
}

// --- other queries ---

func (e *Engine) handleOther(ctx context.Context, snap Snapshot, input string) (Snapshot, []Effect) {
	return snap, []Effect{e.text(snap, e.answerQuery(ctx, input))}
}

// --- helpers ---

func (e *Engine) text(snap Snapshot, body string) Effect {
	return TextEffect{To: snap.SenderID, Body: body}
}

// storeFailure degrades an unexpected store error into a restart message.
func (e *Engine) storeFailure(snap Snapshot, err error) (Snapshot, []Effect) {
	log.Printf("conversation: store failure for %s: %v", snap.SenderID, err)
	return snap.reset(Idle), []Effect{e.text(snap, msgInternalError)}
}

// answerQuery asks the responder, falling back to canned guidance when it
// is unavailable or fails.
func (e *Engine) answerQuery(ctx context.Context, input string) string {
	if e.responder == nil {
		return msgOtherFallback
	}
	answer, err := e.responder.AnswerQuery(ctx, input)
	if err != nil || strings.TrimSpace(answer) == "" {
		if err != nil {
			log.Printf("conversation: answer query: %v", err)
		}
		return msgOtherFallback
	}
	return answer
}

// clarify asks the responder to explain an unrecognized selection.
// Empty result means skip the clarification text.
func (e *Engine) clarify(ctx context.Context, input, prompt string) string {
	if e.responder == nil {
		return ""
	}
	answer, err := e.responder.ClarifySelection(ctx, input, prompt)
	if err != nil {
		log.Printf("conversation: clarify selection: %v", err)
		return ""
	}
	return strings.TrimSpace(answer)
}

// categoryLabel renders the record classification for messages.
func categoryLabel(rec *models.Complaint) string {
	label := rec.MainCategory
	if label == "" {
		label = rec.ComplaintType
	}
	if rec.FraudType != "" {
		label += " / " + rec.FraudType
	}
	if rec.SubType != "" {
		label += " / " + rec.SubType
	}
	return label
}

// lastTenDigits strips everything but digits and returns the last ten,
// or empty when fewer remain.
func lastTenDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if len(d) < 10 {
		return ""
	}
	return d[len(d)-10:]
}
