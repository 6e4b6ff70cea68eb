package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/helpline1930/helpline/internal/flow"
	"github.com/helpline1930/helpline/internal/models"
	"github.com/helpline1930/helpline/internal/record"
)

// memRecords is an in-memory RecordStore for engine tests.
type memRecords struct {
	nextID uint
	recs   map[uint]*models.Complaint
}

func newMemRecords() *memRecords {
	return &memRecords{recs: map[uint]*models.Complaint{}}
}

func (m *memRecords) Create(senderID, complaintType, mainCategory string) (uint, error) {
	m.nextID++
	m.recs[m.nextID] = &models.Complaint{
		ID:            m.nextID,
		WaID:          senderID,
		ComplaintType: complaintType,
		MainCategory:  mainCategory,
		Status:        "draft",
		Documents:     "[]",
		CreatedAt:     time.Date(2025, 11, 5, 10, 0, 0, 0, time.UTC),
	}
	return m.nextID, nil
}

func (m *memRecords) Get(id uint) (*models.Complaint, error) {
	rec, ok := m.recs[id]
	if !ok {
		return nil, record.ErrNotFound
	}
	copy := *rec
	return &copy, nil
}

func (m *memRecords) mutate(id uint, f func(*models.Complaint)) error {
	rec, ok := m.recs[id]
	if !ok {
		return record.ErrNotFound
	}
	f(rec)
	return nil
}

func (m *memRecords) SetCategory(id uint, v string) error {
	return m.mutate(id, func(c *models.Complaint) { c.MainCategory = v })
}
func (m *memRecords) SetFraudType(id uint, v string) error {
	return m.mutate(id, func(c *models.Complaint) { c.FraudType = v })
}
func (m *memRecords) SetSubType(id uint, v string) error {
	return m.mutate(id, func(c *models.Complaint) { c.SubType = v })
}
func (m *memRecords) SetAccountNumber(id uint, v string) error {
	return m.mutate(id, func(c *models.Complaint) { c.AccountNumber = v })
}

func (m *memRecords) SetField(id uint, field flow.FieldID, value string) error {
	return m.mutate(id, func(c *models.Complaint) {
		switch field {
		case flow.FieldName:
			c.Name = value
		case flow.FieldGuardianName:
			c.FatherSpouseGuardianName = value
		case flow.FieldDateOfBirth:
			c.DateOfBirth = value
		case flow.FieldPhoneNumber:
			c.PhoneNumber = value
		case flow.FieldEmailID:
			c.EmailID = value
		case flow.FieldGender:
			c.Gender = value
		case flow.FieldVillage:
			c.Village = value
		case flow.FieldPostOffice:
			c.PostOffice = value
		case flow.FieldPoliceStation:
			c.PoliceStation = value
		case flow.FieldDistrict:
			c.District = value
		case flow.FieldPinCode:
			c.PinCode = value
		}
	})
}

func (m *memRecords) AppendDocument(id uint, ref string) error {
	return m.mutate(id, func(c *models.Complaint) {
		docs := record.DecodeDocuments(c.Documents)
		docs = append(docs, ref)
		encoded, _ := json.Marshal(docs)
		c.Documents = string(encoded)
	})
}

func (m *memRecords) Finalize(id uint) (string, error) {
	rec, ok := m.recs[id]
	if !ok {
		return "", record.ErrNotFound
	}
	if rec.Status == "submitted" {
		return "", record.ErrAlreadySubmitted
	}
	rec.ReferenceNumber = record.FormatReference(rec.ID, rec.CreatedAt)
	rec.Status = "submitted"
	return rec.ReferenceNumber, nil
}

func (m *memRecords) LatestByReference(ref string) (*models.Complaint, error) {
	want := record.NormalizeReference(ref)
	var best *models.Complaint
	for _, rec := range m.recs {
		if rec.ReferenceNumber == want && (best == nil || rec.ID > best.ID) {
			best = rec
		}
	}
	if best == nil {
		return nil, record.ErrNotFound
	}
	copy := *best
	return &copy, nil
}

func (m *memRecords) LatestByPhone(phone string) (*models.Complaint, error) {
	var best *models.Complaint
	for _, rec := range m.recs {
		if strings.HasSuffix(rec.PhoneNumber, phone) && rec.PhoneNumber != "" &&
			(best == nil || rec.ID > best.ID) {
			best = rec
		}
	}
	if best == nil {
		return nil, record.ErrNotFound
	}
	copy := *best
	return &copy, nil
}

// fakeClassifier returns a fixed intent/confidence.
type fakeClassifier struct {
	intent     Intent
	confidence float64
	err        error
}

func (f *fakeClassifier) DetectIntent(ctx context.Context, text string) (Intent, float64, error) {
	return f.intent, f.confidence, f.err
}

// fakeResponder returns canned answers.
type fakeResponder struct {
	answer  string
	clarify string
}

func (f *fakeResponder) AnswerQuery(ctx context.Context, text string) (string, error) {
	return f.answer, nil
}
func (f *fakeResponder) ClarifySelection(ctx context.Context, text, prompt string) (string, error) {
	return f.clarify, nil
}

func newTestEngine(t *testing.T, records RecordStore) *Engine {
	t.Helper()
	e, err := NewEngine(EngineOpts{Records: records})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

const sender = "919999900001"

func textEvent(text string) Event {
	return Event{SenderID: sender, Kind: KindText, Text: text}
}

func imageEvent(ref string) Event {
	return Event{SenderID: sender, Kind: KindImage, ImageRef: ref}
}

// lastText returns the body of the last TextEffect in effects.
func lastText(t *testing.T, effects []Effect) string {
	t.Helper()
	for i := len(effects) - 1; i >= 0; i-- {
		if te, ok := effects[i].(TextEffect); ok {
			return te.Body
		}
	}
	t.Fatalf("no TextEffect in %v", effects)
	return ""
}

// --- idle and menu entry ---

func TestGreeting_AlwaysOpensMenuWithClearedScratch(t *testing.T) {
	e := newTestEngine(t, newMemRecords())
	ctx := context.Background()

	from := []Snapshot{
		NewSnapshot(sender),
		NewSnapshot(sender).withState(State{Flow: FlowMenu}),
		NewSnapshot(sender).withState(State{Flow: FlowComplaint, Phase: PhasePersonalInfo, Step: 5}).
			setScratch(scratchRecordID, "42"),
		NewSnapshot(sender).withState(State{Flow: FlowComplaint, Phase: PhaseDocuments}).
			setScratch(scratchRecordID, "42"),
		NewSnapshot(sender).withState(State{Flow: FlowStatus, Phase: PhaseAskReference}),
	}
	for _, snap := range from {
		for _, token := range []string{"start", "MENU", "hi", "Hello", "help"} {
			next, effects := e.Handle(ctx, snap, textEvent(token))
			if next.State.Flow != FlowMenu {
				t.Errorf("from %s on %q: flow = %s, want menu", snap.State, token, next.State.Flow)
			}
			if len(next.Scratch) != 0 {
				t.Errorf("from %s on %q: scratch not cleared: %v", snap.State, token, next.Scratch)
			}
			if len(effects) != 1 {
				t.Fatalf("from %s on %q: %d effects, want 1", snap.State, token, len(effects))
			}
			if _, ok := effects[0].(ListEffect); !ok {
				t.Errorf("from %s on %q: effect %T, want ListEffect", snap.State, token, effects[0])
			}
		}
	}
}

func TestIdle_UnrecognizedWithoutClassifier(t *testing.T) {
	e := newTestEngine(t, newMemRecords())
	snap := NewSnapshot(sender)

	next, effects := e.Handle(context.Background(), snap, textEvent("my account got hacked"))
	if next.State != Idle {
		t.Errorf("state = %s, want idle", next.State)
	}
	if got := lastText(t, effects); got != msgIdleFallback {
		t.Errorf("reply = %q, want fallback", got)
	}
}

func TestIdle_ClassifierRoutesFinancial(t *testing.T) {
	records := newMemRecords()
	e, err := NewEngine(EngineOpts{
		Records:    records,
		Classifier: &fakeClassifier{intent: IntentFinancial, confidence: 0.9},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	next, effects := e.Handle(context.Background(), NewSnapshot(sender), textEvent("I got scammed on UPI"))
	if next.State != (State{Flow: FlowComplaint, Phase: PhaseFinancialType}) {
		t.Fatalf("state = %s, want new_complaint:financial_type", next.State)
	}
	rec, err := records.Get(next.recordID())
	if err != nil {
		t.Fatalf("record not created: %v", err)
	}
	if rec.MainCategory != "financial" || rec.ComplaintType != "A" {
		t.Errorf("record classification = %q/%q", rec.ComplaintType, rec.MainCategory)
	}
	if _, ok := effects[0].(ListEffect); !ok {
		t.Errorf("effect %T, want ListEffect with the 23 types", effects[0])
	}
}

func TestIdle_ClassifierBelowThresholdStaysIdle(t *testing.T) {
	records := newMemRecords()
	e, _ := NewEngine(EngineOpts{
		Records:    records,
		Classifier: &fakeClassifier{intent: IntentFinancial, confidence: 0.4},
	})

	next, effects := e.Handle(context.Background(), NewSnapshot(sender), textEvent("hm"))
	if next.State != Idle {
		t.Errorf("state = %s, want idle", next.State)
	}
	if got := lastText(t, effects); got != msgIdleFallback {
		t.Errorf("reply = %q, want fallback", got)
	}
	if len(records.recs) != 0 {
		t.Error("no record should be created below the threshold")
	}
}

func TestMenu_Containment(t *testing.T) {
	e := newTestEngine(t, newMemRecords())
	snap := NewSnapshot(sender).withState(State{Flow: FlowMenu})

	next, effects := e.Handle(context.Background(), snap, textEvent("what is this"))
	if next.State.Flow != FlowMenu {
		t.Errorf("state = %s, want menu (containment)", next.State)
	}
	if _, ok := effects[0].(ListEffect); !ok {
		t.Errorf("effect %T, want the menu list again", effects[0])
	}
}

func TestMenu_OptionA_CreatesDraft(t *testing.T) {
	records := newMemRecords()
	e := newTestEngine(t, records)
	snap := NewSnapshot(sender).withState(State{Flow: FlowMenu})

	next, _ := e.Handle(context.Background(), snap, textEvent("A"))
	if next.State != (State{Flow: FlowComplaint, Phase: PhaseChooseCategory}) {
		t.Fatalf("state = %s, want new_complaint:choose_category", next.State)
	}
	rec, err := records.Get(next.recordID())
	if err != nil {
		t.Fatalf("draft record not created: %v", err)
	}
	if rec.Status != "draft" {
		t.Errorf("status = %q, want draft", rec.Status)
	}
}

// --- category and catalog selection ---

func startedComplaint(t *testing.T, e *Engine, records *memRecords) Snapshot {
	t.Helper()
	snap := NewSnapshot(sender).withState(State{Flow: FlowMenu})
	snap, _ = e.Handle(context.Background(), snap, textEvent("A"))
	return snap
}

func TestChooseCategory_MissGoesThroughClarifier(t *testing.T) {
	records := newMemRecords()
	e, _ := NewEngine(EngineOpts{
		Records:   records,
		Responder: &fakeResponder{clarify: "I didn't catch that — pick one of the two options."},
	})
	snap := startedComplaint(t, e, records)

	next, effects := e.Handle(context.Background(), snap, textEvent("banana"))
	if next.State != snap.State {
		t.Errorf("state changed on catalog miss: %s", next.State)
	}
	if len(effects) != 2 {
		t.Fatalf("%d effects, want clarification + re-shown choice", len(effects))
	}
	if te, ok := effects[0].(TextEffect); !ok || !strings.Contains(te.Body, "didn't catch") {
		t.Errorf("first effect = %#v, want clarification text", effects[0])
	}
	if _, ok := effects[1].(ButtonsEffect); !ok {
		t.Errorf("second effect = %T, want the category buttons again", effects[1])
	}
}

func TestDualSelectionAcceptance(t *testing.T) {
	ctx := context.Background()
	for _, input := range []string{"3", "UPI Fraud", "upi fraud"} {
		records := newMemRecords()
		e := newTestEngine(t, records)
		snap := startedComplaint(t, e, records)
		snap, _ = e.Handle(ctx, snap, textEvent("1")) // financial

		next, _ := e.Handle(ctx, snap, textEvent(input))
		if next.State != (State{Flow: FlowComplaint, Phase: PhasePersonalInfo, Step: 0}) {
			t.Errorf("input %q: state = %s, want personal_info:0", input, next.State)
		}
		rec, _ := records.Get(next.recordID())
		if rec.FraudType != "UPI Fraud" {
			t.Errorf("input %q: FraudType = %q, want UPI Fraud", input, rec.FraudType)
		}
	}
}

func TestFinancialType_MissKeepsCategory(t *testing.T) {
	records := newMemRecords()
	e := newTestEngine(t, records)
	snap := startedComplaint(t, e, records)
	snap, _ = e.Handle(context.Background(), snap, textEvent("1"))

	next, effects := e.Handle(context.Background(), snap, textEvent("999"))
	if next.State != snap.State {
		t.Errorf("state = %s, want unchanged financial_type", next.State)
	}
	if _, ok := effects[0].(ListEffect); !ok {
		t.Errorf("effect %T, want the same catalog re-sent", effects[0])
	}
	rec, _ := records.Get(next.recordID())
	if rec.MainCategory != "financial" {
		t.Errorf("category lost on miss: %q", rec.MainCategory)
	}
}

func TestSocialFlow_PlatformThenSubtype(t *testing.T) {
	ctx := context.Background()
	records := newMemRecords()
	e := newTestEngine(t, records)
	snap := startedComplaint(t, e, records)

	snap, _ = e.Handle(ctx, snap, textEvent("2")) // social
	if snap.State.Phase != PhaseSocialPlatform {
		t.Fatalf("state = %s, want social_platform", snap.State)
	}
	snap, _ = e.Handle(ctx, snap, textEvent("whatsapp"))
	if snap.State.Phase != PhaseSocialSubtype {
		t.Fatalf("state = %s, want social_subtype", snap.State)
	}
	snap, _ = e.Handle(ctx, snap, textEvent("hack"))
	if snap.State.Phase != PhasePersonalInfo || snap.State.Step != 0 {
		t.Fatalf("state = %s, want personal_info:0", snap.State)
	}

	rec, _ := records.Get(snap.recordID())
	if rec.FraudType != "WhatsApp" {
		t.Errorf("FraudType = %q, want WhatsApp", rec.FraudType)
	}
	if rec.SubType != "Hacked Account" {
		t.Errorf("SubType = %q, want Hacked Account", rec.SubType)
	}
}

// --- personal info collection ---

var validAnswers = []string{
	"Asha Patel",
	"Ramesh Patel",
	"12/08/1992",
	"9876543210",
	"asha@example.com",
	"Female",
	"Balianta",
	"Balianta PO",
	"Balianta PS",
	"Khordha",
	"751001",
}

func atPersonalInfo(t *testing.T, e *Engine, records *memRecords) Snapshot {
	t.Helper()
	ctx := context.Background()
	snap := startedComplaint(t, e, records)
	snap, _ = e.Handle(ctx, snap, textEvent("1"))
	snap, _ = e.Handle(ctx, snap, textEvent("3"))
	if snap.State.Phase != PhasePersonalInfo {
		t.Fatalf("setup: state = %s", snap.State)
	}
	return snap
}

func TestPersonalInfo_MonotonicCollection(t *testing.T) {
	records := newMemRecords()
	e := newTestEngine(t, records)
	snap := atPersonalInfo(t, e, records)
	ctx := context.Background()

	for i, answer := range validAnswers {
		if snap.State.Step != i {
			t.Fatalf("before answer %d: step = %d", i, snap.State.Step)
		}
		snap, _ = e.Handle(ctx, snap, textEvent(answer))
	}
	if snap.State.Phase != PhaseDocuments {
		t.Fatalf("after %d answers: state = %s, want documents", len(validAnswers), snap.State)
	}

	rec, _ := records.Get(snap.recordID())
	if rec.Name != "Asha Patel" || rec.PinCode != "751001" || rec.EmailID != "asha@example.com" {
		t.Errorf("fields not stored: %+v", rec)
	}
}

func TestPersonalInfo_FewerAnswersNeverExit(t *testing.T) {
	records := newMemRecords()
	e := newTestEngine(t, records)
	snap := atPersonalInfo(t, e, records)
	ctx := context.Background()

	for _, answer := range validAnswers[:len(validAnswers)-1] {
		snap, _ = e.Handle(ctx, snap, textEvent(answer))
	}
	if snap.State.Phase != PhasePersonalInfo {
		t.Errorf("state = %s, want still personal_info", snap.State)
	}
	if snap.State.Step != len(validAnswers)-1 {
		t.Errorf("step = %d, want %d", snap.State.Step, len(validAnswers)-1)
	}
}

func TestPersonalInfo_NoMutationOnInvalid(t *testing.T) {
	records := newMemRecords()
	e := newTestEngine(t, records)
	snap := atPersonalInfo(t, e, records)
	ctx := context.Background()

	// Answer up to the phone field (index 3), then fail it twice.
	for _, answer := range validAnswers[:3] {
		snap, _ = e.Handle(ctx, snap, textEvent(answer))
	}
	before, _ := records.Get(snap.recordID())

	for i := 0; i < 2; i++ {
		var effects []Effect
		snap, effects = e.Handle(ctx, snap, textEvent("not-a-phone"))
		if snap.State.Step != 3 {
			t.Fatalf("step = %d, want 3 (unchanged)", snap.State.Step)
		}
		if got := lastText(t, effects); !strings.Contains(got, "Invalid phone number") {
			t.Errorf("reprompt = %q, want the phone-specific message", got)
		}
	}

	after, _ := records.Get(snap.recordID())
	if *after != *before {
		t.Errorf("record mutated on invalid input:\nbefore %+v\nafter  %+v", before, after)
	}
	if after.PhoneNumber != "" {
		t.Errorf("PhoneNumber = %q, want empty", after.PhoneNumber)
	}
}

func TestPersonalInfo_ImageReprompts(t *testing.T) {
	records := newMemRecords()
	e := newTestEngine(t, records)
	snap := atPersonalInfo(t, e, records)

	next, _ := e.Handle(context.Background(), snap, imageEvent("/media/x.jpg"))
	if next.State != snap.State {
		t.Errorf("state = %s, want unchanged", next.State)
	}
}

// --- documents and finalization ---

func atDocuments(t *testing.T, e *Engine, records *memRecords) Snapshot {
	t.Helper()
	snap := atPersonalInfo(t, e, records)
	ctx := context.Background()
	for _, answer := range validAnswers {
		snap, _ = e.Handle(ctx, snap, textEvent(answer))
	}
	if snap.State.Phase != PhaseDocuments {
		t.Fatalf("setup: state = %s", snap.State)
	}
	return snap
}

func TestDocuments_AppendPreservesOrder(t *testing.T) {
	records := newMemRecords()
	e := newTestEngine(t, records)
	snap := atDocuments(t, e, records)
	ctx := context.Background()

	for _, ref := range []string{"/media/a.jpg", "/media/b.jpg", "/media/c.jpg"} {
		var effects []Effect
		snap, effects = e.Handle(ctx, snap, imageEvent(ref))
		if snap.State.Phase != PhaseDocuments {
			t.Fatalf("state = %s, want still documents", snap.State)
		}
		if _, ok := effects[0].(ButtonsEffect); !ok {
			t.Errorf("effect %T, want the done/send-more choice", effects[0])
		}
	}

	rec, _ := records.Get(snap.recordID())
	docs := record.DecodeDocuments(rec.Documents)
	want := []string{"/media/a.jpg", "/media/b.jpg", "/media/c.jpg"}
	if fmt.Sprint(docs) != fmt.Sprint(want) {
		t.Errorf("documents = %v, want %v", docs, want)
	}
}

func TestDocuments_UnrelatedInputLosesNothing(t *testing.T) {
	records := newMemRecords()
	e := newTestEngine(t, records)
	snap := atDocuments(t, e, records)
	ctx := context.Background()

	snap, _ = e.Handle(ctx, snap, imageEvent("/media/a.jpg"))
	next, effects := e.Handle(ctx, snap, textEvent("is this enough?"))
	if next.State != snap.State {
		t.Errorf("state = %s, want unchanged", next.State)
	}
	if _, ok := effects[0].(ButtonsEffect); !ok {
		t.Errorf("effect %T, want done/send-more re-shown", effects[0])
	}
	rec, _ := records.Get(next.recordID())
	if n := len(record.DecodeDocuments(rec.Documents)); n != 1 {
		t.Errorf("document count = %d, want 1", n)
	}
}

var refPattern = regexp.MustCompile(`^ODCC-\d{8}-\d{5}$`)

func TestFinalize_Done(t *testing.T) {
	records := newMemRecords()
	e := newTestEngine(t, records)
	snap := atDocuments(t, e, records)
	id := snap.recordID()

	next, effects := e.Handle(context.Background(), snap, textEvent("done"))
	if next.State != Idle {
		t.Errorf("state = %s, want idle", next.State)
	}
	if len(next.Scratch) != 0 {
		t.Errorf("scratch not cleared: %v", next.Scratch)
	}

	rec, _ := records.Get(id)
	if rec.Status != "submitted" {
		t.Errorf("status = %q, want submitted", rec.Status)
	}
	if !refPattern.MatchString(rec.ReferenceNumber) {
		t.Errorf("reference = %q, want ODCC-YYYYMMDD-NNNNN", rec.ReferenceNumber)
	}

	var sawRender, sawNotify bool
	for _, eff := range effects {
		switch v := eff.(type) {
		case RenderReportEffect:
			sawRender = v.RecordID == id
		case NotifyEffect:
			sawNotify = v.Reference == rec.ReferenceNumber
		}
	}
	if !sawRender || !sawNotify {
		t.Errorf("effects missing render/notify: %v", effects)
	}
	if got := lastText(t, effects); !strings.Contains(got, rec.ReferenceNumber) {
		t.Errorf("confirmation %q does not carry the reference", got)
	}
}

func TestFinalize_SecondDoneIsNoOp(t *testing.T) {
	records := newMemRecords()
	e := newTestEngine(t, records)
	snap := atDocuments(t, e, records)
	id := snap.recordID()
	ctx := context.Background()

	_, _ = e.Handle(ctx, snap, textEvent("done"))
	first, _ := records.Get(id)

	// A duplicate "done" racing in with the stale documents snapshot.
	next, effects := e.Handle(ctx, snap, textEvent("done"))
	second, _ := records.Get(id)
	if second.ReferenceNumber != first.ReferenceNumber {
		t.Errorf("reference changed: %q -> %q", first.ReferenceNumber, second.ReferenceNumber)
	}
	if next.State != Idle {
		t.Errorf("state = %s, want idle", next.State)
	}
	for _, eff := range effects {
		if _, ok := eff.(RenderReportEffect); ok {
			t.Error("second done must not re-render the report")
		}
	}
	if got := lastText(t, effects); !strings.Contains(got, first.ReferenceNumber) {
		t.Errorf("reply %q should repeat the existing reference", got)
	}
}

// --- status check ---

func submittedComplaint(t *testing.T, records *memRecords) *models.Complaint {
	t.Helper()
	id, _ := records.Create(sender, "A", "financial")
	records.SetFraudType(id, "UPI Fraud")
	records.SetField(id, flow.FieldName, "Asha Patel")
	records.SetField(id, flow.FieldDateOfBirth, "12/08/1992")
	records.SetField(id, flow.FieldPhoneNumber, "+919876543210")
	if _, err := records.Finalize(id); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	rec, _ := records.Get(id)
	return rec
}

func TestStatus_BadInputReprompts(t *testing.T) {
	e := newTestEngine(t, newMemRecords())
	snap := NewSnapshot(sender).withState(State{Flow: FlowStatus, Phase: PhaseAskReference})

	next, effects := e.Handle(context.Background(), snap, textEvent("what?"))
	if next.State != snap.State {
		t.Errorf("state = %s, want unchanged", next.State)
	}
	if got := lastText(t, effects); !strings.Contains(got, "reference number or a phone number") {
		t.Errorf("reply = %q", got)
	}
}

func TestStatus_NoMatchResetsIdle(t *testing.T) {
	e := newTestEngine(t, newMemRecords())
	snap := NewSnapshot(sender).withState(State{Flow: FlowStatus, Phase: PhaseAskReference})

	next, effects := e.Handle(context.Background(), snap, textEvent("ODCC-20251105-00042"))
	if next.State != Idle {
		t.Errorf("state = %s, want idle", next.State)
	}
	if got := lastText(t, effects); got != msgNoComplaints {
		t.Errorf("reply = %q, want no-complaints message", got)
	}
}

func TestStatus_VerifyAndDisclose(t *testing.T) {
	records := newMemRecords()
	rec := submittedComplaint(t, records)
	e := newTestEngine(t, records)
	ctx := context.Background()

	snap := NewSnapshot(sender).withState(State{Flow: FlowStatus, Phase: PhaseAskReference})
	snap, _ = e.Handle(ctx, snap, textEvent(strings.ToLower(rec.ReferenceNumber)))
	if snap.State != (State{Flow: FlowStatus, Phase: PhaseVerify, Step: 0}) {
		t.Fatalf("state = %s, want verify:0", snap.State)
	}

	snap, _ = e.Handle(ctx, snap, textEvent("asha patel")) // case-insensitive
	snap, _ = e.Handle(ctx, snap, textEvent("12/08/1992"))
	var effects []Effect
	snap, effects = e.Handle(ctx, snap, textEvent("9876543210")) // without country code

	if snap.State != Idle {
		t.Errorf("state = %s, want idle after disclosure", snap.State)
	}
	got := lastText(t, effects)
	if !strings.Contains(got, rec.ReferenceNumber) || !strings.Contains(got, "submitted") {
		t.Errorf("status report = %q", got)
	}
}

func TestStatus_VerifyAcrossDateFormats(t *testing.T) {
	// Filed with 12/08/1992; all three accepted formats must verify.
	for _, dob := range []string{"12/08/1992", "12-08-1992", "1992-08-12"} {
		records := newMemRecords()
		rec := submittedComplaint(t, records)
		e := newTestEngine(t, records)
		ctx := context.Background()

		snap := NewSnapshot(sender).withState(State{Flow: FlowStatus, Phase: PhaseAskReference})
		snap, _ = e.Handle(ctx, snap, textEvent(rec.ReferenceNumber))
		snap, _ = e.Handle(ctx, snap, textEvent("Asha Patel"))
		snap, _ = e.Handle(ctx, snap, textEvent(dob))
		var effects []Effect
		snap, effects = e.Handle(ctx, snap, textEvent("9876543210"))

		if snap.State != Idle {
			t.Errorf("dob %q: state = %s, want idle after disclosure", dob, snap.State)
		}
		if got := lastText(t, effects); !strings.Contains(got, rec.ReferenceNumber) {
			t.Errorf("dob %q: reply = %q, want the status report", dob, got)
		}
	}
}

func TestStatus_LookupByPhone(t *testing.T) {
	records := newMemRecords()
	_ = submittedComplaint(t, records)
	e := newTestEngine(t, records)

	snap := NewSnapshot(sender).withState(State{Flow: FlowStatus, Phase: PhaseAskReference})
	next, _ := e.Handle(context.Background(), snap, textEvent("98765 43210"))
	if next.State.Phase != PhaseVerify {
		t.Errorf("state = %s, want verify", next.State)
	}
}

func TestStatus_VerifyMismatchDeniesDisclosure(t *testing.T) {
	records := newMemRecords()
	rec := submittedComplaint(t, records)
	e := newTestEngine(t, records)
	ctx := context.Background()

	snap := NewSnapshot(sender).withState(State{Flow: FlowStatus, Phase: PhaseAskReference})
	snap, _ = e.Handle(ctx, snap, textEvent(rec.ReferenceNumber))
	snap, _ = e.Handle(ctx, snap, textEvent("Somebody Else"))
	snap, _ = e.Handle(ctx, snap, textEvent("12/08/1992"))
	var effects []Effect
	snap, effects = e.Handle(ctx, snap, textEvent("9876543210"))

	if snap.State != Idle {
		t.Errorf("state = %s, want idle", snap.State)
	}
	got := lastText(t, effects)
	if strings.Contains(got, rec.ReferenceNumber) {
		t.Errorf("status disclosed despite mismatch: %q", got)
	}
	if !strings.Contains(got, "don't match") {
		t.Errorf("reply = %q, want verification failure", got)
	}
}

// --- account unfreeze ---

func TestUnfreeze_EndToEnd(t *testing.T) {
	records := newMemRecords()
	e := newTestEngine(t, records)
	ctx := context.Background()

	snap := NewSnapshot(sender).withState(State{Flow: FlowMenu})
	snap, _ = e.Handle(ctx, snap, textEvent("C"))
	if snap.State != (State{Flow: FlowUnfreeze, Phase: PhaseAskAccount}) {
		t.Fatalf("state = %s, want ask_account", snap.State)
	}

	snap, effects := e.Handle(ctx, snap, textEvent("304502011234"))
	if snap.State != (State{Flow: FlowUnfreeze, Phase: PhasePersonalInfo, Step: 0}) {
		t.Fatalf("state = %s, want personal_info:0", snap.State)
	}
	if got := lastText(t, effects); !strings.Contains(got, "304502011234") {
		t.Errorf("reply %q should echo the account number", got)
	}

	for _, answer := range validAnswers[:6] {
		snap, effects = e.Handle(ctx, snap, textEvent(answer))
	}
	if snap.State != Idle {
		t.Fatalf("state = %s, want idle after finalize", snap.State)
	}

	rec, _ := records.Get(1)
	if rec.ComplaintType != "C" || rec.AccountNumber != "304502011234" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Status != "submitted" || !refPattern.MatchString(rec.ReferenceNumber) {
		t.Errorf("finalization incomplete: %+v", rec)
	}
	if got := lastText(t, effects); !strings.Contains(got, "Unfreeze") {
		t.Errorf("confirmation = %q", got)
	}
}

// --- other queries ---

func TestOtherQuery_OnlyStartOrMenuExits(t *testing.T) {
	e, _ := NewEngine(EngineOpts{
		Records:   newMemRecords(),
		Responder: &fakeResponder{answer: "You can report that by choosing option A."},
	})
	ctx := context.Background()
	snap := NewSnapshot(sender).withState(State{Flow: FlowOther})

	// "hi" is a question here, not an exit.
	next, effects := e.Handle(ctx, snap, textEvent("hi"))
	if next.State.Flow != FlowOther {
		t.Errorf("state = %s, want other_query", next.State)
	}
	if got := lastText(t, effects); !strings.Contains(got, "option A") {
		t.Errorf("reply = %q, want the responder answer", got)
	}

	next, _ = e.Handle(ctx, snap, textEvent("menu"))
	if next.State.Flow != FlowMenu {
		t.Errorf("state = %s, want menu", next.State)
	}
}

// --- error taxonomy ---

func TestSessionExpired_MissingRecord(t *testing.T) {
	e := newTestEngine(t, newMemRecords())
	snap := NewSnapshot(sender).
		withState(State{Flow: FlowComplaint, Phase: PhasePersonalInfo, Step: 0}).
		setScratch(scratchRecordID, "404")

	next, effects := e.Handle(context.Background(), snap, textEvent("Asha Patel"))
	if next.State != Idle {
		t.Errorf("state = %s, want idle", next.State)
	}
	if got := lastText(t, effects); got != msgSessionExpired {
		t.Errorf("reply = %q, want session-expired", got)
	}
}

// --- end to end ---

func TestEndToEnd_NewComplaint(t *testing.T) {
	records := newMemRecords()
	e := newTestEngine(t, records)
	ctx := context.Background()

	snap := NewSnapshot(sender)
	snap, _ = e.Handle(ctx, snap, textEvent("start"))
	if snap.State.Flow != FlowMenu {
		t.Fatalf("after start: %s", snap.State)
	}

	snap, _ = e.Handle(ctx, snap, textEvent("A"))
	if snap.State.Phase != PhaseChooseCategory {
		t.Fatalf("after A: %s", snap.State)
	}
	id := snap.recordID()
	if id == 0 {
		t.Fatal("no draft record after A")
	}

	snap, _ = e.Handle(ctx, snap, textEvent("1"))
	snap, _ = e.Handle(ctx, snap, textEvent("3"))
	for _, answer := range validAnswers {
		snap, _ = e.Handle(ctx, snap, textEvent(answer))
	}
	if snap.State.Phase != PhaseDocuments {
		t.Fatalf("after 11 answers: %s", snap.State)
	}

	snap, _ = e.Handle(ctx, snap, imageEvent("/media/proof.jpg"))
	rec, _ := records.Get(id)
	if n := len(record.DecodeDocuments(rec.Documents)); n != 1 {
		t.Fatalf("document count = %d, want 1", n)
	}
	if snap.State.Phase != PhaseDocuments {
		t.Fatalf("after upload: %s", snap.State)
	}

	snap, _ = e.Handle(ctx, snap, textEvent("done"))
	rec, _ = records.Get(id)
	if rec.Status != "submitted" {
		t.Errorf("status = %q, want submitted", rec.Status)
	}
	if !refPattern.MatchString(rec.ReferenceNumber) {
		t.Errorf("reference = %q", rec.ReferenceNumber)
	}
	if snap.State != Idle {
		t.Errorf("final state = %s, want idle", snap.State)
	}
}

func TestNewEngine_RequiresRecords(t *testing.T) {
	if _, err := NewEngine(EngineOpts{}); err == nil {
		t.Fatal("expected error without record store")
	}
}
