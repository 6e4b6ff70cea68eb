// Package conversation implements the dialogue state machine: given a
// sender's current snapshot and one inbound event, it decides the next
// state, what to persist on the record being built, and what to send back.
package conversation

import (
	"strconv"
	"strings"
)

// FlowName identifies a top-level conversation path.
type FlowName string

const (
	FlowIdle      FlowName = "idle"
	FlowMenu      FlowName = "menu"
	FlowComplaint FlowName = "new_complaint"
	FlowStatus    FlowName = "status_check"
	FlowUnfreeze  FlowName = "account_unfreeze"
	FlowOther     FlowName = "other_query"
)

// Phase identifies a stage within a flow. Empty for single-stage flows.
type Phase string

const (
	PhaseNone           Phase = ""
	PhaseChooseCategory Phase = "choose_category"
	PhaseFinancialType  Phase = "financial_type"
	PhaseSocialPlatform Phase = "social_platform"
	PhaseSocialSubtype  Phase = "social_subtype"
	PhasePersonalInfo   Phase = "personal_info"
	PhaseDocuments      Phase = "documents"
	PhaseAskReference   Phase = "ask_reference"
	PhaseVerify         Phase = "verify"
	PhaseAskAccount     Phase = "ask_account"
)

// State is the structured discriminator for a snapshot. Step is only
// meaningful for the indexed phases (personal_info, verify). The string
// form ("new_complaint:personal_info:3") exists purely as the persisted
// serialization; transitions never parse strings.
type State struct {
	Flow  FlowName
	Phase Phase
	Step  int
}

// Idle is the resting state.
var Idle = State{Flow: FlowIdle}

// stepped reports whether the phase carries a numeric step.
func (p Phase) stepped() bool {
	return p == PhasePersonalInfo || p == PhaseVerify
}

// String serializes the state for storage.
func (s State) String() string {
	if s.Phase == PhaseNone {
		return string(s.Flow)
	}
	if s.Phase.stepped() {
		return string(s.Flow) + ":" + string(s.Phase) + ":" + strconv.Itoa(s.Step)
	}
	return string(s.Flow) + ":" + string(s.Phase)
}

// validFlows guards ParseState: a label whose prefix is not a flow the
// router recognizes is treated as idle.
var validFlows = map[FlowName]bool{
	FlowIdle:      true,
	FlowMenu:      true,
	FlowComplaint: true,
	FlowStatus:    true,
	FlowUnfreeze:  true,
	FlowOther:     true,
}

// ParseState deserializes a stored state label. Anything unrecognized
// degrades to Idle rather than erroring: a stale or corrupted label just
// restarts the conversation.
func ParseState(label string) State {
	parts := strings.Split(label, ":")
	flow := FlowName(parts[0])
	if !validFlows[flow] {
		return Idle
	}
	s := State{Flow: flow}
	if len(parts) == 1 {
		return s
	}
	s.Phase = Phase(parts[1])
	if s.Phase.stepped() {
		if len(parts) < 3 {
			return Idle
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil || n < 0 {
			return Idle
		}
		s.Step = n
	}
	return s
}

// Snapshot is the in-memory form of one sender's persisted conversation
// position. Scratch holds small cross-step values (the draft record id,
// verification answers) and is cleared on every flow entry and exit.
type Snapshot struct {
	SenderID string
	State    State
	Scratch  map[string]string
}

// NewSnapshot returns an idle snapshot for a sender.
func NewSnapshot(senderID string) Snapshot {
	return Snapshot{SenderID: senderID, State: Idle, Scratch: map[string]string{}}
}

// scratch keys.
const (
	scratchRecordID = "record_id"
	scratchPlatform = "platform"
	scratchVerify   = "verify_" // + field index
)

// recordID reads the draft record id from scratch, 0 when absent.
func (s Snapshot) recordID() uint {
	n, err := strconv.ParseUint(s.Scratch[scratchRecordID], 10, 32)
	if err != nil {
		return 0
	}
	return uint(n)
}

// withState returns a copy of the snapshot in the given state, keeping scratch.
func (s Snapshot) withState(st State) Snapshot {
	s.State = st
	return s
}

// reset returns a copy of the snapshot in the given state with cleared scratch.
func (s Snapshot) reset(st State) Snapshot {
	s.State = st
	s.Scratch = map[string]string{}
	return s
}

// setScratch returns a copy with one scratch key set (copy-on-write so
// callers can treat snapshots as values).
func (s Snapshot) setScratch(key, value string) Snapshot {
	m := make(map[string]string, len(s.Scratch)+1)
	for k, v := range s.Scratch {
		m[k] = v
	}
	m[key] = value
	s.Scratch = m
	return s
}
