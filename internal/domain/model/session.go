package model

import (
	"fmt"
	"time"
)

// State is a position inside one of the billing dialogues. The set is closed:
// every value below StateCount (except StateNone) is owned by exactly one flow.
type State uint8

const (
	StateNone State = iota
	StateLoginAwaitND
	StateLoginAwaitPassword
	StatePSTNAwaitND
	StateLTEAwaitND
	StateLTEAwaitAmount
	StateADSLAwaitND
	StateADSLAwaitAmount
	StateVoucherAwaitND
	StateVoucherAwaitCode
	StateScanAwaitCode
	StateApplyAwaitServiceNumber

	stateCount
)

var stateNames = [stateCount]string{
	StateNone:                    "NONE",
	StateLoginAwaitND:            "LOGIN_AWAIT_ND",
	StateLoginAwaitPassword:      "LOGIN_AWAIT_PASSWORD",
	StatePSTNAwaitND:             "PSTN_AWAIT_ND",
	StateLTEAwaitND:              "LTE_AWAIT_ND",
	StateLTEAwaitAmount:          "LTE_AWAIT_AMOUNT",
	StateADSLAwaitND:             "ADSL_AWAIT_ND",
	StateADSLAwaitAmount:         "ADSL_AWAIT_AMOUNT",
	StateVoucherAwaitND:          "VOUCHER_AWAIT_ND",
	StateVoucherAwaitCode:        "VOUCHER_AWAIT_CODE",
	StateScanAwaitCode:           "VOUCHER_SCAN_AWAIT_CODE",
	StateApplyAwaitServiceNumber: "APPLY_VOUCHER_AWAIT_SERVICE_NUMBER",
}

// AllStates lists every declared state, StateNone included.
func AllStates() []State {
	out := make([]State, 0, stateCount)
	for s := StateNone; s < stateCount; s++ {
		out = append(out, s)
	}
	return out
}

func (s State) Valid() bool { return s < stateCount }

func (s State) String() string {
	if !s.Valid() {
		return fmt.Sprintf("State(%d)", uint8(s))
	}
	return stateNames[s]
}

// ParseState is the inverse of String.
func ParseState(name string) (State, error) {
	for s := StateNone; s < stateCount; s++ {
		if stateNames[s] == name {
			return s, nil
		}
	}
	return StateNone, fmt.Errorf("unknown state %q", name)
}

func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// FlowID names a dialogue.
type FlowID string

const (
	FlowLogin        FlowID = "login"
	FlowPSTN         FlowID = "pstn"
	FlowLTE          FlowID = "lte"
	FlowADSL         FlowID = "adsl"
	FlowVoucher      FlowID = "voucher"
	FlowVoucherScan  FlowID = "voucher_scan"
	FlowVoucherApply FlowID = "voucher_apply"
)

// Field names captured across turns.
const (
	FieldND          = "nd"
	FieldAmount      = "amount"
	FieldPassword    = "password"
	FieldVoucherCode = "voucherCode"
	FieldVoucherType = "voucherType"
)

// Voucher families returned by the scan endpoint, normalised.
const (
	VoucherADSL = "ADSL"
	VoucherLTE  = "4G"
)

// Fields holds captured answers. Numbers are stored in canonical decimal text.
type Fields map[string]string

func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Session is one user's position in a dialogue.
type Session struct {
	UserID    int64     `json:"user_id"`
	State     State     `json:"state"`
	Fields    Fields    `json:"fields"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns the idle session used for unknown users.
func NewSession(userID int64) *Session {
	return &Session{UserID: userID, State: StateNone, Fields: Fields{}}
}

// Active reports whether a flow is in progress.
func (s *Session) Active() bool { return s != nil && s.State != StateNone }

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Fields = s.Fields.Clone()
	return &cp
}
