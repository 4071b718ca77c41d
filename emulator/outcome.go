package emulator

import (
	"fmt"

	"github.com/ezrec/dvm/bytecode"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Reason a run ended.
type Reason uint8

//go:generate go tool stringer -linecomment -type=Reason
const (
	REASON_HALT  = Reason(0) // halt
	REASON_FAULT = Reason(1) // fault
	REASON_LIMIT = Reason(2) // limit
)

// Outcome is the result of a run, in a form a front end can store or ship.
type Outcome struct {
	RunID     uuid.UUID           `cbor:"1,keyasint"`
	Reason    Reason              `cbor:"2,keyasint"`
	Ticks     int                 `cbor:"3,keyasint"`
	Ip        uint64              `cbor:"4,keyasint"`           // Faulting address, or the final Ip.
	LineNo    int                 `cbor:"5,keyasint,omitempty"` // Source line, when assembled.
	Error     string              `cbor:"6,keyasint,omitempty"`
	Output    []byte              `cbor:"7,keyasint,omitempty"` // Everything printed.
	Registers []bytecode.Register `cbor:"8,keyasint,omitempty"` // Active frame at the end of the run.
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("emulator: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalOutcome serializes an Outcome to canonical CBOR.
func MarshalOutcome(outcome *Outcome) ([]byte, error) {
	return cborEncMode.Marshal(outcome)
}

// UnmarshalOutcome deserializes an Outcome from CBOR.
func UnmarshalOutcome(data []byte) (*Outcome, error) {
	var outcome Outcome
	if err := cbor.Unmarshal(data, &outcome); err != nil {
		return nil, fmt.Errorf("emulator: unmarshal outcome: %w", err)
	}
	return &outcome, nil
}
