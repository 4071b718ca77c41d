// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"bytes"
	"errors"
	"io"
	"iter"
	"maps"
	"os"

	"github.com/ezrec/dvm/asm"
	"github.com/ezrec/dvm/bytecode"
	"github.com/ezrec/dvm/config"
	"github.com/ezrec/dvm/internal"
	"github.com/ezrec/dvm/vm"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("dvm.emulator")

// Emulator state. Program + VM + run settings.
type Emulator struct {
	Verbose bool              // If set, enables verbose logging.
	Config  *config.Config    // Run settings.
	Listing *asm.Listing      // Source listing, when the program was assembled.
	Program *bytecode.Program // Program to run on the next Reset.
	*vm.Vm                    // Reference to the running VM.

	Output io.Writer // Destination of printed values.
	RunID  uuid.UUID // Identifies the run since the last Reset.

	printed bytes.Buffer
}

// NewEmulator creates a new emulator. A nil cfg uses config.Default().
func NewEmulator(cfg *config.Config) (emu *Emulator) {
	if cfg == nil {
		cfg = config.Default()
	}

	emu = &Emulator{
		Verbose: cfg.VM.Verbose,
		Config:  cfg,
		Output:  os.Stdout,
	}

	return
}

func (emu *Emulator) options() []vm.Option {
	output := io.MultiWriter(emu.Output, &emu.printed)
	return append(emu.Config.Options(), vm.WithVerbose(emu.Verbose), vm.WithOutput(output))
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	limits := map[string]string{
		"MAX_TICKS": internal.Define(emu.Config.VM.MaxTicks),
	}

	return internal.IterSeq2Concat(vm.Defines(emu.options()...), maps.All(limits))
}

// Assemble source text into the program to run.
func (emu *Emulator) Assemble(input io.Reader) (err error) {
	assembler := &asm.Assembler{Verbose: emu.Verbose}
	for name, value := range emu.Defines() {
		assembler.Predefine(name, value)
	}

	lst, err := assembler.Parse(input)
	if err != nil {
		return
	}

	emu.Listing = lst
	emu.Program = lst.Program()
	emu.Vm = nil

	return
}

// Load a program image as the program to run.
func (emu *Emulator) Load(data []byte) (err error) {
	prog, err := bytecode.Load(data)
	if err != nil {
		return
	}

	emu.Listing = nil
	emu.Program = prog
	emu.Vm = nil

	return
}

// Reset starts a new run of the program.
func (emu *Emulator) Reset() (err error) {
	if emu.Program == nil {
		err = ErrProgramMissing
		return
	}

	emu.printed.Reset()

	machine, err := vm.New(emu.Program, emu.options()...)
	if err != nil {
		return
	}

	emu.Vm = machine
	emu.RunID = uuid.New()

	if emu.Verbose {
		log.Infof("%v: reset, %d functions, %d words", emu.RunID, len(emu.Program.Functions), len(emu.Program.Code))
	}

	return
}

// LineNo returns the current line number for the executing opcode.
func (emu *Emulator) LineNo() int {
	if emu.Listing == nil || emu.Vm == nil {
		return 0
	}

	return emu.Listing.LineNo(emu.Vm.Ip)
}

// Tick performs a single instruction of the emulator.
func (emu *Emulator) Tick() (done bool, err error) {
	if emu.Vm == nil {
		err = ErrProgramMissing
		return
	}

	lineno := emu.LineNo()
	defer func() {
		if err != nil {
			err = &ErrRuntime{LineNo: lineno, Err: err}
		}
	}()

	limit := emu.Config.VM.MaxTicks
	if limit > 0 && emu.Vm.Ticks >= limit && !emu.Vm.Halted {
		emu.Vm.Halted = true
		done = true
		err = ErrTickLimit
		return
	}

	done, err = emu.Vm.Step()

	return
}

// Run the program to completion from a fresh reset, and report the outcome.
// The error is the fault or limit that stopped the run, if any.
func (emu *Emulator) Run() (outcome *Outcome, err error) {
	err = emu.Reset()
	if err != nil {
		return
	}

	for done := false; !done; {
		done, err = emu.Tick()
	}

	outcome = emu.Outcome(err)

	if emu.Verbose {
		log.Infof("%v: %v after %d ticks", emu.RunID, outcome.Reason, outcome.Ticks)
	}

	return
}

// Outcome summarizes the current run, given the error that stopped it.
func (emu *Emulator) Outcome(err error) (outcome *Outcome) {
	outcome = &Outcome{
		RunID:  emu.RunID,
		Reason: REASON_HALT,
		Output: bytes.Clone(emu.printed.Bytes()),
	}

	if emu.Vm == nil {
		return
	}

	outcome.Ticks = emu.Vm.Ticks
	outcome.Ip = emu.Vm.Ip

	if frame := emu.Vm.Frame(); frame != nil && frame.Function != nil {
		outcome.Registers = append([]bytecode.Register(nil), frame.Register[:frame.Function.Registers]...)
	}

	if err == nil {
		return
	}

	outcome.Error = err.Error()
	if errors.Is(err, ErrTickLimit) {
		outcome.Reason = REASON_LIMIT
	} else {
		outcome.Reason = REASON_FAULT
	}

	var fault *vm.Fault
	if errors.As(err, &fault) {
		outcome.Ip = fault.Ip
	}

	var runtime *ErrRuntime
	if errors.As(err, &runtime) {
		outcome.LineNo = runtime.LineNo
	}

	return
}
