package hdl

import "fmt"

// =============================================================================
// ERROR TAXONOMY
// =============================================================================
//
// Shape errors are raised while building expressions, structural errors while
// registering ports/processes/instances, ownership and driver errors while the
// generator renders a module. None of them are recoverable for the compile that
// raised them: the generator returns the first one and emits no text.
//
// Every message names the module (when known), the signal and the expected vs
// actual width or mode so a fault can be located without reading Verilog.
// =============================================================================

// WidthError reports operands or assignment sides whose widths disagree.
type WidthError struct {
	Module   string
	Signal   string
	Op       string
	Expected uint
	Actual   uint
}

func (e *WidthError) Error() string {
	return fmt.Sprintf("%s: width mismatch for %s: expected %d bits, got %d", where(e.Module, e.Signal), e.Op, e.Expected, e.Actual)
}

// SliceError reports slice bounds outside 0 <= lsb <= msb <= width-1.
type SliceError struct {
	Signal string
	MSB    uint
	LSB    uint
	Width  uint
}

func (e *SliceError) Error() string {
	return fmt.Sprintf("%s: invalid slice [%d:%d] of %d-bit value (need 0 <= lsb <= msb <= %d)", where("", e.Signal), e.MSB, e.LSB, e.Width, int(e.Width)-1)
}

// ExtensionError reports an extension to a width that is not wider.
type ExtensionError struct {
	Signal string
	Width  uint
	To     uint
}

func (e *ExtensionError) Error() string {
	return fmt.Sprintf("%s: cannot extend %d-bit value to %d bits (target must be wider)", where("", e.Signal), e.Width, e.To)
}

// RepeatError reports a repeat count below one.
type RepeatError struct {
	Signal string
	Count  int
}

func (e *RepeatError) Error() string {
	return fmt.Sprintf("%s: repeat count must be a positive integer, got %d", where("", e.Signal), e.Count)
}

// ConcatError reports a concatenation with fewer than two operands.
type ConcatError struct {
	Operands int
}

func (e *ConcatError) Error() string {
	return fmt.Sprintf("concat needs at least 2 operands, got %d", e.Operands)
}

// ConstantError reports a constant that does not fit its declared width.
type ConstantError struct {
	Value string
	Width uint
}

func (e *ConstantError) Error() string {
	return fmt.Sprintf("constant %s does not fit in %d bits", e.Value, e.Width)
}

// SignalOwnershipError reports a reference that cannot be resolved in the
// module being rendered.
type SignalOwnershipError struct {
	Module string
	Signal string
	Owner  string
}

func (e *SignalOwnershipError) Error() string {
	return fmt.Sprintf("%s: signal belongs to module %q and is not visible in %q (did you forget AddSubmodule?)", where(e.Module, e.Signal), e.Owner, e.Module)
}

// MultiDriverConflictError reports a target driven by more than one process.
type MultiDriverConflictError struct {
	Module       string
	Signal       string
	FirstMode    string
	FirstDriver  int
	SecondMode   string
	SecondDriver int
}

func (e *MultiDriverConflictError) Error() string {
	return fmt.Sprintf("%s: driven by %s process #%d and again by %s process #%d", where(e.Module, e.Signal), e.FirstMode, e.FirstDriver, e.SecondMode, e.SecondDriver)
}

// BidirectionalSignalError reports a procedural write to an inout port.
type BidirectionalSignalError struct {
	Module string
	Signal string
	Mode   string
}

func (e *BidirectionalSignalError) Error() string {
	return fmt.Sprintf("%s: bidirectional signal written from %s process (inouts are driven through instance ports only)", where(e.Module, e.Signal), e.Mode)
}

// UndrivenSignalError reports an output or inout with no driver.
type UndrivenSignalError struct {
	Module    string
	Signal    string
	Direction string
}

func (e *UndrivenSignalError) Error() string {
	return fmt.Sprintf("%s: %s has no driver", where(e.Module, e.Signal), e.Direction)
}

// MissingPortError reports a module without any output or inout port.
type MissingPortError struct {
	Module string
}

func (e *MissingPortError) Error() string {
	return fmt.Sprintf("module %q declares no output or inout signal", e.Module)
}

// SwitchError reports a malformed switch statement.
type SwitchError struct {
	Subject string
	Reason  string
}

func (e *SwitchError) Error() string {
	return fmt.Sprintf("%s: invalid switch: %s", where("", e.Subject), e.Reason)
}

// SubmoduleError reports an invalid submodule or vendor registration.
type SubmoduleError struct {
	Module    string
	Instance  string
	Submodule string
	Reason    string
}

func (e *SubmoduleError) Error() string {
	return fmt.Sprintf("module %q: instance %q of %q: %s", e.Module, e.Instance, e.Submodule, e.Reason)
}

// SimulationModuleError reports a testbench that bypasses its proxies.
type SimulationModuleError struct {
	Module string
	Signal string
	Reason string
}

func (e *SimulationModuleError) Error() string {
	return fmt.Sprintf("%s: %s", where(e.Module, e.Signal), e.Reason)
}

// NameError reports an illegal or duplicate identifier.
type NameError struct {
	Module string
	Name   string
	Reason string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("%s: %s", where(e.Module, e.Name), e.Reason)
}

// AssignmentError reports an assignment whose left side cannot be written.
type AssignmentError struct {
	Target string
	Reason string
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("%s: invalid assignment target: %s", where("", e.Target), e.Reason)
}

func where(module, signal string) string {
	switch {
	case module != "" && signal != "":
		return fmt.Sprintf("module %q, signal %q", module, signal)
	case module != "":
		return fmt.Sprintf("module %q", module)
	case signal != "":
		return fmt.Sprintf("signal %q", signal)
	}
	return "expression"
}

// Must returns v or panics with err. The generator recovers panics carrying an
// error raised inside a describe callback and returns that error, so describe
// code may chain constructors with Must instead of checking each result.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(describePanic{err})
	}
	return v
}

type describePanic struct{ err error }

// Recover converts a panic raised by Must back into an error. It is meant to be
// deferred by code that invokes describe callbacks.
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if p, ok := r.(describePanic); ok {
		*errp = p.err
		return
	}
	panic(r)
}
