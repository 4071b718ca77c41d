// Package vm implements the execution engine for dvm programs.
//
// A Vm owns a loaded program, a heap of manually managed objects, and a call
// stack of frames, each holding FRAME_REGISTERS tagged registers. Step fetches
// one opcode word, decodes it, gathers its operand words, and invokes the
// handler from the dispatch table. Any handler error halts the VM and is
// reported as a *Fault naming the address and opcode.
package vm
