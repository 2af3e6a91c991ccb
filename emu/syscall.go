package emu

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Syscall selectors, passed in a0.
const (
	SyscallPrintInt    uint32 = 1  // print a1 as a signed integer
	SyscallPrintString uint32 = 4  // print the NUL-terminated string at a1
	SyscallExit        uint32 = 10 // terminate the program
	SyscallPrintChar   uint32 = 11 // print the low byte of a1
)

// ErrIllegalSyscall is returned for an unsupported syscall selector.
var ErrIllegalSyscall = errors.New("illegal syscall")

// SyscallResult represents the result of a syscall execution.
type SyscallResult struct {
	// Exited is true if the syscall caused program termination.
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64

	// Err is set if the selector is not supported.
	Err error
}

// SyscallHandler is the interface for handling ecall.
type SyscallHandler interface {
	// Handle executes the syscall indicated by the register file state.
	// Convention:
	//   - Selector in a0 (x10)
	//   - Argument in a1 (x11)
	Handle() SyscallResult
}

// DefaultSyscallHandler provides the console syscalls.
type DefaultSyscallHandler struct {
	regFile *RegFile
	memory  *Memory
	stdout  io.Writer
}

// NewDefaultSyscallHandler creates a default syscall handler.
func NewDefaultSyscallHandler(regFile *RegFile, memory *Memory, stdout io.Writer) *DefaultSyscallHandler {
	return &DefaultSyscallHandler{
		regFile: regFile,
		memory:  memory,
		stdout:  stdout,
	}
}

// Handle executes the syscall indicated by the register file state.
func (h *DefaultSyscallHandler) Handle() SyscallResult {
	selector := h.regFile.ReadReg(RegA0)
	arg := h.regFile.ReadReg(RegA1)

	switch selector {
	case SyscallPrintInt:
		_, _ = fmt.Fprintf(h.stdout, "%d", int32(arg))
	case SyscallPrintString:
		_, _ = io.WriteString(h.stdout, h.memory.ReadString(arg))
	case SyscallPrintChar:
		_, _ = fmt.Fprintf(h.stdout, "%c", byte(arg))
	case SyscallExit:
		_, _ = io.WriteString(h.stdout, "exiting the simulator\n")
		return SyscallResult{Exited: true}
	default:
		return SyscallResult{
			Err: errors.Wrapf(ErrIllegalSyscall, "selector %d", selector),
		}
	}

	return SyscallResult{}
}
