package launcher

import (
	"github.com/retroenv/retrogolib/log"
)

// Executor transfers control to a loaded program. Call returns when the
// program returns. A program that crashes is outside of the control of the
// launcher.
type Executor interface {
	Call(entry uint32) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(entry uint32) error

// Call calls f(entry).
func (f ExecutorFunc) Call(entry uint32) error {
	return f(entry)
}

// TraceExecutor is used on hosts without a processor that can run the
// loaded code. It logs the entry point and the first instruction words and
// returns immediately.
type TraceExecutor struct {
	logger *log.Logger
	mem    Memory
}

// NewTraceExecutor returns an executor that traces calls into mem.
func NewTraceExecutor(logger *log.Logger, mem Memory) *TraceExecutor {
	return &TraceExecutor{
		logger: logger,
		mem:    mem,
	}
}

const tracedInstructions = 4

// Call logs the instructions at the entry point.
func (e *TraceExecutor) Call(entry uint32) error {
	// instructions are 16 bit wide
	code, err := e.mem.Read(entry, tracedInstructions*2)
	if err != nil {
		return err
	}

	e.logger.Info("Calling entry point", log.Hex("entry", entry))
	for i := range tracedInstructions {
		word := uint16(code[2*i])<<8 | uint16(code[2*i+1])
		e.logger.Debug("Instruction",
			log.Hex("address", entry+uint32(2*i)),
			log.Hex("opcode", word))
	}
	return nil
}
