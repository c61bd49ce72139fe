// Package recovery turns panics in table scans into errors so a broken
// table cannot take the server down.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// PanicError is returned in place of a recovered panic. It carries the
// gRPC Internal status.
type PanicError struct {
	Op    string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Op, e.Value)
}

func (e *PanicError) GRPCStatus() *status.Status {
	return status.New(codes.Internal, e.Error())
}

// Do runs fn, converting a panic into a *PanicError.
func Do(logger *slog.Logger, op string, fn func() error) error {
	_, err := Call(logger, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Call runs fn, converting a panic into the zero T and a *PanicError.
func Call[T any](logger *slog.Logger, op string, fn func() (T, error)) (v T, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		pe := &PanicError{Op: op, Value: r, Stack: debug.Stack()}
		logger.Error("Recovered panic", "op", op, "panic", r, "stack", string(pe.Stack))
		var zero T
		v, err = zero, pe
	}()
	return fn()
}
