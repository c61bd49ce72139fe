package flight

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/restport/fetch"
	"github.com/hugr-lab/restport/mapping"
	"github.com/hugr-lab/restport/pushdown"
	"github.com/hugr-lab/restport/transport"
)

// scanStatus converts an error raised while scanning a table into a gRPC
// status. Errors that already carry a status keep it.
func scanStatus(err error, msg string) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return err
	}
	return status.Errorf(scanCode(err), "%s: %v", msg, err)
}

func scanCode(err error) codes.Code {
	var (
		validation *pushdown.ValidationError
		address    *fetch.AddressError
		upstream   *transport.StatusError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.As(err, &validation),
		errors.Is(err, mapping.ErrUnresolvedRef),
		errors.Is(err, mapping.ErrInvalidDescription):
		return codes.InvalidArgument
	case errors.As(err, &address),
		errors.As(err, &upstream),
		errors.Is(err, fetch.ErrNoAddress):
		return codes.Unavailable
	}
	return codes.Internal
}
