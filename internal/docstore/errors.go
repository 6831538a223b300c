package docstore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	fderror "github.com/msto63/firedoc/foundation/core/error"
)

// DetailGRPCCode is the error detail holding the original status code
const DetailGRPCCode = "grpc_code"

// CodeFromStatus maps a gRPC status code onto the client's error taxonomy
func CodeFromStatus(c codes.Code) fderror.Code {
	switch c {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fderror.CodeUnauthenticated
	case codes.NotFound:
		return fderror.CodeNotFound
	case codes.AlreadyExists:
		return fderror.CodeAlreadyExists
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return fderror.CodeInvalidArgument
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return fderror.CodeUnavailable
	case codes.DeadlineExceeded, codes.Canceled:
		return fderror.CodeDeadlineExceeded
	default:
		return fderror.CodeInternal
	}
}

// classify turns an RPC failure into an *fderror.Error. Errors that already
// carry a code, such as credential failures, are returned unchanged.
func classify(op, target string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := fderror.As(err); ok {
		return err
	}

	if st, ok := status.FromError(err); ok {
		return fderror.Wrap(err, op+" failed").
			WithCode(CodeFromStatus(st.Code())).
			WithOperation(op).
			WithDetail(fderror.DetailPath, target).
			WithDetail(DetailGRPCCode, st.Code().String())
	}

	code := fderror.CodeInternal
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		code = fderror.CodeDeadlineExceeded
	}
	return fderror.Wrap(err, op+" failed").
		WithCode(code).
		WithOperation(op).
		WithDetail(fderror.DetailPath, target)
}

// isUnauthenticated reports whether the server rejected the credential.
// PermissionDenied is a rejection of the caller, not of the token, and is
// not retried.
func isUnauthenticated(err error) bool {
	return status.Code(err) == codes.Unauthenticated
}
