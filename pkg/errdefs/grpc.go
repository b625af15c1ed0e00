package errdefs

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain tags ErrorInfo details produced by Burrow
const Domain = "burrow.cuemby.com"

var kindCodes = map[Kind]codes.Code{
	KindNotFound:             codes.NotFound,
	KindInvalidArgument:      codes.InvalidArgument,
	KindContainerNotOpen:     codes.FailedPrecondition,
	KindInvalidConfiguration: codes.InvalidArgument,
	KindInternal:             codes.Internal,
	KindBucketIDMismatch:     codes.Aborted,
}

// ToGRPC converts err into a grpc status error carrying its kind in an
// ErrorInfo detail. Errors that already are grpc statuses pass through.
func ToGRPC(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	kind := KindOf(err)
	code, known := kindCodes[kind]
	if !known {
		return status.Error(codes.Unknown, err.Error())
	}

	st := status.New(code, err.Error())
	if detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: string(kind),
		Domain: Domain,
	}); derr == nil {
		st = detailed
	}
	return st.Err()
}

// FromGRPC restores the kind of an error produced by ToGRPC. Statuses
// without Burrow details fall back to a kind derived from the code.
func FromGRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.Domain == Domain {
			return &Error{Kind: Kind(info.Reason), Message: st.Message()}
		}
	}

	switch st.Code() {
	case codes.NotFound:
		return &Error{Kind: KindNotFound, Message: st.Message()}
	case codes.InvalidArgument:
		return &Error{Kind: KindInvalidArgument, Message: st.Message()}
	case codes.FailedPrecondition:
		return &Error{Kind: KindContainerNotOpen, Message: st.Message()}
	case codes.Aborted:
		return &Error{Kind: KindBucketIDMismatch, Message: st.Message()}
	case codes.Internal:
		return &Error{Kind: KindInternal, Message: st.Message()}
	}
	return err
}
