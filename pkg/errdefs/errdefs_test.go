package errdefs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "direct", err: NotFound("block %d", 7), want: KindNotFound},
		{name: "wrapped", err: fmt.Errorf("put failed: %w", InvalidArgument("bad seq")), want: KindInvalidArgument},
		{name: "plain error", err: errors.New("boom"), want: ""},
		{name: "nil", err: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorsIsMatchesSentinelByKind(t *testing.T) {
	err := fmt.Errorf("layer: %w", ContainerNotOpen("container 3 is CLOSED"))

	assert.True(t, errors.Is(err, ErrContainerNotOpen))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsContainerNotOpen(err))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindInternal, cause, "write block")

	assert.Equal(t, "write block: disk full", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsInternal(err))
}

func TestGRPCRoundTrip(t *testing.T) {
	kinds := []Kind{
		KindNotFound,
		KindInvalidArgument,
		KindContainerNotOpen,
		KindInvalidConfiguration,
		KindInternal,
		KindBucketIDMismatch,
	}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			orig := New(kind, "something about %s", kind)

			wire := ToGRPC(orig)
			st, ok := status.FromError(wire)
			require.True(t, ok)
			assert.Equal(t, kindCodes[kind], st.Code())

			back := FromGRPC(wire)
			assert.Equal(t, kind, KindOf(back))
			assert.Equal(t, orig.Error(), back.Error())
		})
	}
}

func TestToGRPCUnknownKind(t *testing.T) {
	wire := ToGRPC(errors.New("opaque"))

	st, ok := status.FromError(wire)
	require.True(t, ok)
	assert.Equal(t, codes.Unknown, st.Code())
}

func TestFromGRPCFallsBackToCode(t *testing.T) {
	back := FromGRPC(status.Error(codes.NotFound, "gone"))
	assert.True(t, IsNotFound(back))

	assert.Nil(t, FromGRPC(nil))
}
