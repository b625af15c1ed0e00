package container

import (
	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/types"
)

// transitions lists the legal lifecycle moves; INVALID is reachable from
// every other state and handled separately
var transitions = map[types.ContainerState][]types.ContainerState{
	types.ContainerStateOpen: {
		types.ContainerStateClosing,
		types.ContainerStateUnhealthy,
	},
	types.ContainerStateClosing: {
		types.ContainerStateClosed,
		types.ContainerStateQuasiClosed,
		types.ContainerStateUnhealthy,
	},
	types.ContainerStateQuasiClosed: {
		types.ContainerStateClosed,
	},
}

// CanTransition reports whether a container may move from one state to
// another
func CanTransition(from, to types.ContainerState) bool {
	if to == types.ContainerStateInvalid {
		return from != types.ContainerStateInvalid
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func validateTransition(from, to types.ContainerState) error {
	if !CanTransition(from, to) {
		return errdefs.InvalidArgument("invalid container state transition %s -> %s", from, to)
	}
	return nil
}

// IsValidState reports whether s is a known container state
func IsValidState(s types.ContainerState) bool {
	switch s {
	case types.ContainerStateOpen, types.ContainerStateClosing, types.ContainerStateQuasiClosed,
		types.ContainerStateClosed, types.ContainerStateUnhealthy, types.ContainerStateInvalid:
		return true
	}
	return false
}
