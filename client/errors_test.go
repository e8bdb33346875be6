package client

import (
	"errors"
	"testing"

	"github.com/jathurchan/locksmith/testutil"
	"github.com/jathurchan/locksmith/transport"
)

func TestClientError(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  *ClientError
		want string
	}{
		{name: "with lock id", err: &ClientError{Op: "free", ResourceID: "R", LockID: "L", Err: base}, want: "client free lock L failed: boom"},
		{name: "with resource", err: &ClientError{Op: "lock", ResourceID: "R", Err: base}, want: `client lock resource "R" failed: boom`},
		{name: "bare", err: &ClientError{Op: "exists", Err: base}, want: "client exists failed: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, tt.want, tt.err.Error())
			testutil.AssertErrorIs(t, tt.err, base)
			testutil.AssertTrue(t, errors.Unwrap(tt.err) == base)
		})
	}
}

func TestStateAndTransitionErrors(t *testing.T) {
	se := &StateError{Op: "free", Status: StatusFreed}
	testutil.AssertErrorIs(t, se, ErrInvalidState)
	testutil.AssertFalse(t, errors.Is(se, ErrInvalidTransition))
	testutil.AssertContains(t, se.Error(), "freed")

	te := &TransitionError{From: StatusFailed, To: StatusAcquired}
	testutil.AssertErrorIs(t, te, ErrInvalidTransition)
	testutil.AssertContains(t, te.Error(), "failed -> acquired")
}

func TestErrProtocolIsShared(t *testing.T) {
	wrapped := &ClientError{Op: "lock", Err: transport.ErrProtocol}
	testutil.AssertErrorIs(t, wrapped, ErrProtocol)
}
