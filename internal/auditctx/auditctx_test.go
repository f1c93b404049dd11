package auditctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActorRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	ctx := WithActor(context.Background(), Actor{UserID: "u1", TeamID: "t1", IPAddress: "10.0.0.1"})
	actor, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "u1", actor.UserID)
	require.Equal(t, "t1", actor.TeamID)
	require.Equal(t, "10.0.0.1", actor.IPAddress)
}

func TestActorID(t *testing.T) {
	require.Nil(t, Actor{}.ID())

	id := Actor{UserID: "u1"}.ID()
	require.NotNil(t, id)
	require.Equal(t, "u1", *id)
}
