package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumennetwork/node/types"
)

func TestNotifyEpochChangedReachesSubscriber(t *testing.T) {
	n := New()
	ch := make(chan EpochChangedEvent, 1)
	sub := n.SubscribeEpochChanged(ch)
	defer sub.Unsubscribe()

	n.NotifyEpochChanged(EpochChangedEvent{Epoch: types.Epoch(7)})

	select {
	case evt := <-ch:
		require.Equal(t, types.Epoch(7), evt.Epoch)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive epoch changed event")
	}
}

func TestNotifyNewBlockIsLossyWithoutSubscriber(t *testing.T) {
	n := New()
	// No subscriber registered: Send must not block or panic.
	n.NotifyNewBlock(NewBlockEvent{Height: 1})
}
