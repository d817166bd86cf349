package phase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestWatch_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := newTestController(t)
	c.now = func() time.Time { return testLiveAt.Add(time.Hour) }

	ctx, cancel := context.WithCancel(context.Background())
	states := make(chan State, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		c.Watch(ctx, 5*time.Millisecond, func(s State) {
			select {
			case states <- s:
			default:
			}
		})
	}()

	first := <-states
	assert.Equal(t, EndingCountdown, first.Phase)
	<-states

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
