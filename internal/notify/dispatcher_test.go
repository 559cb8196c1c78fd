package notify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pinkchat/backend/internal/models"
	"pinkchat/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu      sync.Mutex
	fail    map[string]error
	panicOn string
	got     map[string][]byte
}

func newRecordingSender() *recordingSender {
	return &recordingSender{fail: map[string]error{}, got: map[string][]byte{}}
}

func (s *recordingSender) Send(_ context.Context, sub models.Subscription, payload []byte) error {
	endpoint := endpointOf(sub)
	if endpoint == s.panicOn {
		panic("boom")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[endpoint]; err != nil {
		return err
	}
	s.got[endpoint] = payload
	return nil
}

func (s *recordingSender) delivered() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(s.got))
	for k, v := range s.got {
		out[k] = v
	}
	return out
}

func subscribe(t *testing.T, d *Dispatcher, endpoint string) {
	t.Helper()
	raw := json.RawMessage(`{"endpoint":"` + endpoint + `","keys":{"auth":"a","p256dh":"p"}}`)
	_, err := d.Register(context.Background(), raw)
	require.NoError(t, err)
}

func TestDispatchWithoutSubscriptionsIsNoop(t *testing.T) {
	sender := newRecordingSender()
	d := NewDispatcher(NewMemorySubscriptions(), sender, logger.Nop(), nil, time.Second)

	report := d.Dispatch(context.Background(), Payload{Title: "A", Body: "hi"})

	assert.Equal(t, Report{}, report)
	assert.Empty(t, sender.delivered())
}

func TestDispatchFailureIsIsolated(t *testing.T) {
	sender := newRecordingSender()
	sender.fail["https://push.example/b"] = stderrors.New("410 gone")
	d := NewDispatcher(NewMemorySubscriptions(), sender, logger.Nop(), nil, time.Second)

	subscribe(t, d, "https://push.example/a")
	subscribe(t, d, "https://push.example/b")
	subscribe(t, d, "https://push.example/c")

	report := d.Dispatch(context.Background(), Payload{Title: "A", Body: "hi"})

	assert.Equal(t, Report{Attempted: 3, Failed: 1}, report)
	got := sender.delivered()
	assert.Len(t, got, 2)
	assert.JSONEq(t, `{"title":"A","body":"hi"}`, string(got["https://push.example/a"]))
	assert.Contains(t, got, "https://push.example/c")
}

func TestDispatchSurvivesSenderPanic(t *testing.T) {
	sender := newRecordingSender()
	sender.panicOn = "https://push.example/a"
	d := NewDispatcher(NewMemorySubscriptions(), sender, logger.Nop(), nil, time.Second)

	subscribe(t, d, "https://push.example/a")
	subscribe(t, d, "https://push.example/b")

	report := d.Dispatch(context.Background(), Payload{Title: "A", Body: "hi"})
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, sender.delivered(), "https://push.example/b")
}

func TestRegisterKeepsDuplicatesAndOpaquePayloads(t *testing.T) {
	subs := NewMemorySubscriptions()
	d := NewDispatcher(subs, newRecordingSender(), logger.Nop(), nil, time.Second)

	for i := 0; i < 2; i++ {
		_, err := d.Register(context.Background(), json.RawMessage(`{"anything":true}`))
		require.NoError(t, err)
	}

	list, err := subs.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.NotEqual(t, list[0].ID, list[1].ID)
}

func TestNotifyRunsInBackground(t *testing.T) {
	sender := newRecordingSender()
	d := NewDispatcher(NewMemorySubscriptions(), sender, logger.Nop(), nil, time.Second)
	subscribe(t, d, "https://push.example/a")

	d.Notify("A", "posted a status")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
	assert.Contains(t, sender.delivered(), "https://push.example/a")
}

type slowSender struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	sent     atomic.Int32
}

func (s *slowSender) Send(context.Context, models.Subscription, []byte) error {
	n := s.inFlight.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	s.inFlight.Add(-1)
	s.sent.Add(1)
	return nil
}

func TestConcurrentDispatchesShareTheSendLimit(t *testing.T) {
	sender := &slowSender{}
	d := NewDispatcher(NewMemorySubscriptions(), sender, logger.Nop(), nil, time.Second)
	d.SetConcurrency(2)
	for i := 0; i < 6; i++ {
		subscribe(t, d, fmt.Sprintf("https://push.example/%d", i))
	}

	for i := 0; i < 4; i++ {
		d.Notify("A", fmt.Sprintf("message %d", i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))

	assert.EqualValues(t, 24, sender.sent.Load())
	assert.LessOrEqual(t, sender.peak.Load(), int32(2))
}
