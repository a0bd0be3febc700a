package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	bnet "github.com/korsaris/libbgp/net"
)

type recorder struct {
	events []interface{}
	result bool
}

func (r *recorder) Handle(publisher interface{}, event interface{}) bool {
	r.events = append(r.events, event)
	return r.result
}

func TestPublishSkipsPublisher(t *testing.T) {
	b := New()
	a := &recorder{}
	c := &recorder{}
	b.Subscribe(a)
	b.Subscribe(c)

	ev := RouteWithdraw{Routes: []bnet.Prefix{bnet.NewPfx(0x0a000000, 8)}}
	b.Publish(a, ev)

	assert.Empty(t, a.events)
	assert.Equal(t, []interface{}{ev}, c.events)
}

func TestPublishFanOutInSubscriptionOrder(t *testing.T) {
	b := New()
	var order []int
	first := &orderRecorder{id: 1, order: &order}
	second := &orderRecorder{id: 2, order: &order}
	b.Subscribe(first)
	b.Subscribe(second)

	b.Publish(nil, RouteAdd{})

	assert.Equal(t, []int{1, 2}, order)
}

type orderRecorder struct {
	id    int
	order *[]int
}

func (r *orderRecorder) Handle(publisher interface{}, event interface{}) bool {
	*r.order = append(*r.order, r.id)
	return false
}

func TestCollisionProbeStopsOnFirstConsumer(t *testing.T) {
	b := New()
	consuming := &recorder{result: true}
	untouched := &recorder{}
	b.Subscribe(consuming)
	b.Subscribe(untouched)

	consumed := b.Publish(nil, CollisionProbe{PeerBGPID: 42})

	assert.True(t, consumed)
	assert.Len(t, consuming.events, 1)
	assert.Empty(t, untouched.events)
}

func TestCollisionProbeReportsNotConsumedWhenNoReceiverWins(t *testing.T) {
	b := New()
	b.Subscribe(&recorder{result: false})

	consumed := b.Publish(nil, CollisionProbe{PeerBGPID: 42})

	assert.False(t, consumed)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	r := &recorder{}
	b.Subscribe(r)
	b.Unsubscribe(r)

	b.Publish(nil, RouteAdd{})

	assert.Empty(t, r.events)
}
