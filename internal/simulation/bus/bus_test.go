package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	events []Event
}

func (r *recorder) Publish(e Event) { r.events = append(r.events, e) }

func TestDiscardDropsEverything(t *testing.T) {
	var d Discard
	assert.NotPanics(t, func() { d.Publish(Event{Topic: TopicPool}) })
}

func TestMultiFansOutInOrder(t *testing.T) {
	r1, r2 := &recorder{}, &recorder{}
	m := Multi{r1, r2}
	m.Publish(Event{Topic: TopicShare, Message: "x"})

	assert.Len(t, r1.events, 1)
	assert.Len(t, r2.events, 1)
	assert.Equal(t, "x", r1.events[0].Message)
}
