package danmu

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueDropsOldest(t *testing.T) {
	var dropped []string
	q := NewQueue(2, func(ev Event) { dropped = append(dropped, ev.Content) })

	for i := 0; i < 5; i++ {
		q.Emit(Event{Content: strconv.Itoa(i)})
	}

	assert.Equal(t, 2, q.Len())
	assert.EqualValues(t, 3, q.Dropped())
	assert.Equal(t, []string{"0", "1", "2"}, dropped)
	assert.Equal(t, "3", (<-q.C()).Content)
	assert.Equal(t, "4", (<-q.C()).Content)
}

func TestQueueConcurrentEmitNeverBlocks(t *testing.T) {
	q := NewQueue(8, nil)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Emit(Event{Content: "x"})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, q.Len())
	assert.EqualValues(t, 400-8, q.Dropped())
}

func TestSinkFunc(t *testing.T) {
	var got Event
	var sink Sink = SinkFunc(func(ev Event) { got = ev })
	sink.Emit(Event{Sender: "a"})
	assert.Equal(t, "a", got.Sender)
}
