package queue

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOQueue(t *testing.T) {
	assert := assert.New(t)

	t.Run("Empty Queue", func(t *testing.T) {
		q := NewFIFOQueue[string](1)

		assert.True(q.IsEmpty())
		assert.Equal(0, q.Len())
		_, ok := q.TryPop()
		assert.False(ok)
	})

	t.Run("Push and Pop", func(t *testing.T) {
		q := NewFIFOQueue[string](1)
		q.Push("LNET>")
		q.Push("DL,[01:01:01],75")
		assert.Equal(2, q.Len())

		item, err := q.Pop(context.Background())
		assert.NoError(err)
		assert.Equal("LNET>", item)

		item, ok := q.TryPop()
		assert.True(ok)
		assert.Equal("DL,[01:01:01],75", item)
		assert.True(q.IsEmpty())
	})

	t.Run("Reset", func(t *testing.T) {
		q := NewFIFOQueue[string](1)
		q.Push("stale")
		q.Reset()
		assert.True(q.IsEmpty())
	})

	t.Run("RemoveFunc", func(t *testing.T) {
		q := NewFIFOQueue[string](4)
		q.Push("DL,[01:01:01],75")
		q.Push("LNET>")
		q.Push("KBP,[01:06:12],3")
		q.Push("LOGIN:")

		removed := q.RemoveFunc(func(item string) bool { return strings.Contains(item, ",") })
		assert.Equal(2, removed)
		assert.Equal(2, q.Len())

		item, _ := q.TryPop()
		assert.Equal("LNET>", item)
		item, _ = q.TryPop()
		assert.Equal("LOGIN:", item)
	})

	t.Run("Pop Canceled", func(t *testing.T) {
		q := NewFIFOQueue[string](1)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := q.Pop(ctx)
		assert.ErrorIs(err, context.DeadlineExceeded)
	})
}

func TestFIFOQueue_BlockingPopWakesUp(t *testing.T) {
	require := require.New(t)

	q := NewFIFOQueue[int](0)
	result := make(chan int, 1)
	go func() {
		v, err := q.Pop(context.Background())
		if err == nil {
			result <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(7)

	select {
	case v := <-result:
		require.Equal(7, v)
	case <-time.After(time.Second):
		require.Fail("blocked Pop was not woken up")
	}
}

func TestFIFOQueue_ConcurrentOrderPerProducer(t *testing.T) {
	require := require.New(t)

	q := NewFIFOQueue[string](16)
	producers := 4
	perProducer := 1000

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(strconv.Itoa(p) + ":" + strconv.Itoa(i))
			}
		}(p)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	last := make(map[string]int)
	for n := 0; n < producers*perProducer; n++ {
		item, err := q.Pop(ctx)
		require.NoError(err)

		var producer string
		var seq int
		for i := range item {
			if item[i] == ':' {
				producer = item[:i]
				seq, _ = strconv.Atoi(item[i+1:])
				break
			}
		}
		if prev, ok := last[producer]; ok {
			require.Greater(seq, prev)
		}
		last[producer] = seq
	}
	wg.Wait()
	require.True(q.IsEmpty())
}
