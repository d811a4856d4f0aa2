package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSlidingWindow_AdmitsUpToMax(t *testing.T) {
	now := time.Now()
	s := newFrozenLimiter(time.Minute, 3, now)

	assert.True(t, s.Allow("10.0.0.1"))
	assert.True(t, s.Allow("10.0.0.1"))
	assert.True(t, s.Allow("10.0.0.1"))
	assert.False(t, s.Allow("10.0.0.1"), "fourth request in the window must be rejected")
}

func TestSlidingWindow_ReadmitsAfterWindowSlides(t *testing.T) {
	now := time.Now()
	s := newFrozenLimiter(time.Minute, 3, now)

	for i := 0; i < 3; i++ {
		assert.True(t, s.Allow("10.0.0.1"))
	}
	assert.False(t, s.Allow("10.0.0.1"))

	// Сдвигаем часы за границу окна — старые отметки отрезаются
	s.now = func() time.Time { return now.Add(61 * time.Second) }
	assert.True(t, s.Allow("10.0.0.1"))
}

func TestSlidingWindow_KeysAreIndependent(t *testing.T) {
	s := newFrozenLimiter(time.Minute, 1, time.Now())

	assert.True(t, s.Allow("10.0.0.1"))
	assert.False(t, s.Allow("10.0.0.1"))

	// Другой вызывающий лимит не делит
	assert.True(t, s.Allow("10.0.0.2"))
}

func TestSlidingWindow_RejectionIsNotRecorded(t *testing.T) {
	now := time.Now()
	s := newFrozenLimiter(time.Minute, 2, now)

	assert.True(t, s.Allow("k"))
	assert.True(t, s.Allow("k"))
	// Серия отказов не должна продлевать блокировку
	for i := 0; i < 10; i++ {
		assert.False(t, s.Allow("k"))
	}

	s.now = func() time.Time { return now.Add(61 * time.Second) }
	assert.True(t, s.Allow("k"))
}

func TestSlidingWindow_ReaperDropsIdleKeys(t *testing.T) {
	now := time.Now()
	s := newFrozenLimiter(time.Minute, 3, now)

	s.Allow("10.0.0.1")
	s.Allow("10.0.0.2")
	assert.Equal(t, 2, s.Keys())

	// Пока окна не пусты, рипер их не трогает
	assert.Equal(t, 0, s.reap())
	assert.Equal(t, 2, s.Keys())

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	assert.Equal(t, 2, s.reap())
	assert.Equal(t, 0, s.Keys())

	// После рипа ключ работает с чистого листа
	assert.True(t, s.Allow("10.0.0.1"))
}

func TestSlidingWindow_ConcurrentAccessStaysBounded(t *testing.T) {
	s := newFrozenLimiter(time.Minute, 50, time.Now())

	admitted := make(chan bool, 200)
	for i := 0; i < 200; i++ {
		go func() {
			admitted <- s.Allow("hot-key")
		}()
	}

	count := 0
	for i := 0; i < 200; i++ {
		if <-admitted {
			count++
		}
	}
	assert.Equal(t, 50, count, "exactly max requests admitted under contention")
}

func newFrozenLimiter(window time.Duration, max int, now time.Time) *SlidingWindow {
	s := NewSlidingWindow(window, max, zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}
