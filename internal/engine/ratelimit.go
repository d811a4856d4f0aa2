package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SlidingWindow — входной лимитер по ключу вызывающего (обычно IP).
// Журнальный вариант: храним таймстемпы в окне, при проверке отрезаем
// все старше now-window. Точный, без ступеньки на границе окна.
//
// Память на ключ освобождается рипером, когда окно опустело, —
// безграничный рост таблицы ключей недопустим.
type SlidingWindow struct {
	mu      sync.RWMutex
	windows map[string]*keyWindow

	window time.Duration
	max    int
	logger *zap.Logger

	now func() time.Time // Подменяется в тестах
}

// keyWindow — состояние одного ключа со своим мьютексом,
// чтобы горячие ключи не толкались на общем локе.
type keyWindow struct {
	mu     sync.Mutex
	stamps []time.Time
	dead   bool // Выставляет рипер перед удалением из мапы
}

func NewSlidingWindow(window time.Duration, max int, logger *zap.Logger) *SlidingWindow {
	return &SlidingWindow{
		windows: make(map[string]*keyWindow),
		window:  window,
		max:     max,
		logger:  logger.Named("ratelimit"),
		now:     time.Now,
	}
}

// Allow атомарно проверяет и фиксирует запрос ключа.
// false — вызывающий превысил лимит, запрос не записан.
func (s *SlidingWindow) Allow(key string) bool {
	now := s.now()
	cutoff := now.Add(-s.window)

	for {
		w := s.getOrCreate(key)

		w.mu.Lock()
		if w.dead {
			// Рипер успел выбросить окно, пока мы держали указатель —
			// запись в мертвое окно потерялась бы, берем свежее
			w.mu.Unlock()
			continue
		}

		w.stamps = prune(w.stamps, cutoff)
		if len(w.stamps) >= s.max {
			w.mu.Unlock()
			return false
		}
		w.stamps = append(w.stamps, now)
		w.mu.Unlock()
		return true
	}
}

func (s *SlidingWindow) getOrCreate(key string) *keyWindow {
	s.mu.RLock()
	w, ok := s.windows[key]
	s.mu.RUnlock()
	if ok {
		return w
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Могли проиграть гонку за создание
	if w, ok = s.windows[key]; ok {
		return w
	}
	w = &keyWindow{}
	s.windows[key] = w
	return w
}

// StartReaper периодически выбрасывает ключи с опустевшим окном.
// Блокируется до отмены контекста; запускать в отдельной горутине.
func (s *SlidingWindow) StartReaper(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.reap()
			if removed > 0 {
				s.logger.Debug("reaped idle limiter keys", zap.Int("removed", removed))
			}
		}
	}
}

func (s *SlidingWindow) reap() int {
	cutoff := s.now().Add(-s.window)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		w.mu.Lock()
		w.stamps = prune(w.stamps, cutoff)
		if len(w.stamps) == 0 {
			w.dead = true // Держатели старого указателя пойдут на повторный заход
			delete(s.windows, key)
			removed++
		}
		w.mu.Unlock()
	}
	return removed
}

// Keys — текущее число отслеживаемых ключей (метрики и тесты).
func (s *SlidingWindow) Keys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.windows)
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	// Таймстемпы монотонны — ищем первую живую запись
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}
