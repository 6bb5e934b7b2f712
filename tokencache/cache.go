package tokencache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cosproxy/logger"
)

var errEmptyToken = errors.New("provider returned an empty token")

// call - одно обращение к провайдеру, результат которого получают все ожидающие
type call struct {
	done  chan struct{}
	token Token
	err   error
}

// entry - состояние токена одного бакета. Все поля защищены mu.
type entry struct {
	mu       sync.Mutex
	state    FetchState
	token    Token
	lastErr  error
	inflight *call
}

// Cache хранит bearer-токены по бакетам.
// Для каждого бакета одновременно выполняется не более одного обращения к провайдеру.
type Cache struct {
	mu      sync.Mutex // защищает только карту entries
	entries map[string]*entry

	config  Config
	metrics *Metrics
	now     func() time.Time
}

// New создает пустой кэш
func New(config Config, reg prometheus.Registerer) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		config:  config,
		metrics: NewMetrics(reg),
		now:     time.Now,
	}
}

// getEntry возвращает запись бакета, создавая ее при необходимости
func (c *Cache) getEntry(bucket string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[bucket]
	if !ok {
		e = &entry{state: Absent}
		c.entries[bucket] = e
		c.metrics.Entries.WithLabelValues(Absent.String()).Inc()
	}
	return e
}

// setState меняет состояние записи. Вызывается под e.mu.
func (c *Cache) setState(e *entry, state FetchState) {
	if e.state == state {
		return
	}
	c.metrics.Entries.WithLabelValues(e.state.String()).Dec()
	c.metrics.Entries.WithLabelValues(state.String()).Inc()
	e.state = state
}

func (c *Cache) expired(t Token) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !c.now().Before(t.ExpiresAt.Add(-c.config.RefreshMargin))
}

// GetOrFetch возвращает токен бакета. Если токена нет, он устарел или прошлое обращение
// завершилось ошибкой, вызывается fetch; параллельные вызовы для того же бакета
// присоединяются к уже идущему обращению и получают его результат.
//
// Обращение к провайдеру не прерывается отменой ctx отдельного вызывающего:
// такой вызывающий сразу получает ctx.Err(), остальные продолжают ждать.
func (c *Cache) GetOrFetch(ctx context.Context, bucket string, fetch FetchFunc) (string, error) {
	e := c.getEntry(bucket)

	e.mu.Lock()
	if e.state == Ready && !c.expired(e.token) {
		value := e.token.Value
		e.mu.Unlock()
		c.metrics.Hits.Inc()
		return value, nil
	}

	cl := e.inflight
	if cl != nil {
		c.metrics.Coalesced.Inc()
	} else {
		cl = &call{done: make(chan struct{})}
		e.inflight = cl
		c.setState(e, Fetching)
		go c.fetch(ctx, bucket, e, cl, fetch)
	}
	e.mu.Unlock()

	select {
	case <-cl.done:
		if cl.err != nil {
			return "", cl.err
		}
		return cl.token.Value, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// fetch выполняет обращение к провайдеру и освобождает всех ожидающих
func (c *Cache) fetch(ctx context.Context, bucket string, e *entry, cl *call, fetch FetchFunc) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.FetchTimeout)
	defer cancel()

	logger.Debug("Fetching token for bucket %s", bucket)
	start := time.Now()
	token, err := safeFetch(fctx, fetch)
	if err == nil && token.Value == "" {
		err = errEmptyToken
	}
	c.metrics.FetchLatency.Observe(time.Since(start).Seconds())

	e.mu.Lock()
	if err != nil {
		logger.Warn("Token fetch for bucket %s failed: %v", bucket, err)
		c.metrics.Fetches.WithLabelValues("failure").Inc()
		cl.err = &FetchError{Bucket: bucket, Err: err}
		e.lastErr = err
		c.setState(e, Failed)
	} else {
		logger.Debug("Token for bucket %s cached", bucket)
		c.metrics.Fetches.WithLabelValues("success").Inc()
		cl.token = token
		e.token = token
		e.lastErr = nil
		c.setState(e, Ready)
	}
	e.inflight = nil
	e.mu.Unlock()

	close(cl.done)
}

func safeFetch(ctx context.Context, fetch FetchFunc) (token Token, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("token fetch panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

// Invalidate сбрасывает токен бакета, если он совпадает с value
// (пустой value сбрасывает любой токен). Идущее обращение не затрагивается.
func (c *Cache) Invalidate(bucket, value string) bool {
	c.mu.Lock()
	e, ok := c.entries[bucket]
	c.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Ready || (value != "" && e.token.Value != value) {
		return false
	}
	e.token = Token{}
	c.setState(e, Absent)
	logger.Info("Cached token for bucket %s invalidated", bucket)
	return true
}

// State возвращает текущее состояние записи бакета
func (c *Cache) State(bucket string) FetchState {
	c.mu.Lock()
	e, ok := c.entries[bucket]
	c.mu.Unlock()
	if !ok {
		return Absent
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot возвращает состояние всех записей, отсортированное по бакету
func (c *Cache) Snapshot() []EntryInfo {
	c.mu.Lock()
	buckets := make([]string, 0, len(c.entries))
	entries := make([]*entry, 0, len(c.entries))
	for b, e := range c.entries {
		buckets = append(buckets, b)
		entries = append(entries, e)
	}
	c.mu.Unlock()

	infos := make([]EntryInfo, 0, len(entries))
	for i, e := range entries {
		e.mu.Lock()
		info := EntryInfo{Bucket: buckets[i], State: e.state.String()}
		if e.state == Ready && !e.token.ExpiresAt.IsZero() {
			exp := e.token.ExpiresAt
			info.ExpiresAt = &exp
		}
		if e.lastErr != nil {
			info.LastError = e.lastErr.Error()
		}
		e.mu.Unlock()
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Bucket < infos[j].Bucket })
	return infos
}
