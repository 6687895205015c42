package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"

	"chunks-server-go/internal/platform/logging"
)

const defaultQueueSize = 1024

// AsyncEventBus queues published events and delivers them from worker
// goroutines so publishers never block on subscribers. With a single worker
// events are delivered in publish order.
type AsyncEventBus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	wakeChan  chan struct{}
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	pending   sync.WaitGroup
	logger    *logging.Logger

	mu      sync.Mutex
	stopped bool
	latest  map[latestKey]asyncEvent
	order   []latestKey
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

type latestKey struct {
	topic string
	key   string
}

// NewAsyncEventBus creates a bus; workerNum <= 0 means one worker.
func NewAsyncEventBus(workerNum int, logger *logging.Logger) *AsyncEventBus {
	if workerNum <= 0 {
		workerNum = 1
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &AsyncEventBus{
		bus:       evbus.New(),
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, defaultQueueSize),
		wakeChan:  make(chan struct{}, 1),
		stopChan:  make(chan struct{}),
		logger:    logger,
		latest:    make(map[latestKey]asyncEvent),
	}
}

func (aeb *AsyncEventBus) Start() {
	for i := 0; i < aeb.workerNum; i++ {
		aeb.wg.Add(1)
		go aeb.worker()
	}
}

// Stop ends the workers. Events still queued are discarded and count as
// delivered for WaitAsync; later publishes are ignored.
func (aeb *AsyncEventBus) Stop() {
	aeb.stopOnce.Do(func() {
		aeb.mu.Lock()
		aeb.stopped = true
		aeb.mu.Unlock()

		close(aeb.stopChan)
		aeb.wg.Wait()

		discarded := 0
		for {
			select {
			case <-aeb.workChan:
				aeb.pending.Done()
				discarded++
				continue
			default:
			}
			break
		}

		aeb.mu.Lock()
		for range aeb.order {
			aeb.pending.Done()
			discarded++
		}
		aeb.order = nil
		aeb.latest = make(map[latestKey]asyncEvent)
		aeb.mu.Unlock()

		if discarded > 0 {
			aeb.logger.WarnTag("EventBus", "停止时丢弃 %d 个未投递事件", discarded)
		}
	})
}

func (aeb *AsyncEventBus) worker() {
	defer aeb.wg.Done()

	for {
		select {
		case <-aeb.stopChan:
			return
		case event := <-aeb.workChan:
			aeb.deliver(event)
		case <-aeb.wakeChan:
			aeb.drainLatest()
		}
	}
}

// drainLatest delivers every coalesced event, oldest key first.
func (aeb *AsyncEventBus) drainLatest() {
	for {
		select {
		case <-aeb.stopChan:
			return
		default:
		}

		aeb.mu.Lock()
		if len(aeb.order) == 0 {
			aeb.mu.Unlock()
			return
		}
		k := aeb.order[0]
		aeb.order = aeb.order[1:]
		event := aeb.latest[k]
		delete(aeb.latest, k)
		aeb.mu.Unlock()

		aeb.deliver(event)
	}
}

func (aeb *AsyncEventBus) deliver(event asyncEvent) {
	defer aeb.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			aeb.logger.ErrorTag("EventBus", "订阅者处理 %s 时 panic: %v", event.topic, r)
		}
	}()
	aeb.bus.Publish(event.topic, event.args...)
}

// Publish delivers synchronously on the caller's goroutine.
func (aeb *AsyncEventBus) Publish(topic string, args ...interface{}) {
	aeb.bus.Publish(topic, args...)
}

// PublishAsync enqueues the event. When the queue is full the event is
// dropped and a warning logged; use PublishLatest for state updates.
func (aeb *AsyncEventBus) PublishAsync(topic string, args ...interface{}) {
	aeb.mu.Lock()
	defer aeb.mu.Unlock()
	if aeb.stopped {
		return
	}

	aeb.pending.Add(1)
	select {
	case aeb.workChan <- asyncEvent{topic: topic, args: args}:
	default:
		aeb.pending.Done()
		aeb.logger.WarnTag("EventBus", "事件队列已满，丢弃 %s", topic)
	}
}

// PublishLatest enqueues the event under (topic, key). An undelivered event
// with the same topic and key is replaced, so subscribers always receive the
// newest one and never more than one stale backlog entry per key. Keys keep
// their first-enqueue position; with one worker a key's events arrive in
// publish order.
func (aeb *AsyncEventBus) PublishLatest(topic, key string, args ...interface{}) {
	aeb.mu.Lock()
	if aeb.stopped {
		aeb.mu.Unlock()
		return
	}
	k := latestKey{topic: topic, key: key}
	if _, queued := aeb.latest[k]; !queued {
		aeb.pending.Add(1)
		aeb.order = append(aeb.order, k)
	}
	aeb.latest[k] = asyncEvent{topic: topic, args: args}
	aeb.mu.Unlock()

	select {
	case aeb.wakeChan <- struct{}{}:
	default:
	}
}

func (aeb *AsyncEventBus) Subscribe(topic string, fn interface{}) error {
	return aeb.bus.Subscribe(topic, fn)
}

func (aeb *AsyncEventBus) Unsubscribe(topic string, handler interface{}) error {
	return aeb.bus.Unsubscribe(topic, handler)
}

func (aeb *AsyncEventBus) HasCallback(topic string) bool {
	return aeb.bus.HasCallback(topic)
}

// WaitAsync blocks until every enqueued event has been delivered or
// discarded by Stop. Used by tests and graceful shutdown.
func (aeb *AsyncEventBus) WaitAsync() {
	aeb.pending.Wait()
}
