package postgres

import (
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/lib/pq"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Notifier wakes blocked dequeuers when a category receives new work.
type Notifier interface {
	Subscribe(category types.Category) <-chan struct{}
	Close() error
}

// ListenerNotifier fans pq LISTEN notifications out to per-category channels.
type ListenerNotifier struct {
	listener *pq.Listener
	log      *slog.Logger

	mu    sync.Mutex
	wakes map[types.Category]chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewListenerNotifier opens a dedicated LISTEN connection on dsn and
// subscribes to the channel of every category.
func NewListenerNotifier(dsn string, log *slog.Logger) (*ListenerNotifier, error) {
	log = log.With(logger.Scope("queue.listener"))
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("listener event", slog.Int("event", int(ev)), logger.Error(err))
		}
	})

	n := &ListenerNotifier{
		listener: listener,
		log:      log,
		wakes:    make(map[types.Category]chan struct{}),
		done:     make(chan struct{}),
	}
	for _, category := range types.AllCategories {
		n.wakes[category] = make(chan struct{}, 1)
		if err := listener.Listen(ChannelName(category)); err != nil {
			_ = listener.Close()
			return nil, err
		}
	}
	go n.loop()
	return n, nil
}

func (n *ListenerNotifier) loop() {
	for {
		select {
		case <-n.done:
			return
		case msg, ok := <-n.listener.Notify:
			if !ok {
				return
			}
			// A nil notification means the connection was re-established and
			// notifications may have been lost.
			if msg == nil {
				for _, category := range types.AllCategories {
					n.signal(category)
				}
				continue
			}
			n.signal(types.Category(strings.TrimPrefix(msg.Channel, "userfire_jobs_")))
		}
	}
}

func (n *ListenerNotifier) signal(category types.Category) {
	n.mu.Lock()
	ch, ok := n.wakes[category]
	n.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (n *ListenerNotifier) Subscribe(category types.Category) <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch, ok := n.wakes[category]
	if !ok {
		ch = make(chan struct{}, 1)
		n.wakes[category] = ch
	}
	return ch
}

func (n *ListenerNotifier) Close() error {
	var err error
	n.once.Do(func() {
		close(n.done)
		err = n.listener.Close()
	})
	return err
}
