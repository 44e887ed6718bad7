package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"healthsync/internal/domain/health"
)

const failedPayloadsKey = "failedPayloads"

// Envelope тело запроса вебхука
type Envelope struct {
	UserID string `json:"metriportUserId"`
	Data   string `json:"data"`
	Hourly *bool  `json:"hourly,omitempty"`
}

func newEnvelope(userID string, data []byte, hourly *bool) ([]byte, error) {
	body, err := json.Marshal(Envelope{UserID: userID, Data: string(data), Hourly: hourly})
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации тела запроса: %w", err)
	}
	return body, nil
}

// QueuedPayload неотправленное тело запроса
type QueuedPayload struct {
	ID       string    `json:"id"`
	QueuedAt time.Time `json:"queued_at"`
	Body     string    `json:"body"`
}

// DeliveryQueue отправляет пакеты и копит неотправленные до следующей успешной доставки
type DeliveryQueue struct {
	chMu    sync.RWMutex
	channel Channel
	storage Storage
	log     *slog.Logger
	now     func() time.Time

	// mu защищает чтение-изменение-запись очереди в хранилище
	mu      sync.Mutex
	drainMu sync.Mutex
}

func NewDeliveryQueue(channel Channel, storage Storage, log *slog.Logger) *DeliveryQueue {
	return &DeliveryQueue{
		channel: channel,
		storage: storage,
		log:     log.With(slog.String("component", "delivery_queue")),
		now:     time.Now,
	}
}

// SetChannel переключает доставку на новый канал. Очередь в хранилище сохраняется.
func (q *DeliveryQueue) SetChannel(channel Channel) {
	q.chMu.Lock()
	defer q.chMu.Unlock()
	q.channel = channel
}

func (q *DeliveryQueue) currentChannel() Channel {
	q.chMu.RLock()
	defer q.chMu.RUnlock()
	return q.channel
}

// Send сериализует пакет и отправляет его. Ошибки не возвращаются:
// неудачная доставка ставит тело в очередь, успешная запускает разбор очереди.
func (q *DeliveryQueue) Send(ctx context.Context, userID string, batch health.Batch, hourly bool) {
	data, err := health.EncodeBatch(batch)
	if err != nil {
		q.log.Error("Не удалось сериализовать пакет", "error", err, "types", batch.Keys())
		return
	}

	body, err := newEnvelope(userID, data, &hourly)
	if err != nil {
		q.log.Error("Не удалось сериализовать тело запроса", "error", err)
		return
	}

	q.log.Debug("Отправка пакета", "types", batch.Keys(), "hourly", hourly)
	q.deliver(ctx, body)
}

func (q *DeliveryQueue) deliver(ctx context.Context, body []byte) {
	if err := q.currentChannel().Post(ctx, body); err != nil {
		q.log.Warn("Доставка не удалась, тело поставлено в очередь", "error", err)
		q.enqueue(ctx, body)
		return
	}

	q.Drain(ctx)
}

func (q *DeliveryQueue) enqueue(ctx context.Context, body []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		q.log.Error("Тело запроса потеряно", "error", err)
		return
	}

	items = append(items, QueuedPayload{
		ID:       uuid.NewString(),
		QueuedAt: q.now().UTC(),
		Body:     string(body),
	})

	if err := q.save(ctx, items); err != nil {
		q.log.Error("Тело запроса потеряно", "error", err)
	}
}

// Drain повторно отправляет очередь от старых к новым. Элемент удаляется из очереди
// только после успешной доставки. Первая же неудача останавливает разбор, и
// оставшиеся элементы сохраняют свой порядок перед более новыми.
// Возвращает число доставленных элементов.
func (q *DeliveryQueue) Drain(ctx context.Context) int {
	if !q.drainMu.TryLock() {
		return 0
	}
	defer q.drainMu.Unlock()

	delivered := 0
	for {
		head, ok := q.head(ctx)
		if !ok {
			break
		}

		if err := q.currentChannel().Post(ctx, []byte(head.Body)); err != nil {
			q.log.Warn("Повторная доставка не удалась, разбор очереди остановлен",
				"id", head.ID,
				"queued_at", head.QueuedAt,
				"error", err,
			)
			break
		}

		if err := q.pop(ctx, head.ID); err != nil {
			q.log.Error("Не удалось удалить доставленный элемент очереди", "id", head.ID, "error", err)
			break
		}
		delivered++
	}

	if delivered > 0 {
		q.log.Info("Очередь неотправленных данных разобрана", "delivered", delivered)
	}
	return delivered
}

// Pending возвращает содержимое очереди.
func (q *DeliveryQueue) Pending(ctx context.Context) ([]QueuedPayload, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

// Clear удаляет очередь целиком.
func (q *DeliveryQueue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.storage.Remove(ctx, failedPayloadsKey); err != nil {
		return health.NewError(health.KindPersistence, "clear queue", "", err)
	}
	return nil
}

func (q *DeliveryQueue) head(ctx context.Context) (QueuedPayload, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		q.log.Error("Не удалось прочитать очередь", "error", err)
		return QueuedPayload{}, false
	}
	if len(items) == 0 {
		return QueuedPayload{}, false
	}
	return items[0], true
}

func (q *DeliveryQueue) pop(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return err
	}
	for i, it := range items {
		if it.ID == id {
			items = append(items[:i], items[i+1:]...)
			break
		}
	}
	return q.save(ctx, items)
}

func (q *DeliveryQueue) load(ctx context.Context) ([]QueuedPayload, error) {
	raw, ok, err := q.storage.Get(ctx, failedPayloadsKey)
	if err != nil {
		return nil, health.NewError(health.KindPersistence, "load queue", "", err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}

	var items []QueuedPayload
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, health.NewError(health.KindPersistence, "load queue", "", err)
	}
	return items, nil
}

func (q *DeliveryQueue) save(ctx context.Context, items []QueuedPayload) error {
	if len(items) == 0 {
		if err := q.storage.Remove(ctx, failedPayloadsKey); err != nil {
			return health.NewError(health.KindPersistence, "save queue", "", err)
		}
		return nil
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return health.NewError(health.KindPersistence, "save queue", "", err)
	}
	if err := q.storage.Set(ctx, failedPayloadsKey, raw); err != nil {
		return health.NewError(health.KindPersistence, "save queue", "", err)
	}
	return nil
}
