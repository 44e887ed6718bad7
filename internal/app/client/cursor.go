package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"healthsync/internal/domain/health"
)

const (
	lastSyncedPrefix   = "lastSyncedAt:"
	changeAnchorPrefix = "changeAnchor:"
	hourlyDigestPrefix = "hourlyDigest:"
)

// CursorState состояние типа данных в автомате синхронизации
type CursorState int

const (
	NeedsBackfill CursorState = iota
	BackfillInFlight
	Incremental
)

func (s CursorState) String() string {
	switch s {
	case NeedsBackfill:
		return "needs_backfill"
	case BackfillInFlight:
		return "backfill_in_flight"
	case Incremental:
		return "incremental"
	}
	return "unknown"
}

// SyncCursor прогресс синхронизации одного типа данных.
// Для статистических типов заполняется LastSyncedAt, для ленты изменений ChangeAnchor.
type SyncCursor struct {
	LastSyncedAt *time.Time
	ChangeAnchor health.Anchor
}

// State возвращает сохраненное состояние курсора для типа t.
// Наличие курсора единственный признак того, что бэкфилл уже выполнен.
func (c SyncCursor) State(t health.DataType) CursorState {
	if t.IsChangeFeed() {
		if len(c.ChangeAnchor) > 0 {
			return Incremental
		}
		return NeedsBackfill
	}
	if c.LastSyncedAt != nil {
		return Incremental
	}
	return NeedsBackfill
}

// CursorStore типизированная обертка над хранилищем ключ-значение
type CursorStore struct {
	storage Storage
	log     *slog.Logger
	mu      sync.Mutex
}

func NewCursorStore(storage Storage, log *slog.Logger) *CursorStore {
	return &CursorStore{
		storage: storage,
		log:     log.With(slog.String("component", "cursor_store")),
	}
}

// Get читает курсор типа t.
func (c *CursorStore) Get(ctx context.Context, t health.DataType) (SyncCursor, error) {
	if t.IsChangeFeed() {
		anchor, err := c.GetChangeAnchor(ctx, t)
		return SyncCursor{ChangeAnchor: anchor}, err
	}
	ts, err := c.GetLastSyncedAt(ctx, t)
	return SyncCursor{LastSyncedAt: ts}, err
}

func (c *CursorStore) GetLastSyncedAt(ctx context.Context, t health.DataType) (*time.Time, error) {
	raw, ok, err := c.storage.Get(ctx, lastSyncedPrefix+t.String())
	if err != nil {
		return nil, health.NewError(health.KindPersistence, "get last synced", t, err)
	}
	if !ok {
		return nil, nil
	}

	ts, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return nil, health.NewError(health.KindPersistence, "parse last synced", t, err).
			With("value", string(raw))
	}
	return &ts, nil
}

// SetLastSyncedAt сдвигает курсор вперед. Значение раньше сохраненного игнорируется.
func (c *CursorStore) SetLastSyncedAt(ctx context.Context, t health.DataType, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.GetLastSyncedAt(ctx, t)
	if err != nil {
		return err
	}
	if current != nil && ts.Before(*current) {
		c.log.Debug("Курсор не сдвигается назад",
			"data_type", t,
			"current", *current,
			"proposed", ts,
		)
		return nil
	}

	if err := c.storage.Set(ctx, lastSyncedPrefix+t.String(), []byte(ts.Format(time.RFC3339Nano))); err != nil {
		return health.NewError(health.KindPersistence, "set last synced", t, err)
	}
	return nil
}

func (c *CursorStore) GetChangeAnchor(ctx context.Context, t health.DataType) (health.Anchor, error) {
	raw, ok, err := c.storage.Get(ctx, changeAnchorPrefix+t.String())
	if err != nil {
		return nil, health.NewError(health.KindPersistence, "get change anchor", t, err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	return health.Anchor(raw), nil
}

// SetChangeAnchor сохраняет курсор ленты. Пустой курсор не затирает сохраненный.
func (c *CursorStore) SetChangeAnchor(ctx context.Context, t health.DataType, anchor health.Anchor) error {
	if len(anchor) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.storage.Set(ctx, changeAnchorPrefix+t.String(), anchor); err != nil {
		return health.NewError(health.KindPersistence, "set change anchor", t, err)
	}
	return nil
}

// GetHourlyDigest читает отпечаток последнего отправленного часового пакета типа t.
func (c *CursorStore) GetHourlyDigest(ctx context.Context, t health.DataType) (string, error) {
	raw, ok, err := c.storage.Get(ctx, hourlyDigestPrefix+t.String())
	if err != nil {
		return "", health.NewError(health.KindPersistence, "get hourly digest", t, err)
	}
	if !ok {
		return "", nil
	}
	return string(raw), nil
}

func (c *CursorStore) SetHourlyDigest(ctx context.Context, t health.DataType, digest string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.storage.Set(ctx, hourlyDigestPrefix+t.String(), []byte(digest)); err != nil {
		return health.NewError(health.KindPersistence, "set hourly digest", t, err)
	}
	return nil
}

// hourlyDigest отпечаток часовых отсчетов
func hourlyDigest(samples []health.Sample) (string, error) {
	data, err := json.Marshal(samples)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации отсчетов: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Reset удаляет курсор типа t. Следующий проход снова выполнит бэкфилл.
func (c *CursorStore) Reset(ctx context.Context, t health.DataType) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range []string{lastSyncedPrefix + t.String(), changeAnchorPrefix + t.String(), hourlyDigestPrefix + t.String()} {
		if err := c.storage.Remove(ctx, key); err != nil {
			return health.NewError(health.KindPersistence, "reset cursor", t, err)
		}
	}
	return nil
}

// List возвращает все сохраненные курсоры.
func (c *CursorStore) List(ctx context.Context) (map[health.DataType]SyncCursor, error) {
	out := make(map[health.DataType]SyncCursor)

	for _, prefix := range []string{lastSyncedPrefix, changeAnchorPrefix} {
		keys, err := c.storage.Keys(ctx, prefix)
		if err != nil {
			return nil, health.NewError(health.KindPersistence, "list cursors", "", err)
		}
		for _, key := range keys {
			t := health.DataType(strings.TrimPrefix(key, prefix))
			cur, err := c.Get(ctx, t)
			if err != nil {
				return nil, fmt.Errorf("курсор %s: %w", t, err)
			}
			out[t] = cur
		}
	}

	return out, nil
}
