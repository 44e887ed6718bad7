package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	gosync "sync"
	"syscall"
	"time"

	"golang.org/x/exp/slog"

	"healthsync/internal/app/client/config"
	"healthsync/internal/app/client/healthstore"
	"healthsync/internal/domain/health"
)

// Ключи состояния клиента в хранилище
const (
	keyClientAPIKey = "clientApiKey"
	keyAPIURL       = "apiUrl"
	keySandbox      = "sandbox"
	keyUserID       = "metriportUserId"
	keyHealthAuth   = "HealthKitAuth"
)

var (
	ErrNotConfigured = errors.New("клиент не настроен. Выполните: healthsync init")
	ErrDenied        = errors.New("пользователь не выдал доступ к данным здоровья")
)

type App struct {
	config      *config.Config
	log         *slog.Logger
	storage     Storage
	store       HealthStore
	catalog     *health.Catalog
	cursors     *CursorStore
	httpClient  *httpClient
	queue       *DeliveryQueue
	reporter    *Reporter
	syncService *SyncService
	settings    ClientSettings
	wg          gosync.WaitGroup
	cancel      context.CancelFunc
	mu          gosync.RWMutex
}

// ClientSettings параметры подключения к API, переживающие перезапуск
type ClientSettings struct {
	APIKey  string `json:"client_api_key"`
	APIURL  string `json:"api_url"`
	Sandbox bool   `json:"sandbox"`
}

// New собирает приложение. Если store равен nil, используется хранилище
// данных здоровья в памяти, заполненное из FIXTURE_PATH.
func New(cfg *config.Config, log *slog.Logger, store HealthStore) (*App, error) {
	catalog, err := health.CatalogFor(cfg.DataTypes())
	if err != nil {
		return nil, fmt.Errorf("ошибка построения каталога: %w", err)
	}

	// Инициализируем локальное хранилище (используем SQLite)
	var storage Storage
	sqliteStorage, err := NewSQLiteStorage(cfg.DataPath)
	if err != nil {
		log.Warn("Не удалось инициализировать SQLite, используем память", "error", err)
		storage = NewMemoryStorage()
	} else {
		storage = sqliteStorage
	}

	if store == nil {
		ref := healthstore.New(health.Capabilities{SleepStages: true, WorkoutStatistics: true}, log)
		if cfg.FixturePath != "" {
			if err := ref.LoadFixture(cfg.FixturePath); err != nil {
				storage.Close()
				return nil, fmt.Errorf("ошибка загрузки данных здоровья: %w", err)
			}
		}
		store = ref
	}

	app, err := newApp(cfg, log, storage, store, catalog)
	if err != nil {
		storage.Close()
		return nil, err
	}
	return app, nil
}

func newApp(cfg *config.Config, log *slog.Logger, storage Storage, store HealthStore, catalog *health.Catalog) (*App, error) {
	app := &App{
		config:  cfg,
		log:     log,
		storage: storage,
		store:   store,
		catalog: catalog,
		cursors: NewCursorStore(storage, log),
	}

	ctx := context.Background()

	settings, err := app.resolveSettings(ctx)
	if err != nil {
		return nil, err
	}
	app.configure(settings)

	// Платформа помнит выданные разрешения между запусками
	if app.IsAuthorized(ctx) {
		if _, err := store.RequestPermission(ctx, catalog.ReadTypes()); err != nil {
			log.Warn("Не удалось восстановить разрешения", "error", err)
		}
	}

	return app, nil
}

// resolveSettings берет параметры подключения из окружения, а при их отсутствии
// из хранилища. Заданные окружением значения сохраняются для следующих запусков.
func (a *App) resolveSettings(ctx context.Context) (ClientSettings, error) {
	s := ClientSettings{
		APIKey:  a.config.ClientAPIKey,
		APIURL:  a.config.APIURL,
		Sandbox: a.config.Sandbox,
	}

	if s.APIKey == "" {
		v, ok, err := a.storage.Get(ctx, keyClientAPIKey)
		if err != nil {
			return s, fmt.Errorf("ошибка чтения ключа клиента: %w", err)
		}
		if ok {
			s.APIKey = string(v)
		}
	}
	if s.APIURL == "" {
		if v, ok, _ := a.storage.Get(ctx, keyAPIURL); ok {
			s.APIURL = string(v)
		}
	}
	if !s.Sandbox {
		if v, ok, _ := a.storage.Get(ctx, keySandbox); ok {
			s.Sandbox = string(v) == "true"
		}
	}

	if a.config.ClientAPIKey != "" || a.config.APIURL != "" || a.config.Sandbox {
		if err := a.saveSettings(ctx, s); err != nil {
			a.log.Warn("Не удалось сохранить параметры клиента", "error", err)
		}
	}

	s.APIURL = config.ResolveAPIURL(s.APIURL, s.Sandbox)
	return s, nil
}

func (a *App) saveSettings(ctx context.Context, s ClientSettings) error {
	if s.APIKey != "" {
		if err := a.storage.Set(ctx, keyClientAPIKey, []byte(s.APIKey)); err != nil {
			return err
		}
	}
	if s.APIURL != "" {
		if err := a.storage.Set(ctx, keyAPIURL, []byte(s.APIURL)); err != nil {
			return err
		}
	}
	return a.storage.Set(ctx, keySandbox, []byte(fmt.Sprint(s.Sandbox)))
}

// configure собирает транспорт и сервис синхронизации под параметры подключения.
func (a *App) configure(s ClientSettings) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.settings = s
	a.httpClient = NewHTTPClient(s.APIURL, s.APIKey, time.Duration(a.config.HTTPTimeout)*time.Second, a.log)

	// Очередь, отчеты и сервис создаются один раз: их блокировки должны
	// исключать работу, начатую до смены параметров подключения
	if a.syncService != nil {
		a.queue.SetChannel(a.httpClient)
		a.reporter.SetChannel(a.httpClient)
		return
	}

	a.queue = NewDeliveryQueue(a.httpClient, a.storage, a.log)
	a.reporter = NewReporter(a.httpClient, a.log)
	a.syncService = NewSyncService(SyncDeps{
		Store:    a.store,
		Catalog:  a.catalog,
		Cursors:  a.cursors,
		Sender:   a.queue,
		Reporter: a.reporter,
		Storage:  a.storage,
	}, SyncConfig{
		BackfillDays: a.config.BackfillDays,
		Location:     a.config.Location(),
	}, a.log)
}

// Init сохраняет ключ клиента и адрес API и перестраивает транспорт.
func (a *App) Init(ctx context.Context, apiKey, apiURL string, sandbox bool) error {
	if apiKey == "" {
		return errors.New("ключ клиента не может быть пустым")
	}

	s := ClientSettings{APIKey: apiKey, APIURL: apiURL, Sandbox: sandbox}
	if err := a.saveSettings(ctx, s); err != nil {
		return fmt.Errorf("ошибка сохранения параметров клиента: %w", err)
	}
	if apiURL == "" {
		_ = a.storage.Remove(ctx, keyAPIURL)
	}

	s.APIURL = config.ResolveAPIURL(apiURL, sandbox)
	a.configure(s)

	a.log.Info("Клиент настроен", "api_url", s.APIURL, "sandbox", sandbox)
	return nil
}

// Settings возвращает текущие параметры подключения
func (a *App) Settings() ClientSettings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

// IsConfigured проверяет, задан ли ключ клиента
func (a *App) IsConfigured() bool {
	return a.Settings().APIKey != ""
}

// Authorize запрашивает разрешение на чтение всех отслеживаемых типов.
// Успех фиксируется в хранилище, ошибка уходит в телеметрию.
func (a *App) Authorize(ctx context.Context) (bool, error) {
	granted, err := a.store.RequestPermission(ctx, a.catalog.ReadTypes())
	if err != nil {
		a.report(ctx, err)
		return false, err
	}
	if !granted {
		a.log.Info("Доступ к данным здоровья не выдан")
		a.report(ctx, health.NewError(health.KindPermission, "authorize", "", ErrDenied))
		return false, nil
	}

	if err := a.storage.Set(ctx, keyHealthAuth, []byte("true")); err != nil {
		err = health.NewError(health.KindPersistence, "authorize", "", err)
		a.report(ctx, err)
		return true, err
	}

	a.log.Info("Доступ к данным здоровья выдан", "types", len(a.catalog.ReadTypes()))
	return true, nil
}

// report отправляет ошибку в телеметрию от имени текущего пользователя
func (a *App) report(ctx context.Context, err error) {
	userID, _ := a.UserID(ctx)

	a.mu.RLock()
	reporter := a.reporter
	a.mu.RUnlock()

	reporter.Report(ctx, userID, err)
}

// IsAuthorized проверяет, выдавал ли пользователь доступ
func (a *App) IsAuthorized(ctx context.Context) bool {
	v, ok, err := a.storage.Get(ctx, keyHealthAuth)
	return err == nil && ok && string(v) == "true"
}

// UserID возвращает подключенного пользователя
func (a *App) UserID(ctx context.Context) (string, error) {
	v, ok, err := a.storage.Get(ctx, keyUserID)
	if err != nil {
		return "", fmt.Errorf("ошибка чтения пользователя: %w", err)
	}
	if !ok {
		return "", nil
	}
	return string(v), nil
}

// CompleteOnboarding сохраняет пользователя и запускает первую синхронизацию.
func (a *App) CompleteOnboarding(ctx context.Context, userID string) (*SyncResult, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	if err := a.storage.Set(ctx, keyUserID, []byte(userID)); err != nil {
		return nil, fmt.Errorf("ошибка сохранения пользователя: %w", err)
	}

	a.log.Info("Пользователь подключен", "user_id", userID)
	return a.CheckBackgroundUpdates(ctx)
}

// ColdStart возобновляет синхронизацию при запуске, если доступ уже выдан.
func (a *App) ColdStart(ctx context.Context) (*SyncResult, error) {
	if !a.IsAuthorized(ctx) {
		a.log.Debug("Доступ к данным здоровья не выдан, синхронизация пропущена")
		return nil, nil
	}
	return a.CheckBackgroundUpdates(ctx)
}

// CheckBackgroundUpdates включает фоновую доставку по всем типам и выполняет проход.
func (a *App) CheckBackgroundUpdates(ctx context.Context) (*SyncResult, error) {
	for _, t := range a.catalog.ReadTypes() {
		if err := a.store.EnableBackgroundDelivery(ctx, t); err != nil {
			a.log.Warn("Не удалось включить фоновую доставку", "data_type", t, "error", err)
		}
	}
	return a.Sync(ctx)
}

// Sync выполняет один проход синхронизации для подключенного пользователя.
func (a *App) Sync(ctx context.Context) (*SyncResult, error) {
	if !a.IsConfigured() {
		return nil, ErrNotConfigured
	}

	userID, err := a.UserID(ctx)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	svc := a.syncService
	a.mu.RUnlock()

	return svc.Sync(ctx, userID)
}

// SyncService возвращает сервис синхронизации
func (a *App) SyncService() *SyncService {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.syncService
}

// Queue возвращает очередь неотправленных данных
func (a *App) Queue() *DeliveryQueue {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.queue
}

// Cursors возвращает хранилище курсоров
func (a *App) Cursors() *CursorStore {
	return a.cursors
}

// Catalog возвращает отслеживаемые типы
func (a *App) Catalog() *health.Catalog {
	return a.catalog
}

// CheckConnection проверяет соединение с сервером
func (a *App) CheckConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	a.mu.RLock()
	hc := a.httpClient
	a.mu.RUnlock()

	return hc.HealthCheck(ctx)
}

// Run выполняет холодный старт и периодические проходы до сигнала завершения.
func (a *App) Run(ctx context.Context) error {
	if !a.IsConfigured() {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go a.handleSignals(ctx)

	if _, err := a.ColdStart(ctx); err != nil {
		a.log.Error("Ошибка синхронизации при запуске", "error", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.startSync(ctx)
	}()

	a.log.Info("Клиент запущен",
		"api_url", a.Settings().APIURL,
		"env", a.config.Env,
		"interval", a.config.SyncInterval,
	)

	a.wg.Wait()
	return nil
}

func (a *App) startSync(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(a.config.SyncInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("Синхронизация остановлена")
			return
		case <-ticker.C:
			if _, err := a.CheckBackgroundUpdates(ctx); err != nil {
				if errors.Is(err, ErrSyncInProgress) {
					a.log.Debug("Предыдущий проход еще выполняется")
					continue
				}
				a.log.Error("Ошибка синхронизации", "error", err)
			}
		}
	}
}

func (a *App) handleSignals(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.log.Info("Получен сигнал завершения", "signal", sig.String())
		if a.cancel != nil {
			a.cancel()
		}
	case <-ctx.Done():
	}
}

func (a *App) Shutdown() {
	a.log.Info("Завершение работы клиента...")

	if a.cancel != nil {
		a.cancel()
	}

	a.wg.Wait()

	if err := a.storage.Close(); err != nil {
		a.log.Warn("Ошибка закрытия хранилища", "error", err)
	}
	a.log.Info("Клиент завершил работу")
}
