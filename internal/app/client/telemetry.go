package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slog"

	"healthsync/internal/domain/health"
)

// unknownUserID подставляется в отчет, пока пользователь не создан
const unknownUserID = "unknown"

// ErrorReport тело отчета об ошибке в поле data вебхука
type ErrorReport struct {
	Error    string            `json:"error"`
	Kind     health.ErrorKind  `json:"kind,omitempty"`
	Op       string            `json:"op,omitempty"`
	DataType health.DataType   `json:"dataType,omitempty"`
	Context  map[string]string `json:"context,omitempty"`
}

// Reporter отправляет ошибки синхронизации во внешний приемник телеметрии.
// Отчеты не ставятся в очередь неотправленных данных.
type Reporter struct {
	mu      sync.RWMutex
	channel Channel
	log     *slog.Logger
}

func NewReporter(channel Channel, log *slog.Logger) *Reporter {
	return &Reporter{
		channel: channel,
		log:     log.With(slog.String("component", "telemetry")),
	}
}

// SetChannel переключает отчеты на новый канал.
func (r *Reporter) SetChannel(channel Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channel = channel
}

func (r *Reporter) Report(ctx context.Context, userID string, err error) {
	if err == nil {
		return
	}

	report := newErrorReport(err)
	r.log.Error("Ошибка синхронизации",
		"user_id", userID,
		"kind", report.Kind,
		"op", report.Op,
		"data_type", report.DataType,
		"error", err,
	)

	if userID == "" {
		userID = unknownUserID
	}

	data, mErr := json.Marshal(report)
	if mErr != nil {
		r.log.Error("Не удалось сериализовать отчет об ошибке", "error", mErr)
		return
	}
	body, mErr := newEnvelope(userID, data, nil)
	if mErr != nil {
		r.log.Error("Не удалось сериализовать отчет об ошибке", "error", mErr)
		return
	}

	r.mu.RLock()
	channel := r.channel
	r.mu.RUnlock()

	if pErr := channel.Post(ctx, body); pErr != nil {
		r.log.Warn("Не удалось отправить отчет об ошибке", "error", pErr)
	}
}

func newErrorReport(err error) ErrorReport {
	report := ErrorReport{Error: err.Error()}

	var he *health.Error
	if errors.As(err, &he) {
		report.Kind = he.Kind
		report.Op = he.Op
		report.DataType = he.DataType
		if len(he.Context) > 0 {
			report.Context = make(map[string]string, len(he.Context))
			for k, v := range he.Context {
				report.Context[k] = fmt.Sprint(v)
			}
		}
	}

	return report
}
