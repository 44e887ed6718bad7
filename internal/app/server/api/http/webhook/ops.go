package webhook

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

const Path = "/webhook/apple"

func (h *Handler) receiveOp() huma.Operation {
	return huma.Operation{
		OperationID:  "webhook-apple",
		Method:       http.MethodPost,
		Path:         Path,
		Summary:      "Принять пакет данных здоровья",
		Description:  "Сохраняет пакет отсчетов или отчет клиента об ошибке. Повторная отправка того же пакета идемпотентна.",
		Tags:         []string{"webhook"},
		Security:     []map[string][]string{{"apiKey": {}}},
		MaxBodyBytes: h.maxBodyBytes,
		Middlewares:  h.middleware,
	}
}
