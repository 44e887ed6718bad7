package webhook

// receiveInput тело вебхука. data содержит JSON пакета или отчета об ошибке строкой.
type receiveInput struct {
	Body receiveRequest
}

type receiveRequest struct {
	UserID string `json:"metriportUserId" doc:"Идентификатор пользователя на сервере"`
	Data   string `json:"data" doc:"Сериализованный пакет или {\"error\": ...}"`
	Hourly *bool  `json:"hourly,omitempty" doc:"true для почасовой статистики первичной загрузки"`
}

type receiveOutput struct {
	Body receiveResponse
}

type receiveResponse struct {
	DeliveryID string   `json:"deliveryId" doc:"ID принятой доставки"`
	Kind       string   `json:"kind" enum:"batch,error"`
	Types      []string `json:"types"`
	Samples    int      `json:"samples"`
	Workouts   int      `json:"workouts"`
}
