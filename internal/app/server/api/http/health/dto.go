package health

type Input struct{}

type Output struct {
	Body Response
}

// Response состояние сервиса. Поля хранилища заполняются, только если настроена проверка.
type Response struct {
	Status       string `json:"status" example:"OK" doc:"Service status"`
	Storage      string `json:"storage,omitempty" example:"OK" doc:"Storage probe result"`
	Integrations int    `json:"integrations" example:"2" doc:"Number of configured integrations"`
	LatencyMS    int64  `json:"latency_ms" example:"3" doc:"Storage probe duration in milliseconds"`
}
