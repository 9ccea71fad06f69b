package domain

// PaymentResult — ответ платёжного сервиса на списание.
type PaymentResult struct {
	Success bool
	// StatusCode — HTTP-статус ответа провайдера.
	StatusCode int
	// Message — текст ответа провайдера (статус или причина отказа).
	Message string
}
