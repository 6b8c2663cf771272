package model

import "errors"

var (
	// ErrAllocationNotFound indica que o request_id não existe
	ErrAllocationNotFound = errors.New("alocação não encontrada")

	// ErrInvalidID indica um request_id que não é um UUID
	ErrInvalidID = errors.New("request_id inválido")

	// ErrRateLimited indica que o cliente excedeu o limite de requisições
	ErrRateLimited = errors.New("limite de requisições excedido")

	// ErrUnauthorized indica token ausente ou inválido
	ErrUnauthorized = errors.New("token inválido ou ausente")

	// ErrWebhookFailed indica que o webhook respondeu com erro
	ErrWebhookFailed = errors.New("falha ao entregar webhook")
)
