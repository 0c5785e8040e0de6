package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation      ErrCode = "VALIDATION_ERROR"
	ErrInvalidID       ErrCode = "INVALID_ID"
	ErrInvalidPayload  ErrCode = "INVALID_PAYLOAD"
	ErrInvalidChoice   ErrCode = "INVALID_CHOICE"
	ErrUnknownQuestion ErrCode = "UNKNOWN_QUESTION"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound       ErrCode = "NOT_FOUND"
	ErrSessionNotOpen ErrCode = "SIMULADO_NOT_OPEN"

	// ─── Simulado lifecycle ────────────────────────────────────────────
	ErrLoadFailed          ErrCode = "SIMULADO_LOAD_FAILED"
	ErrNoQuestions         ErrCode = "NO_QUESTIONS"
	ErrNotActive           ErrCode = "SIMULADO_NOT_ACTIVE"
	ErrNotFailed           ErrCode = "SIMULADO_NOT_FAILED"
	ErrAlreadyFinalized    ErrCode = "SIMULADO_ALREADY_FINALIZED"
	ErrFinalizeInProgress  ErrCode = "FINALIZE_IN_PROGRESS"
	ErrFinalizeUnconfirmed ErrCode = "FINALIZE_NOT_CONFIRMED"
	ErrFinalizeFailed      ErrCode = "FINALIZE_FAILED"

	// ─── Remote API ────────────────────────────────────────────────────
	ErrRemoteUnavailable ErrCode = "REMOTE_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token de autenticação é obrigatório."
	case ErrTokenInvalid:
		return "Token de autenticação inválido."
	case ErrInvalidCredentials:
		return "Usuário ou senha inválidos."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Dados inválidos. Verifique os campos."
	case ErrInvalidID:
		return "Identificador inválido."
	case ErrInvalidPayload:
		return "Corpo da requisição inválido."
	case ErrInvalidChoice:
		return "A alternativa deve ser A, B, C, D ou E."
	case ErrUnknownQuestion:
		return "Questão não pertence a este simulado."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Recurso não encontrado."
	case ErrSessionNotOpen:
		return "Simulado não está aberto. Carregue-o primeiro."

	// ─── Simulado lifecycle ────────────────────────────────────────────
	case ErrLoadFailed:
		return "Erro ao carregar simulado"
	case ErrNoQuestions:
		return "Nenhuma questão encontrada para este simulado."
	case ErrNotActive:
		return "O simulado não está em andamento."
	case ErrNotFailed:
		return "O simulado não está em estado de erro."
	case ErrAlreadyFinalized:
		return "Simulado já foi finalizado."
	case ErrFinalizeInProgress:
		return "A finalização já está em andamento."
	case ErrFinalizeUnconfirmed:
		return "Confirme a finalização do simulado. Esta ação não pode ser desfeita."
	case ErrFinalizeFailed:
		return "Erro ao finalizar simulado"

	// ─── Remote API ────────────────────────────────────────────────────
	case ErrRemoteUnavailable:
		return "Erro de conexão"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Muitas requisições. Tente novamente mais tarde."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Ocorreu um erro interno no servidor."

	default:
		return "Ocorreu um erro desconhecido."
	}
}
