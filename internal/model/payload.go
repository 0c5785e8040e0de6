package model

import "time"

// SaveAnswerRequest is the POST /responder-questao body.
type SaveAnswerRequest struct {
	SessionID      int         `json:"simulado_id" validate:"gt=0"`
	QuestionID     int         `json:"questao_id" validate:"gt=0"`
	Choice         ChoiceLabel `json:"resposta_usuario" validate:"required,choice"`
	ElapsedSeconds int         `json:"tempo_resposta" validate:"gte=0"`
}

// FinalizeRequest is the POST /finalizar-simulado body.
type FinalizeRequest struct {
	SessionID    int `json:"simulado_id" validate:"gt=0"`
	TotalSeconds int `json:"tempo_total" validate:"gte=0"`
}

// APIError is the remote API's error body.
type APIError struct {
	Error string `json:"error"`
}

// FailedSave is a swallowed answer save queued for another attempt.
type FailedSave struct {
	UserID         int         `json:"user_id"`
	SessionID      int         `json:"simulado_id"`
	QuestionID     int         `json:"questao_id"`
	Choice         ChoiceLabel `json:"resposta_usuario"`
	ElapsedSeconds int         `json:"tempo_resposta"`
	Attempts       int         `json:"attempts"`
	LastError      string      `json:"last_error,omitempty"`
	FailedAt       time.Time   `json:"failed_at"`
}

func (f FailedSave) Request() SaveAnswerRequest {
	return SaveAnswerRequest{
		SessionID:      f.SessionID,
		QuestionID:     f.QuestionID,
		Choice:         f.Choice,
		ElapsedSeconds: f.ElapsedSeconds,
	}
}

// ─── Runner API payloads ───────────────────────────────────────────────

// SelectAnswerRequest is the payload for choosing an alternative.
type SelectAnswerRequest struct {
	QuestionID int    `json:"question_id" binding:"required,gt=0"`
	Choice     string `json:"choice" binding:"required,choice"`
}

// NavigateRequest moves the cursor. Index is zero-based and only read for jump.
type NavigateRequest struct {
	Action string `json:"action" binding:"required,oneof=next previous jump"`
	Index  *int   `json:"index" binding:"required_if=Action jump"`
}

// FinalizeSessionRequest carries the explicit irreversible-action acknowledgment.
type FinalizeSessionRequest struct {
	Confirm bool `json:"confirm"`
}
