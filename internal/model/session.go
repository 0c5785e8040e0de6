package model

import "fmt"

// Lifecycle is the simulado's open/finalized flag.
type Lifecycle string

const (
	LifecycleOpen      Lifecycle = "open"
	LifecycleFinalized Lifecycle = "finalized"
)

// Session (simulado) is one attempt at a practice exam. It is created by the
// remote API and only ever changed by finalization.
type Session struct {
	ID            int             `json:"id" validate:"gte=0"`
	SelectedAreas []KnowledgeArea `json:"areas_selecionadas"`
	Finalized     bool            `json:"finalizado"`
	CreatedAt     *Timestamp      `json:"data_criacao,omitempty"`
	FinalizedAt   *Timestamp      `json:"data_finalizacao,omitempty"`
	TotalSeconds  *int            `json:"tempo_total,omitempty"`
}

func (s Session) Lifecycle() Lifecycle {
	if s.Finalized {
		return LifecycleFinalized
	}
	return LifecycleOpen
}

// SessionBundle is the GET /simulado/{id} payload.
type SessionBundle struct {
	Session   Session    `json:"simulado"`
	Questions []Question `json:"questoes" validate:"dive"`
}

// ResultPath is where the client goes once a simulado is finalized.
func ResultPath(sessionID int) string {
	return fmt.Sprintf("/resultado/%d", sessionID)
}
