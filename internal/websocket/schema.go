package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect   Action = "select"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionJump     Action = "jump"
	ActionFinalize Action = "finalize"
	ActionRetry    Action = "retry"
	ActionView     Action = "view"
	ActionPing     Action = "ping"
)

// RequestPayload is the single shape every action is decoded into; fields
// not used by an action are ignored.
type RequestPayload struct {
	Action Action `json:"action"`
	// QuestionID targets a specific question for select; zero means the
	// question under the cursor.
	QuestionID int    `json:"question_id,omitempty"`
	Choice     string `json:"choice,omitempty"`
	Index      *int   `json:"index,omitempty"`
	Confirm    bool   `json:"confirm,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────
// Controller events (tick, state, answer, navigate, alert) are forwarded
// as-is; the types below are replies to actions.

type Event string

const (
	EventError     Event = "error"
	EventView      Event = "view"
	EventFinalized Event = "finalized"
	EventPong      Event = "pong"
)

type ViewResponse struct {
	Event Event       `json:"event"`
	View  interface{} `json:"view"`
}

type FinalizedResponse struct {
	Event    Event  `json:"event"`
	Redirect string `json:"redirect"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
