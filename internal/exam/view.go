package exam

import "github.com/stemsi/simulado/internal/model"

// View is a render-ready snapshot of the controller.
type View struct {
	SessionID      int              `json:"session_id"`
	State          State            `json:"state"`
	Areas          []string         `json:"areas,omitempty"`
	Index          int              `json:"index"`
	Total          int              `json:"total"`
	Question       *QuestionView    `json:"question,omitempty"`
	Statuses       []QuestionStatus `json:"statuses,omitempty"`
	Answered       int              `json:"answered"`
	Percent        int              `json:"percent"`
	ElapsedSeconds int              `json:"elapsed_seconds"`
	Clock          string           `json:"clock"`
	Alert          string           `json:"alert,omitempty"`
	Redirect       string           `json:"redirect,omitempty"`
}

// QuestionView is the question under the cursor with its labeled choices.
type QuestionView struct {
	ID         int                   `json:"id"`
	Number     int                   `json:"number"`
	Area       string                `json:"area"`
	AreaTitle  string                `json:"area_title"`
	Discipline string                `json:"discipline"`
	Prompt     string                `json:"prompt"`
	Choices    []model.LabeledChoice `json:"choices"`
	Selected   model.ChoiceLabel     `json:"selected,omitempty"`
}

// View captures the current state for a renderer.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		SessionID: c.sessionID,
		State:     c.state,
		Alert:     c.alert,
		Redirect:  c.redirect,
		Clock:     FormatClock(0),
	}
	for _, a := range c.session.SelectedAreas {
		v.Areas = append(v.Areas, a.Title())
	}

	if c.timer != nil {
		v.ElapsedSeconds = c.timer.ElapsedSeconds()
		v.Clock = FormatClock(v.ElapsedSeconds)
	}
	if c.nav == nil {
		return v
	}

	v.Index = c.nav.Index()
	v.Total = c.nav.Len()
	v.Statuses = c.nav.Statuses()
	v.Answered = c.answers.AnsweredCount()
	v.Percent = c.answers.CompletionPercent(v.Total)

	if q, ok := c.nav.Current(); ok {
		area := q.KnowledgeArea()
		qv := &QuestionView{
			ID:         q.ID,
			Number:     v.Index + 1,
			Area:       q.Area,
			AreaTitle:  area.Title(),
			Discipline: q.Discipline,
			Prompt:     q.Prompt,
			Choices:    q.LabeledChoices(),
		}
		if area == model.AreaUnknown {
			qv.AreaTitle = q.Area
		}
		if sel, ok := c.answers.Choice(q.ID); ok {
			qv.Selected = sel
		}
		v.Question = qv
	}
	return v
}

// Session returns the descriptor received from the remote API.
func (c *Controller) Session() model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Answers returns a copy of the local answer map.
func (c *Controller) Answers() map[int]model.ChoiceLabel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.answers == nil {
		return map[int]model.ChoiceLabel{}
	}
	return c.answers.Snapshot()
}
