package domain

// Participant is one user's transient state inside a room. Identity fields never change;
// session fields are written only by Room while it holds its lock.
type Participant struct {
	userID      string
	displayName string
	tabID       string

	connected bool
	phase     Phase
	position  int
}

func NewParticipant(userID, displayName, tabID string) *Participant {
	return &Participant{
		userID:      userID,
		displayName: displayName,
		tabID:       tabID,
		phase:       PhaseIdle,
	}
}

func (p *Participant) UserID() string      { return p.userID }
func (p *Participant) DisplayName() string { return p.displayName }
func (p *Participant) TabID() string       { return p.tabID }
func (p *Participant) Connected() bool     { return p.connected }
func (p *Participant) Phase() Phase        { return p.phase }
func (p *Participant) Position() int       { return p.position }

type ParticipantView struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	TabID       string `json:"tab_id"`
	Connected   bool   `json:"connected"`
	Phase       Phase  `json:"phase"`
	Position    int    `json:"position"`
}

func (p *Participant) View() ParticipantView {
	return ParticipantView{
		UserID:      p.userID,
		DisplayName: p.displayName,
		TabID:       p.tabID,
		Connected:   p.connected,
		Phase:       p.phase,
		Position:    p.position,
	}
}
