// Package session tracks the per-chat navigation state of the menu tree.
package session

import "context"

// State identifies a node in the menu tree.
type State string

const (
	StateMainMenu         State = "main_menu"
	StateUniversityMenu   State = "university_menu"
	StatePsychologistList State = "psychologist_list"
	StatePracticesMenu    State = "practices_menu"
	StatePracticeCategory State = "practice_category"
	StatePracticeDetail   State = "practice_detail"
	StateContactsMenu     State = "contacts_menu"
	StatePartnersMenu     State = "partners_menu"
	StateReportIssue      State = "report_issue"
)

// Session holds one chat's place in the menu tree plus the listing snapshots
// the chat last saw. Selections resolve only against the snapshots, never
// against a fresh listing, so a catalog change between render and reply
// cannot redirect a tap to a different record.
type Session struct {
	State      State   `json:"state"`
	Stack      []State `json:"stack"`
	Category   string  `json:"category,omitempty"`
	PracticeID int     `json:"practice_id,omitempty"`

	Universities []UniversityRef `json:"universities,omitempty"`
	Categories   []string        `json:"categories,omitempty"`
	Practices    []PracticeRef   `json:"practices,omitempty"`
}

// UniversityRef is the slice of a university a rendered listing depends on.
type UniversityRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// PracticeRef is the slice of a practice a rendered listing depends on.
type PracticeRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// New returns a fresh session positioned at the main menu with an empty stack.
func New() *Session {
	return &Session{State: StateMainMenu}
}

// Reset returns the session to the main menu and drops the stack, the
// remembered selection and every snapshot.
func (s *Session) Reset() {
	*s = *New()
}

// Push records the current state on the back stack and moves to target.
func (s *Session) Push(target State) {
	s.Stack = append(s.Stack, s.State)
	s.State = target
}

// Pop moves back to the most recently stacked state and reports whether
// there was anywhere to go. An empty stack leaves the session untouched.
func (s *Session) Pop() (State, bool) {
	if len(s.Stack) == 0 {
		return s.State, false
	}
	s.State = s.Stack[len(s.Stack)-1]
	s.Stack = s.Stack[:len(s.Stack)-1]
	return s.State, true
}

// Store persists sessions keyed by chat id. Get returns a fresh session for
// an unknown chat.
type Store interface {
	Get(ctx context.Context, chatID int64) (*Session, error)
	Put(ctx context.Context, chatID int64, s *Session) error
}
