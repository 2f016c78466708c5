// Package menu implements the conversational menu tree: state entry
// rendering, selection handling and back/home navigation.
package menu

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"jarqyn_support_bot/internal/domain"
	"jarqyn_support_bot/internal/logging"
	"jarqyn_support_bot/internal/session"
	"jarqyn_support_bot/internal/texts"
)

// catalogReader is the catalog surface the engine reads and registers
// users through.
type catalogReader interface {
	StartText(ctx context.Context) (string, error)
	Universities(ctx context.Context) ([]domain.University, error)
	EventsFor(ctx context.Context, universityID int) ([]domain.Event, error)
	Psychologists(ctx context.Context) ([]domain.Psychologist, error)
	PracticeCategories(ctx context.Context) ([]string, error)
	PracticesByCategory(ctx context.Context, category string) ([]domain.Practice, error)
	PracticeByID(ctx context.Context, id int) (domain.Practice, error)
	Contacts(ctx context.Context) ([]domain.Contact, error)
	Partners(ctx context.Context) ([]domain.Partner, error)
	AddUser(ctx context.Context, chatID int64) error
}

// AdminNotifier delivers a message to every configured admin.
type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, text string) error
}

// Reply is one outgoing message. Keyboard, when set, replaces the chat's
// reply keyboard.
type Reply struct {
	Text     string
	Keyboard [][]string
	HTML     bool
	AudioURL string
}

// Engine renders menu states and routes selections. It never mutates the
// session on a failed transition: a store outage leaves the chat exactly
// where it was.
type Engine struct {
	catalog catalogReader
	texts   *texts.Table
	admins  AdminNotifier
	logger  *logrus.Entry
}

// NewEngine constructs an Engine.
func NewEngine(catalog catalogReader, table *texts.Table, admins AdminNotifier, logger *logrus.Entry) *Engine {
	if table == nil {
		table = texts.Default()
	}
	if logger == nil {
		logger = logging.Logger()
	}
	return &Engine{
		catalog: catalog,
		texts:   table,
		admins:  admins,
		logger:  logger,
	}
}

// Start handles /start: registers the chat, resets navigation and sends the
// greeting with the main keyboard. A store outage falls back to the built-in
// greeting so the bot always answers /start.
func (e *Engine) Start(ctx context.Context, chatID int64, sess *session.Session) []Reply {
	if err := e.catalog.AddUser(ctx, chatID); err != nil {
		e.logger.WithFields(logging.Fields{
			"event":   "user_register_failed",
			"chat_id": chatID,
		}).WithError(err).Warn("could not register user")
	}

	sess.Reset()

	greeting, err := e.catalog.StartText(ctx)
	if err != nil || strings.TrimSpace(greeting) == "" {
		greeting = e.texts.Get(texts.StartFallback)
	}

	return []Reply{{Text: greeting, Keyboard: e.mainKeyboard()}}
}

// Handle routes one incoming text message for the given chat.
func (e *Engine) Handle(ctx context.Context, chatID int64, sess *session.Session, text string) []Reply {
	text = strings.TrimSpace(text)

	switch text {
	case texts.HomeButton:
		sess.Reset()
		return []Reply{{Text: e.texts.Get(texts.GoToMainMenu), Keyboard: e.mainKeyboard()}}
	case texts.BackButton:
		return e.goBack(ctx, sess)
	}

	switch sess.State {
	case session.StateMainMenu:
		return e.handleMainMenu(ctx, sess, text)
	case session.StateUniversityMenu:
		return e.handleUniversityMenu(ctx, sess, text)
	case session.StatePracticesMenu:
		return e.handlePracticesMenu(ctx, sess, text)
	case session.StatePracticeCategory:
		return e.handlePracticeCategory(ctx, sess, text)
	case session.StateReportIssue:
		return e.handleReportIssue(ctx, chatID, sess, text)
	default:
		return []Reply{{Text: e.texts.Get(texts.SelectOption)}}
	}
}

// goBack re-renders the state below the top of the stack. The pop happens
// only after a successful render, so a store outage cannot unbalance the
// stack.
func (e *Engine) goBack(ctx context.Context, sess *session.Session) []Reply {
	if len(sess.Stack) == 0 {
		sess.Reset()
		return []Reply{{Text: e.texts.Get(texts.GoToMainMenu), Keyboard: e.mainKeyboard()}}
	}

	target := sess.Stack[len(sess.Stack)-1]
	if target == session.StateMainMenu {
		sess.Reset()
		return []Reply{{Text: e.texts.Get(texts.GoToMainMenu), Keyboard: e.mainKeyboard()}}
	}

	replies, ok := e.renderState(ctx, sess, target)
	if !ok {
		return replies
	}
	sess.Pop()
	return replies
}

func (e *Engine) handleMainMenu(ctx context.Context, sess *session.Session, text string) []Reply {
	targets := map[string]session.State{
		texts.MenuUniversities:  session.StateUniversityMenu,
		texts.MenuPsychologists: session.StatePsychologistList,
		texts.MenuPractices:     session.StatePracticesMenu,
		texts.MenuContacts:      session.StateContactsMenu,
		texts.MenuPartners:      session.StatePartnersMenu,
		texts.MenuReportIssue:   session.StateReportIssue,
	}

	target, ok := targets[text]
	if !ok {
		return []Reply{{Text: e.texts.Get(texts.SelectOption)}}
	}
	return e.enterState(ctx, sess, target)
}

func (e *Engine) handleUniversityMenu(ctx context.Context, sess *session.Session, text string) []Reply {
	var selected *session.UniversityRef
	for i := range sess.Universities {
		if sess.Universities[i].Name == text {
			selected = &sess.Universities[i]
			break
		}
	}
	if selected == nil {
		return []Reply{{Text: e.texts.Get(texts.SelectOption)}}
	}

	return e.renderUniversityDetail(ctx, selected.ID)
}

func (e *Engine) handlePracticesMenu(ctx context.Context, sess *session.Session, text string) []Reply {
	name := strings.TrimSuffix(text, texts.CategorySuffix)

	found := false
	for _, category := range sess.Categories {
		if category == name {
			found = true
			break
		}
	}
	if !found {
		return []Reply{{Text: e.texts.Get(texts.SelectOption)}}
	}

	previous := sess.Category
	sess.Category = name
	replies := e.enterState(ctx, sess, session.StatePracticeCategory)
	if sess.State != session.StatePracticeCategory {
		sess.Category = previous
	}
	return replies
}

func (e *Engine) handlePracticeCategory(ctx context.Context, sess *session.Session, text string) []Reply {
	n, err := strconv.Atoi(text)
	if err != nil {
		return []Reply{{Text: e.texts.Get(texts.SelectOption)}}
	}
	if n < 1 || n > len(sess.Practices) {
		return []Reply{{Text: e.texts.Get(texts.NotFound)}}
	}

	previous := sess.PracticeID
	sess.PracticeID = sess.Practices[n-1].ID
	replies := e.enterState(ctx, sess, session.StatePracticeDetail)
	if sess.State != session.StatePracticeDetail {
		sess.PracticeID = previous
	}
	return replies
}

func (e *Engine) handleReportIssue(ctx context.Context, chatID int64, sess *session.Session, text string) []Reply {
	if text == "" {
		return []Reply{{Text: e.texts.Get(texts.ReportIssuePrompt)}}
	}

	if e.admins != nil {
		if err := e.admins.NotifyAdmins(ctx, e.texts.Format(texts.ReportIssueToAdmin, chatID, text)); err != nil {
			e.logger.WithFields(logging.Fields{
				"event":   "issue_forward_failed",
				"chat_id": chatID,
			}).WithError(err).Error("could not forward issue report")
			return []Reply{{Text: e.texts.Get(texts.Unavailable)}}
		}
	}

	e.logger.WithFields(logging.Fields{
		"event":   "issue_reported",
		"chat_id": chatID,
	}).Info("forwarded issue report")

	sess.Reset()
	return []Reply{{Text: e.texts.Get(texts.ReportIssueThanks), Keyboard: e.mainKeyboard()}}
}

// enterState renders target and pushes the current state on success. A
// failed render leaves both state and stack untouched.
func (e *Engine) enterState(ctx context.Context, sess *session.Session, target session.State) []Reply {
	replies, ok := e.renderState(ctx, sess, target)
	if !ok {
		return replies
	}

	from := sess.State
	sess.Push(target)

	e.logger.WithFields(logging.Fields{
		"event": "state_transition",
		"from":  string(from),
		"state": string(target),
	}).Debug("menu transition")

	return replies
}

// renderState builds the entry view for target and refreshes the session
// snapshots it depends on. ok is false when the view could not be built;
// the replies then carry the error message for the chat.
func (e *Engine) renderState(ctx context.Context, sess *session.Session, target session.State) ([]Reply, bool) {
	switch target {
	case session.StateUniversityMenu:
		return e.renderUniversityMenu(ctx, sess)
	case session.StatePsychologistList:
		return e.renderPsychologistList(ctx)
	case session.StatePracticesMenu:
		return e.renderPracticesMenu(ctx, sess)
	case session.StatePracticeCategory:
		return e.renderPracticeCategory(ctx, sess)
	case session.StatePracticeDetail:
		return e.renderPracticeDetail(ctx, sess)
	case session.StateContactsMenu:
		return e.renderContacts(ctx)
	case session.StatePartnersMenu:
		return e.renderPartners(ctx)
	case session.StateReportIssue:
		return []Reply{{Text: e.texts.Get(texts.ReportIssuePrompt), Keyboard: navRows()}}, true
	default:
		return []Reply{{Text: e.texts.Get(texts.GoToMainMenu), Keyboard: e.mainKeyboard()}}, true
	}
}

func (e *Engine) renderUniversityMenu(ctx context.Context, sess *session.Session) ([]Reply, bool) {
	universities, err := e.catalog.Universities(ctx)
	if err != nil {
		return e.unavailable(err), false
	}
	if len(universities) == 0 {
		// Still a transition: Back must work the same from an empty listing.
		sess.Universities = nil
		return []Reply{{Text: e.texts.Get(texts.NoUniversities), Keyboard: navRows()}}, true
	}

	sess.Universities = sess.Universities[:0]
	rows := make([][]string, 0, len(universities)+2)
	for _, u := range universities {
		sess.Universities = append(sess.Universities, session.UniversityRef{ID: u.ID, Name: u.Name})
		rows = append(rows, []string{u.Name})
	}
	rows = append(rows, navRows()...)

	return []Reply{{Text: e.texts.Get(texts.SelectUniversity), Keyboard: rows}}, true
}

func (e *Engine) renderUniversityDetail(ctx context.Context, id int) []Reply {
	universities, err := e.catalog.Universities(ctx)
	if err != nil {
		return e.unavailable(err)
	}

	var uni *domain.University
	for i := range universities {
		if universities[i].ID == id {
			uni = &universities[i]
			break
		}
	}
	if uni == nil {
		return []Reply{{Text: e.texts.Get(texts.NotFound)}}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(uni.Name))
	if uni.Description != "" {
		b.WriteString(html.EscapeString(uni.Description))
		b.WriteString("\n")
	}
	if uni.Instagram != "" {
		b.WriteString(html.EscapeString(uni.Instagram))
		b.WriteString("\n")
	}
	if uni.Link.URL != "" {
		fmt.Fprintf(&b, "<a href=%q>%s</a>\n", uni.Link.URL, e.texts.Get(texts.VisitWebsite))
	}

	replies := []Reply{{Text: b.String(), HTML: true}}

	events, err := e.catalog.EventsFor(ctx, id)
	if err != nil {
		return e.unavailable(err)
	}
	if len(events) > 0 {
		var eb strings.Builder
		eb.WriteString(e.texts.Get(texts.UniversityEvents))
		eb.WriteString("\n\n")
		for _, ev := range events {
			fmt.Fprintf(&eb, "<b>%s</b>\n", html.EscapeString(ev.Title))
			if ev.Date != "" {
				eb.WriteString(e.texts.Format(texts.EventDate, html.EscapeString(ev.Date)))
				eb.WriteString("\n")
			}
			if ev.Description != "" {
				eb.WriteString(html.EscapeString(ev.Description))
				eb.WriteString("\n")
			}
			if ev.Link != "" {
				fmt.Fprintf(&eb, "<a href=%q>%s</a>\n", ev.Link, e.texts.Get(texts.EventLink))
			}
			eb.WriteString("\n")
		}
		replies = append(replies, Reply{Text: eb.String(), HTML: true})
	}

	return replies
}

func (e *Engine) renderPsychologistList(ctx context.Context) ([]Reply, bool) {
	psychologists, err := e.catalog.Psychologists(ctx)
	if err != nil {
		return e.unavailable(err), false
	}
	if len(psychologists) == 0 {
		return []Reply{{Text: e.texts.Get(texts.NoPsychologists), Keyboard: navRows()}}, true
	}

	var b strings.Builder
	for _, p := range psychologists {
		fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(p.Name))
		if p.Specialty != "" {
			b.WriteString(e.texts.Format(texts.PsychologistSpec, html.EscapeString(p.Specialty)))
			b.WriteString("\n")
		}
		price := e.texts.Get(texts.PriceUnknown)
		if p.Price > 0 {
			price = strconv.Itoa(p.Price)
		}
		b.WriteString(e.texts.Format(texts.PsychologistPrice, price))
		b.WriteString("\n")
		if p.Contacts.Phone != "" {
			b.WriteString(e.texts.Format(texts.PsychologistPhone, html.EscapeString(p.Contacts.Phone)))
			b.WriteString("\n")
		}
		if p.Instagram != "" {
			b.WriteString(html.EscapeString(p.Instagram))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return []Reply{{Text: b.String(), HTML: true, Keyboard: navRows()}}, true
}

func (e *Engine) renderPracticesMenu(ctx context.Context, sess *session.Session) ([]Reply, bool) {
	categories, err := e.catalog.PracticeCategories(ctx)
	if err != nil {
		return e.unavailable(err), false
	}
	if len(categories) == 0 {
		sess.Categories = nil
		return []Reply{{Text: e.texts.Get(texts.NoPractices), Keyboard: navRows()}}, true
	}

	sess.Categories = append(sess.Categories[:0], categories...)

	rows := make([][]string, 0, len(categories)+2)
	for _, category := range categories {
		rows = append(rows, []string{category + texts.CategorySuffix})
	}
	rows = append(rows, navRows()...)

	return []Reply{{Text: e.texts.Get(texts.SelectCategory), Keyboard: rows}}, true
}

func (e *Engine) renderPracticeCategory(ctx context.Context, sess *session.Session) ([]Reply, bool) {
	practices, err := e.catalog.PracticesByCategory(ctx, sess.Category)
	if err != nil {
		return e.unavailable(err), false
	}
	if len(practices) == 0 {
		sess.Practices = nil
		return []Reply{{Text: e.texts.Format(texts.CategoryEmpty, sess.Category), Keyboard: navRows()}}, true
	}

	sess.Practices = sess.Practices[:0]

	var b strings.Builder
	b.WriteString(e.texts.Format(texts.CategoryHeader, sess.Category))
	for i, p := range practices {
		sess.Practices = append(sess.Practices, session.PracticeRef{ID: p.ID, Name: p.Name})
		fmt.Fprintf(&b, "%d. %s\n", i+1, p.Name)
	}
	b.WriteString("\n")
	b.WriteString(e.texts.Get(texts.SelectPractice))

	return []Reply{{Text: b.String(), Keyboard: navRows()}}, true
}

func (e *Engine) renderPracticeDetail(ctx context.Context, sess *session.Session) ([]Reply, bool) {
	practice, err := e.catalog.PracticeByID(ctx, sess.PracticeID)
	if err != nil {
		if errors.Is(err, domain.ErrEntityNotFound) {
			return []Reply{{Text: e.texts.Get(texts.PracticeNotFound)}}, false
		}
		return e.unavailable(err), false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n\n", html.EscapeString(practice.Name))
	if practice.Content != "" {
		b.WriteString(html.EscapeString(practice.Content))
		b.WriteString("\n")
	}
	if practice.Description != "" {
		b.WriteString(html.EscapeString(practice.Description))
		b.WriteString("\n")
	}
	if practice.Author != "" {
		b.WriteString("\n")
		b.WriteString(e.texts.Format(texts.PracticeAuthor, html.EscapeString(practice.Author)))
		b.WriteString("\n")
	}

	reply := Reply{Text: b.String(), HTML: true, Keyboard: navRows()}
	if practice.Audio != nil && practice.Audio.URL != "" {
		reply.AudioURL = practice.Audio.URL
	}

	return []Reply{reply}, true
}

func (e *Engine) renderContacts(ctx context.Context) ([]Reply, bool) {
	contacts, err := e.catalog.Contacts(ctx)
	if err != nil {
		return e.unavailable(err), false
	}
	if len(contacts) == 0 {
		return []Reply{{Text: e.texts.Get(texts.NoContacts), Keyboard: navRows()}}, true
	}

	var b strings.Builder
	b.WriteString(e.texts.Get(texts.ContactsHeader))
	for _, c := range contacts {
		fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(c.Name))
		if c.Phone != "" {
			b.WriteString(html.EscapeString(c.Phone))
			b.WriteString("\n")
		}
		if c.Email != "" {
			b.WriteString(html.EscapeString(c.Email))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return []Reply{{Text: b.String(), HTML: true, Keyboard: navRows()}}, true
}

func (e *Engine) renderPartners(ctx context.Context) ([]Reply, bool) {
	partners, err := e.catalog.Partners(ctx)
	if err != nil {
		return e.unavailable(err), false
	}
	if len(partners) == 0 {
		return []Reply{{Text: e.texts.Get(texts.NoPartners), Keyboard: navRows()}}, true
	}

	var b strings.Builder
	b.WriteString(e.texts.Get(texts.PartnersHeader))
	for _, p := range partners {
		fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(p.Name))
		if p.Description != "" {
			b.WriteString(html.EscapeString(p.Description))
			b.WriteString("\n")
		}
		if p.Link != "" {
			fmt.Fprintf(&b, "<a href=%q>%s</a>\n", p.Link, e.texts.Get(texts.PartnerLink))
		}
		b.WriteString("\n")
	}

	return []Reply{{Text: b.String(), HTML: true, Keyboard: navRows()}}, true
}

func (e *Engine) unavailable(err error) []Reply {
	e.logger.WithError(err).Warn("catalog read failed")
	return []Reply{{Text: e.texts.Get(texts.Unavailable)}}
}

func (e *Engine) mainKeyboard() [][]string {
	return [][]string{
		{texts.MenuUniversities},
		{texts.MenuPsychologists},
		{texts.MenuPractices},
		{texts.MenuContacts},
		{texts.MenuPartners},
		{texts.MenuReportIssue},
	}
}

func navRows() [][]string {
	return [][]string{
		{texts.BackButton},
		{texts.HomeButton},
	}
}
