// Package catalog exposes typed accessors and mutation helpers over the
// remote document's collections.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"jarqyn_support_bot/internal/domain"
	"jarqyn_support_bot/internal/logging"
)

// documentStore captures the store behavior the repository relies on, so
// tests can run against an in-memory fake.
type documentStore interface {
	Fetch(ctx context.Context) (domain.Document, error)
	Commit(ctx context.Context, doc domain.Document) (domain.Document, error)
}

// Repository projects and mutates the document's collections. It adds no
// retry logic: any store failure propagates unchanged to the caller.
type Repository struct {
	store  documentStore
	logger *logrus.Entry
}

// NewRepository constructs a Repository over the given store.
func NewRepository(store documentStore, logger *logrus.Entry) *Repository {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Repository{
		store:  store,
		logger: logger,
	}
}

// StartText returns the configured greeting.
func (r *Repository) StartText(ctx context.Context) (string, error) {
	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return "", err
	}
	return doc.BotInfo.StartText, nil
}

// Universities returns all universities in document order.
func (r *Repository) Universities(ctx context.Context) ([]domain.University, error) {
	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return doc.BotInfo.Universities, nil
}

// EventsFor returns the events attached to the given university. Events with
// a dangling university id never surface anywhere.
func (r *Repository) EventsFor(ctx context.Context, universityID int) ([]domain.Event, error) {
	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	var events []domain.Event
	for _, ev := range doc.BotInfo.Events {
		if ev.UniversityID == universityID {
			events = append(events, ev)
		}
	}
	return events, nil
}

// Psychologists returns all psychologists in document order.
func (r *Repository) Psychologists(ctx context.Context) ([]domain.Psychologist, error) {
	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return doc.BotInfo.Psychologists, nil
}

// Practices returns all practices in document order.
func (r *Repository) Practices(ctx context.Context) ([]domain.Practice, error) {
	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return doc.BotInfo.Practices, nil
}

// PracticeCategories returns the distinct practice categories in first-seen
// order. Categories are derived, never stored separately.
func (r *Repository) PracticeCategories(ctx context.Context) ([]string, error) {
	practices, err := r.Practices(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(practices))
	var categories []string
	for _, p := range practices {
		name := strings.TrimSpace(p.Category)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		categories = append(categories, name)
	}
	return categories, nil
}

// PracticesByCategory returns the practices in the given category, in
// document order.
func (r *Repository) PracticesByCategory(ctx context.Context, category string) ([]domain.Practice, error) {
	practices, err := r.Practices(ctx)
	if err != nil {
		return nil, err
	}

	var matched []domain.Practice
	for _, p := range practices {
		if strings.TrimSpace(p.Category) == category {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// PracticeByID returns the practice with the given id.
func (r *Repository) PracticeByID(ctx context.Context, id int) (domain.Practice, error) {
	practices, err := r.Practices(ctx)
	if err != nil {
		return domain.Practice{}, err
	}

	for _, p := range practices {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Practice{}, fmt.Errorf("%w: practice %d", domain.ErrEntityNotFound, id)
}

// Contacts returns all contacts in document order.
func (r *Repository) Contacts(ctx context.Context) ([]domain.Contact, error) {
	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return doc.BotInfo.Contacts, nil
}

// Partners returns all partners in document order.
func (r *Repository) Partners(ctx context.Context) ([]domain.Partner, error) {
	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return doc.BotInfo.Partners, nil
}

// Users returns the known chat ids.
func (r *Repository) Users(ctx context.Context) ([]int64, error) {
	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Users, nil
}

// AdminIDs returns the admin allow-list.
func (r *Repository) AdminIDs(ctx context.Context) ([]int64, error) {
	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return doc.AdminIDs, nil
}

// IsAdmin reports whether chatID is on the admin allow-list.
func (r *Repository) IsAdmin(ctx context.Context, chatID int64) (bool, error) {
	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return false, err
	}
	return doc.HasAdmin(chatID), nil
}

// AddUser registers a chat id. Adding an already-present id is a no-op that
// performs no write.
func (r *Repository) AddUser(ctx context.Context, chatID int64) error {
	if chatID == 0 {
		return errors.New("chat id is required")
	}

	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return err
	}

	if doc.HasUser(chatID) {
		return nil
	}

	doc.Users = append(doc.Users, chatID)
	if _, err := r.store.Commit(ctx, doc); err != nil {
		return err
	}

	r.logger.WithFields(logging.Fields{
		"event":   "user_registered",
		"chat_id": chatID,
	}).Info("registered new user")

	return nil
}

// AddUniversity appends a university with a generated id and returns the
// stored record.
func (r *Repository) AddUniversity(ctx context.Context, u domain.University) (domain.University, error) {
	if strings.TrimSpace(u.Name) == "" {
		return domain.University{}, fmt.Errorf("%w: university name is required", domain.ErrValidation)
	}

	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return domain.University{}, err
	}

	u.ID = nextID(universityIDs(doc.BotInfo.Universities))
	doc.BotInfo.Universities = append(doc.BotInfo.Universities, u)

	if _, err := r.store.Commit(ctx, doc); err != nil {
		return domain.University{}, err
	}

	r.logEntityAdded("university", u.ID)
	return u, nil
}

// AddEvent appends an event with a generated id and returns the stored record.
func (r *Repository) AddEvent(ctx context.Context, ev domain.Event) (domain.Event, error) {
	if strings.TrimSpace(ev.Title) == "" {
		return domain.Event{}, fmt.Errorf("%w: event title is required", domain.ErrValidation)
	}

	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return domain.Event{}, err
	}

	ev.ID = nextID(eventIDs(doc.BotInfo.Events))
	doc.BotInfo.Events = append(doc.BotInfo.Events, ev)

	if _, err := r.store.Commit(ctx, doc); err != nil {
		return domain.Event{}, err
	}

	r.logEntityAdded("event", ev.ID)
	return ev, nil
}

// AddPsychologist appends a psychologist with a generated id and returns the
// stored record.
func (r *Repository) AddPsychologist(ctx context.Context, p domain.Psychologist) (domain.Psychologist, error) {
	if strings.TrimSpace(p.Name) == "" {
		return domain.Psychologist{}, fmt.Errorf("%w: psychologist name is required", domain.ErrValidation)
	}

	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return domain.Psychologist{}, err
	}

	p.ID = nextID(psychologistIDs(doc.BotInfo.Psychologists))
	doc.BotInfo.Psychologists = append(doc.BotInfo.Psychologists, p)

	if _, err := r.store.Commit(ctx, doc); err != nil {
		return domain.Psychologist{}, err
	}

	r.logEntityAdded("psychologist", p.ID)
	return p, nil
}

// AddPractice appends a practice with a generated id and returns the stored
// record.
func (r *Repository) AddPractice(ctx context.Context, p domain.Practice) (domain.Practice, error) {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Category) == "" {
		return domain.Practice{}, fmt.Errorf("%w: practice name and category are required", domain.ErrValidation)
	}

	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return domain.Practice{}, err
	}

	p.ID = nextID(practiceIDs(doc.BotInfo.Practices))
	doc.BotInfo.Practices = append(doc.BotInfo.Practices, p)

	if _, err := r.store.Commit(ctx, doc); err != nil {
		return domain.Practice{}, err
	}

	r.logEntityAdded("practice", p.ID)
	return p, nil
}

// AddContact appends a contact with a generated id and returns the stored
// record.
func (r *Repository) AddContact(ctx context.Context, c domain.Contact) (domain.Contact, error) {
	if strings.TrimSpace(c.Name) == "" {
		return domain.Contact{}, fmt.Errorf("%w: contact name is required", domain.ErrValidation)
	}

	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return domain.Contact{}, err
	}

	c.ID = nextID(contactIDs(doc.BotInfo.Contacts))
	doc.BotInfo.Contacts = append(doc.BotInfo.Contacts, c)

	if _, err := r.store.Commit(ctx, doc); err != nil {
		return domain.Contact{}, err
	}

	r.logEntityAdded("contact", c.ID)
	return c, nil
}

// AddPartner appends a partner with a generated id and returns the stored
// record.
func (r *Repository) AddPartner(ctx context.Context, p domain.Partner) (domain.Partner, error) {
	if strings.TrimSpace(p.Name) == "" {
		return domain.Partner{}, fmt.Errorf("%w: partner name is required", domain.ErrValidation)
	}

	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return domain.Partner{}, err
	}

	p.ID = nextID(partnerIDs(doc.BotInfo.Partners))
	doc.BotInfo.Partners = append(doc.BotInfo.Partners, p)

	if _, err := r.store.Commit(ctx, doc); err != nil {
		return domain.Partner{}, err
	}

	r.logEntityAdded("partner", p.ID)
	return p, nil
}

// DeleteUniversity removes the university with the given id and reports
// whether anything was removed.
func (r *Repository) DeleteUniversity(ctx context.Context, id int) (bool, error) {
	return r.deleteEntity(ctx, "university", func(doc *domain.Document) bool {
		kept := doc.BotInfo.Universities[:0]
		for _, u := range doc.BotInfo.Universities {
			if u.ID != id {
				kept = append(kept, u)
			}
		}
		removed := len(kept) != len(doc.BotInfo.Universities)
		doc.BotInfo.Universities = kept
		return removed
	})
}

// DeleteEvent removes the event with the given id.
func (r *Repository) DeleteEvent(ctx context.Context, id int) (bool, error) {
	return r.deleteEntity(ctx, "event", func(doc *domain.Document) bool {
		kept := doc.BotInfo.Events[:0]
		for _, ev := range doc.BotInfo.Events {
			if ev.ID != id {
				kept = append(kept, ev)
			}
		}
		removed := len(kept) != len(doc.BotInfo.Events)
		doc.BotInfo.Events = kept
		return removed
	})
}

// DeletePsychologist removes the psychologist with the given id.
func (r *Repository) DeletePsychologist(ctx context.Context, id int) (bool, error) {
	return r.deleteEntity(ctx, "psychologist", func(doc *domain.Document) bool {
		kept := doc.BotInfo.Psychologists[:0]
		for _, p := range doc.BotInfo.Psychologists {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		removed := len(kept) != len(doc.BotInfo.Psychologists)
		doc.BotInfo.Psychologists = kept
		return removed
	})
}

// DeletePractice removes the practice with the given id.
func (r *Repository) DeletePractice(ctx context.Context, id int) (bool, error) {
	return r.deleteEntity(ctx, "practice", func(doc *domain.Document) bool {
		kept := doc.BotInfo.Practices[:0]
		for _, p := range doc.BotInfo.Practices {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		removed := len(kept) != len(doc.BotInfo.Practices)
		doc.BotInfo.Practices = kept
		return removed
	})
}

// DeleteContact removes the contact with the given id.
func (r *Repository) DeleteContact(ctx context.Context, id int) (bool, error) {
	return r.deleteEntity(ctx, "contact", func(doc *domain.Document) bool {
		kept := doc.BotInfo.Contacts[:0]
		for _, c := range doc.BotInfo.Contacts {
			if c.ID != id {
				kept = append(kept, c)
			}
		}
		removed := len(kept) != len(doc.BotInfo.Contacts)
		doc.BotInfo.Contacts = kept
		return removed
	})
}

// DeletePartner removes the partner with the given id.
func (r *Repository) DeletePartner(ctx context.Context, id int) (bool, error) {
	return r.deleteEntity(ctx, "partner", func(doc *domain.Document) bool {
		kept := doc.BotInfo.Partners[:0]
		for _, p := range doc.BotInfo.Partners {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		removed := len(kept) != len(doc.BotInfo.Partners)
		doc.BotInfo.Partners = kept
		return removed
	})
}

// deleteEntity runs a read-modify-write delete. The write is skipped when
// nothing matched.
func (r *Repository) deleteEntity(ctx context.Context, kind string, filter func(*domain.Document) bool) (bool, error) {
	doc, err := r.store.Fetch(ctx)
	if err != nil {
		return false, err
	}

	if !filter(&doc) {
		return false, nil
	}

	if _, err := r.store.Commit(ctx, doc); err != nil {
		return false, err
	}

	r.logger.WithFields(logging.Fields{
		"event": "entity_deleted",
		"kind":  kind,
	}).Info("removed catalog entry")

	return true, nil
}

func (r *Repository) logEntityAdded(kind string, id int) {
	r.logger.WithFields(logging.Fields{
		"event":     "entity_added",
		"kind":      kind,
		"entity_id": id,
	}).Info("added catalog entry")
}

// nextID generates max(ids, default 0)+1. Monotonic for a single writer, but
// two concurrent writers can race to the same id; accepted limitation of the
// full-document read-modify-write model.
func nextID(ids []int) int {
	maxID := 0
	for _, id := range ids {
		if id > maxID {
			maxID = id
		}
	}
	return maxID + 1
}

func universityIDs(items []domain.University) []int {
	ids := make([]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func eventIDs(items []domain.Event) []int {
	ids := make([]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func psychologistIDs(items []domain.Psychologist) []int {
	ids := make([]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func practiceIDs(items []domain.Practice) []int {
	ids := make([]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func contactIDs(items []domain.Contact) []int {
	ids := make([]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func partnerIDs(items []domain.Partner) []int {
	ids := make([]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
