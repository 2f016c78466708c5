package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"jarqyn_support_bot/internal/domain"
)

type fakeStore struct {
	doc       domain.Document
	fetchErr  error
	commitErr error
	fetches   int
	commits   int
}

func (f *fakeStore) Fetch(context.Context) (domain.Document, error) {
	f.fetches++
	if f.fetchErr != nil {
		return domain.Document{}, f.fetchErr
	}
	return f.doc.Clone(), nil
}

func (f *fakeStore) Commit(_ context.Context, doc domain.Document) (domain.Document, error) {
	f.commits++
	if f.commitErr != nil {
		return domain.Document{}, f.commitErr
	}
	f.doc = doc.Clone()
	return f.doc, nil
}

func newTestRepository(doc domain.Document) (*Repository, *fakeStore) {
	hookLogger, _ := logtest.NewNullLogger()
	store := &fakeStore{doc: doc}
	return NewRepository(store, logrus.NewEntry(hookLogger)), store
}

func TestAddPracticeAssignsIDOneOnEmptyCollection(t *testing.T) {
	repo, store := newTestRepository(domain.Document{})

	added, err := repo.AddPractice(context.Background(), domain.Practice{Name: "Дыхание 4-7-8", Category: "Дыхание"})
	if err != nil {
		t.Fatalf("AddPractice returned error: %v", err)
	}

	if added.ID != 1 {
		t.Fatalf("expected first id to be 1, got %d", added.ID)
	}
	if len(store.doc.BotInfo.Practices) != 1 {
		t.Fatalf("expected practice to be committed, got %d entries", len(store.doc.BotInfo.Practices))
	}
}

func TestAddPracticeAssignsMaxPlusOne(t *testing.T) {
	repo, _ := newTestRepository(domain.Document{
		BotInfo: domain.Catalog{
			Practices: []domain.Practice{
				{ID: 1, Name: "a", Category: "c"},
				{ID: 2, Name: "b", Category: "c"},
				{ID: 5, Name: "c", Category: "c"},
			},
		},
	})

	added, err := repo.AddPractice(context.Background(), domain.Practice{Name: "Сон", Category: "Сон"})
	if err != nil {
		t.Fatalf("AddPractice returned error: %v", err)
	}

	if added.ID != 6 {
		t.Fatalf("expected id max+1=6, got %d", added.ID)
	}
}

func TestAddPracticeRejectsMissingFields(t *testing.T) {
	repo, store := newTestRepository(domain.Document{})

	_, err := repo.AddPractice(context.Background(), domain.Practice{Name: " "})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if store.commits != 0 {
		t.Fatalf("expected no commit on validation failure, got %d", store.commits)
	}
}

func TestAddUserIsIdempotent(t *testing.T) {
	repo, store := newTestRepository(domain.Document{Users: []int64{7}})

	ctx := context.Background()

	if err := repo.AddUser(ctx, 7); err != nil {
		t.Fatalf("AddUser returned error: %v", err)
	}
	if store.commits != 0 {
		t.Fatalf("expected no write for already-present user, got %d commits", store.commits)
	}

	if err := repo.AddUser(ctx, 8); err != nil {
		t.Fatalf("AddUser returned error: %v", err)
	}
	if store.commits != 1 {
		t.Fatalf("expected one write for new user, got %d commits", store.commits)
	}
	if !store.doc.HasUser(8) {
		t.Fatalf("expected user 8 to be registered, got %v", store.doc.Users)
	}
}

func TestPracticeCategoriesDistinctFirstSeenOrder(t *testing.T) {
	repo, _ := newTestRepository(domain.Document{
		BotInfo: domain.Catalog{
			Practices: []domain.Practice{
				{ID: 1, Name: "a", Category: "Дыхание"},
				{ID: 2, Name: "b", Category: "Сон"},
				{ID: 3, Name: "c", Category: "Дыхание"},
				{ID: 4, Name: "d", Category: ""},
				{ID: 5, Name: "e", Category: "Медитация"},
			},
		},
	})

	categories, err := repo.PracticeCategories(context.Background())
	if err != nil {
		t.Fatalf("PracticeCategories returned error: %v", err)
	}

	want := []string{"Дыхание", "Сон", "Медитация"}
	if len(categories) != len(want) {
		t.Fatalf("expected %v, got %v", want, categories)
	}
	for i := range want {
		if categories[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, categories)
		}
	}
}

func TestPracticesByCategoryFiltersInOrder(t *testing.T) {
	repo, _ := newTestRepository(domain.Document{
		BotInfo: domain.Catalog{
			Practices: []domain.Practice{
				{ID: 1, Name: "a", Category: "Сон"},
				{ID: 2, Name: "b", Category: "Дыхание"},
				{ID: 3, Name: "c", Category: "Сон"},
			},
		},
	})

	matched, err := repo.PracticesByCategory(context.Background(), "Сон")
	if err != nil {
		t.Fatalf("PracticesByCategory returned error: %v", err)
	}

	if len(matched) != 2 || matched[0].ID != 1 || matched[1].ID != 3 {
		t.Fatalf("expected practices 1 and 3, got %+v", matched)
	}
}

func TestEventsForSkipsDanglingReferences(t *testing.T) {
	repo, _ := newTestRepository(domain.Document{
		BotInfo: domain.Catalog{
			Universities: []domain.University{{ID: 1, Name: "KBTU"}},
			Events: []domain.Event{
				{ID: 1, UniversityID: 1, Title: "meetup"},
				{ID: 2, UniversityID: 99, Title: "orphan"},
			},
		},
	})

	events, err := repo.EventsFor(context.Background(), 1)
	if err != nil {
		t.Fatalf("EventsFor returned error: %v", err)
	}
	if len(events) != 1 || events[0].Title != "meetup" {
		t.Fatalf("expected only the attached event, got %+v", events)
	}

	orphaned, err := repo.EventsFor(context.Background(), 2)
	if err != nil {
		t.Fatalf("EventsFor returned error: %v", err)
	}
	if len(orphaned) != 0 {
		t.Fatalf("expected no events for unknown university, got %+v", orphaned)
	}
}

func TestDeletePracticeReportsWhetherRemoved(t *testing.T) {
	repo, store := newTestRepository(domain.Document{
		BotInfo: domain.Catalog{
			Practices: []domain.Practice{{ID: 3, Name: "a", Category: "c"}},
		},
	})

	ctx := context.Background()

	removed, err := repo.DeletePractice(ctx, 3)
	if err != nil {
		t.Fatalf("DeletePractice returned error: %v", err)
	}
	if !removed {
		t.Fatalf("expected removal to be reported")
	}
	if len(store.doc.BotInfo.Practices) != 0 {
		t.Fatalf("expected practice to be gone, got %+v", store.doc.BotInfo.Practices)
	}

	removed, err = repo.DeletePractice(ctx, 3)
	if err != nil {
		t.Fatalf("DeletePractice returned error: %v", err)
	}
	if removed {
		t.Fatalf("expected second delete to report nothing removed")
	}
	if store.commits != 1 {
		t.Fatalf("expected no write when nothing matched, got %d commits", store.commits)
	}
}

func TestStoreFailurePropagatesUnchanged(t *testing.T) {
	repo, store := newTestRepository(domain.Document{})
	store.fetchErr = domain.ErrStoreUnavailable

	if _, err := repo.Practices(context.Background()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	if _, err := repo.AddContact(context.Background(), domain.Contact{Name: "x"}); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from mutation, got %v", err)
	}
}

func TestPracticeByIDNotFound(t *testing.T) {
	repo, _ := newTestRepository(domain.Document{})

	_, err := repo.PracticeByID(context.Background(), 9)
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestIsAdminChecksAllowList(t *testing.T) {
	repo, _ := newTestRepository(domain.Document{AdminIDs: []int64{42}})

	ctx := context.Background()

	ok, err := repo.IsAdmin(ctx, 42)
	if err != nil || !ok {
		t.Fatalf("expected 42 to be admin, got ok=%v err=%v", ok, err)
	}

	ok, err = repo.IsAdmin(ctx, 7)
	if err != nil || ok {
		t.Fatalf("expected 7 to not be admin, got ok=%v err=%v", ok, err)
	}
}
