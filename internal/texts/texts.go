// Package texts holds the user-facing message templates and keyboard labels.
// Templates are looked up by typed key from a table resolved at startup, so
// handlers never depend on how the strings are stored.
package texts

import "fmt"

// Keyboard labels. These are both rendered as buttons and matched against
// incoming text, so they must stay byte-identical in both places.
const (
	BackButton = "Назад ↩️"
	HomeButton = "Вернуться в главное меню 🏠"

	MenuUniversities  = "Jarqyn в твоём университете 🎓"
	MenuPsychologists = "Найти психолога 🧠"
	MenuPractices     = "Практики 🧘"
	MenuContacts      = "Контакты ☎️"
	MenuPartners      = "Наши партнёры 🤝"
	MenuReportIssue   = "Сообщить об ошибке ⚠️"

	CategorySuffix = " 🧘"
)

// Key identifies a message template.
type Key string

const (
	StartFallback        Key = "start_fallback"
	SelectOption         Key = "select_option"
	GoToMainMenu         Key = "go_to_main_menu"
	NavigationHint       Key = "navigation_hint"
	Unavailable          Key = "unavailable"
	NotFound             Key = "not_found"
	NoUniversities       Key = "no_universities"
	SelectUniversity     Key = "select_university"
	UniversityEvents     Key = "university_events"
	EventDate            Key = "event_date"
	EventLink            Key = "event_link"
	VisitWebsite         Key = "visit_website"
	NoPsychologists      Key = "no_psychologists"
	PsychologistSpec     Key = "psychologist_specialty"
	PsychologistPrice    Key = "psychologist_price"
	PsychologistPhone    Key = "psychologist_phone"
	PriceUnknown         Key = "price_unknown"
	NoPractices          Key = "no_practices"
	SelectCategory       Key = "select_category"
	CategoryHeader       Key = "category_header"
	CategoryEmpty        Key = "category_empty"
	SelectPractice       Key = "select_practice"
	PracticeNotFound     Key = "practice_not_found"
	PracticeAuthor       Key = "practice_author"
	NewPractices         Key = "new_practices"
	NoContacts           Key = "no_contacts"
	ContactsHeader       Key = "contacts_header"
	NoPartners           Key = "no_partners"
	PartnersHeader       Key = "partners_header"
	PartnerLink          Key = "partner_link"
	ReportIssuePrompt    Key = "report_issue_prompt"
	ReportIssueThanks    Key = "report_issue_thanks"
	ReportIssueToAdmin   Key = "report_issue_to_admin"
	AnnounceUsage        Key = "announce_usage"
	AnnounceDone         Key = "announce_done"
	AnnounceDenied       Key = "announce_denied"
)

var defaults = map[Key]string{
	StartFallback: "Привет, меня зовут Dos!\n" +
		"Я друг проекта психологической поддержки Jarqyn.\n" +
		"Я помогу справиться с тревогой, стрессом, выгоранием.\n" +
		"Выберите действие:",
	SelectOption:       "Пожалуйста, выберите один из вариантов меню.",
	GoToMainMenu:       "Переходим в главное меню.",
	NavigationHint:     "Используйте кнопки для навигации.",
	Unavailable:        "Временно недоступно. Попробуйте позже.",
	NotFound:           "Не найдено. Выберите вариант из списка.",
	NoUniversities:     "Нет информации об университетах.",
	SelectUniversity:   "Выберите университет:",
	UniversityEvents:   "Ближайшие события:",
	EventDate:          "Дата: %s",
	EventLink:          "Подробнее о событии",
	VisitWebsite:       "Перейти на сайт",
	NoPsychologists:    "Нет психологов.",
	PsychologistSpec:   "Специализация: %s",
	PsychologistPrice:  "Стоимость: %s",
	PsychologistPhone:  "Телефон: %s",
	PriceUnknown:       "Цена не указана",
	NoPractices:        "Нет доступных практик.",
	SelectCategory:     "Выберите категорию практик:",
	CategoryHeader:     "Практики «%s»:\n\n",
	CategoryEmpty:      "В категории «%s» пока нет практик.",
	SelectPractice:     "Отправьте номер практики, чтобы открыть её.",
	PracticeNotFound:   "Практика не найдена.",
	PracticeAuthor:     "Автор: %s",
	NewPractices:       "Появились новые практики!\n\n",
	NoContacts:         "Нет контактов.",
	ContactsHeader:     "Наши контакты:\n\n",
	NoPartners:         "Нет информации о партнёрах.",
	PartnersHeader:     "Наши партнёры:\n\n",
	PartnerLink:        "Перейти по ссылке",
	ReportIssuePrompt:  "Опишите вашу проблему, и мы постараемся её решить. Отправьте сообщение в чат.",
	ReportIssueThanks:  "Спасибо! Мы рассмотрим вашу проблему.",
	ReportIssueToAdmin: "Сообщение об ошибке от пользователя %d:\n%s",
	AnnounceUsage:      "Использование: /announce <текст объявления>",
	AnnounceDone:       "Объявление успешно отправлено всем пользователям.",
	AnnounceDenied:     "У вас нет прав на выполнение этой команды.",
}

// Table resolves message templates by key.
type Table struct {
	entries map[Key]string
}

// Default returns the table with the built-in Russian strings.
func Default() *Table {
	entries := make(map[Key]string, len(defaults))
	for k, v := range defaults {
		entries[k] = v
	}
	return &Table{entries: entries}
}

// Get returns the template for key, or the key itself when missing so a typo
// surfaces in the chat instead of an empty message.
func (t *Table) Get(key Key) string {
	if text, ok := t.entries[key]; ok {
		return text
	}
	return string(key)
}

// Format renders the template for key with fmt.Sprintf semantics.
func (t *Table) Format(key Key, args ...any) string {
	return fmt.Sprintf(t.Get(key), args...)
}
