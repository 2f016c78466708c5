// Package domain defines the remote document schema and shared error taxonomy.
package domain

// Link is an optional titled URL attached to universities.
type Link struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
}

// University describes a partner university chapter.
type University struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Instagram   string `json:"instagram"`
	Description string `json:"description"`
	Link        Link   `json:"link"`
}

// Event is a university-scoped announcement. A dangling UniversityID is
// tolerated: the event simply never surfaces.
type Event struct {
	ID           int    `json:"id"`
	UniversityID int    `json:"university_id"`
	Title        string `json:"title"`
	Date         string `json:"date"`
	Description  string `json:"description"`
	Link         string `json:"link"`
}

// ContactInfo holds reachability details for a psychologist.
type ContactInfo struct {
	Phone string `json:"phone,omitempty"`
}

// Psychologist describes a listed specialist. Price 0 means "not set".
type Psychologist struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	Specialty string      `json:"specialty"`
	Instagram string      `json:"instagram,omitempty"`
	Contacts  ContactInfo `json:"contacts"`
	Price     int         `json:"price"`
}

// Audio is an optional attachment on a practice.
type Audio struct {
	URL string `json:"url"`
}

// Practice is a guided exercise grouped by a free-text category.
type Practice struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Content     string `json:"content"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	Audio       *Audio `json:"audio,omitempty"`
}

// Contact is a project contact entry.
type Contact struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Partner is a partner organisation entry.
type Partner struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Link        string `json:"link,omitempty"`
}

// Catalog holds the content collections under bot_info.
type Catalog struct {
	StartText     string         `json:"start_text"`
	Universities  []University   `json:"universities"`
	Events        []Event        `json:"events"`
	Psychologists []Psychologist `json:"psychologists"`
	Practices     []Practice     `json:"practices"`
	Contacts      []Contact      `json:"contacts"`
	Partners      []Partner      `json:"partners"`
}

// Document is the root of the single remote JSON resource. Users and AdminIDs
// carry set semantics: order is irrelevant and duplicates are never written.
type Document struct {
	Users    []int64 `json:"users"`
	AdminIDs []int64 `json:"admin_ids"`
	BotInfo  Catalog `json:"bot_info"`
}

// Clone returns a copy whose slices do not share backing arrays with the
// receiver, so a cached document stays intact while callers append or filter.
func (d Document) Clone() Document {
	out := d
	out.Users = append([]int64(nil), d.Users...)
	out.AdminIDs = append([]int64(nil), d.AdminIDs...)
	out.BotInfo.Universities = append([]University(nil), d.BotInfo.Universities...)
	out.BotInfo.Events = append([]Event(nil), d.BotInfo.Events...)
	out.BotInfo.Psychologists = append([]Psychologist(nil), d.BotInfo.Psychologists...)
	out.BotInfo.Practices = append([]Practice(nil), d.BotInfo.Practices...)
	out.BotInfo.Contacts = append([]Contact(nil), d.BotInfo.Contacts...)
	out.BotInfo.Partners = append([]Partner(nil), d.BotInfo.Partners...)
	return out
}

// HasUser reports whether chatID is already registered.
func (d Document) HasUser(chatID int64) bool {
	for _, id := range d.Users {
		if id == chatID {
			return true
		}
	}
	return false
}

// HasAdmin reports whether chatID is on the admin allow-list.
func (d Document) HasAdmin(chatID int64) bool {
	for _, id := range d.AdminIDs {
		if id == chatID {
			return true
		}
	}
	return false
}
