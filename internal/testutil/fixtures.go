package testutil

import (
	"github.com/spec-kit/ticketdesk/internal/domain"
)

// Fixture ids seeded by Seed.
const (
	ContactAna      int64 = 1
	ContactGroup    int64 = 5
	WhatsappMain    int64 = 3
	WhatsappDefault int64 = 4
	UserAgent       int64 = 2
	UserAdmin       int64 = 9
	QueueSales      int64 = 20
	QueueSupport    int64 = 50
)

// Seed fills the store with a small, consistent world: an individual and a
// group contact, a channel with a farewell template, a default channel
// without one, an agent on two queues and an admin without queues.
func Seed(s *Store) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Contacts[ContactAna] = &domain.Contact{ID: ContactAna, Name: "Ana", Number: "5511999"}
	s.Contacts[ContactGroup] = &domain.Contact{ID: ContactGroup, Name: "Suppliers", Number: "120363", IsGroup: true}
	s.Whatsapps[WhatsappMain] = &domain.Whatsapp{ID: WhatsappMain, Name: "main", FarewellMessage: "Bye {{name}}!"}
	s.Whatsapps[WhatsappDefault] = &domain.Whatsapp{ID: WhatsappDefault, Name: "default", IsDefault: true}
	s.Queues[QueueSales] = &domain.Queue{ID: QueueSales, Name: "sales", Color: "#0a0"}
	s.Queues[QueueSupport] = &domain.Queue{ID: QueueSupport, Name: "support", Color: "#00a"}
	s.Users[UserAgent] = &domain.User{ID: UserAgent, Name: "Bruno", Profile: domain.UserProfileUser, QueueIDs: []int64{QueueSales, QueueSupport}}
	s.Users[UserAdmin] = &domain.User{ID: UserAdmin, Name: "Carla", Profile: domain.UserProfileAdmin}
	return s
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
