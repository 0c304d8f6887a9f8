package relay

import (
	"errors"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgrelay/tgrelay/internal/storage"
)

// memBackend keeps the last saved mapping in memory
type memBackend struct {
	saved map[string]storage.Settings
	saves int
}

func (b *memBackend) Load() (map[string]storage.Settings, error) {
	return b.saved, nil
}

func (b *memBackend) Save(subs map[string]storage.Settings) error {
	b.saves++
	b.saved = make(map[string]storage.Settings, len(subs))
	for k, v := range subs {
		b.saved[k] = v
	}
	return nil
}

type sentLine struct {
	To   string
	Text string
}

// recordingSender records every delivery and can fail for chosen ids
type recordingSender struct {
	mu   sync.Mutex
	sent []sentLine
	fail map[string]error
}

func (s *recordingSender) Send(to, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[to]; err != nil {
		return err
	}
	s.sent = append(s.sent, sentLine{To: to, Text: text})
	return nil
}

func (s *recordingSender) lines() []sentLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentLine(nil), s.sent...)
}

func (s *recordingSender) to(id string) []string {
	var out []string
	for _, l := range s.lines() {
		if l.To == id {
			out = append(out, l.Text)
		}
	}
	return out
}

func (s *recordingSender) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}

// staticRoom is a Room with fixed membership
type staticRoom struct {
	self    string
	members Occupancy
}

func (r *staticRoom) Self() string       { return r.self }
func (r *staticRoom) Members() Occupancy { return r.members }

var testRoom = RoomIdentity{Name: "#test", Server: "irc.example.net"}

func newTestRelay(t *testing.T, sender Sender) (*Relay, *storage.Store, *memBackend) {
	t.Helper()
	backend := &memBackend{}
	store := storage.NewStore(backend, zerolog.Nop())
	r := New(Options{Room: testRoom}, store, sender, zerolog.Nop())
	return r, store, backend
}

func seed(t *testing.T, store *storage.Store, id string, st storage.Settings) {
	t.Helper()
	store.GetOrCreate(id)
	require.NoError(t, store.Set(id, storage.FieldEnabled, st.Enabled))
	require.NoError(t, store.Set(id, storage.FieldNotifications, st.Notifications))
}

func TestBroadcastChatOnlyEnabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sender := NewMockSender(ctrl)
	r, store, _ := newTestRelay(t, sender)

	seed(t, store, "1", storage.Settings{Enabled: true, Notifications: true})
	seed(t, store, "2", storage.Settings{Enabled: false, Notifications: true})
	seed(t, store, "3", storage.Settings{Enabled: true, Notifications: false})

	sender.EXPECT().Send("1", "<alice> hello").Return(nil)
	sender.EXPECT().Send("3", "<alice> hello").Return(nil)

	r.BroadcastChat("alice", "hello")
}

func TestBroadcastNotificationRequiresEnabledAndNotifications(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sender := NewMockSender(ctrl)
	r, store, _ := newTestRelay(t, sender)

	seed(t, store, "1", storage.Settings{Enabled: true, Notifications: true})
	seed(t, store, "2", storage.Settings{Enabled: false, Notifications: true})
	seed(t, store, "3", storage.Settings{Enabled: true, Notifications: false})
	seed(t, store, "4", storage.Settings{Enabled: false, Notifications: false})

	sender.EXPECT().Send("1", "* bob is now known as robert").Return(nil)

	r.BroadcastNotification("bob is now known as robert")
}

func TestBroadcastContinuesAfterSendFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sender := NewMockSender(ctrl)
	r, store, _ := newTestRelay(t, sender)

	store.GetOrCreate("1")
	store.GetOrCreate("2")
	store.GetOrCreate("3")

	gomock.InOrder(
		sender.EXPECT().Send("1", "<alice> hi").Return(errors.New("blocked by user")),
		sender.EXPECT().Send("2", "<alice> hi").Return(errors.New("timeout")),
		sender.EXPECT().Send("3", "<alice> hi").Return(nil),
	)

	r.BroadcastChat("alice", "hi")
}

func TestNotifyOwner(t *testing.T) {
	t.Run("owner configured", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		sender := NewMockSender(ctrl)
		store := storage.NewStore(&memBackend{}, zerolog.Nop())
		r := New(Options{Room: testRoom, OwnerID: "99"}, store, sender, zerolog.Nop())

		sender.EXPECT().Send("99", "settings lost").Return(errors.New("network down"))
		r.NotifyOwner("settings lost")
	})

	t.Run("no owner", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		sender := NewMockSender(ctrl)
		r, _, _ := newTestRelay(t, sender)

		// no Send expected
		r.NotifyOwner("settings lost")
	})
}

func TestOccupancyFormat(t *testing.T) {
	o := Occupancy{
		Operators: []string{"carol", "alice"},
		Voiced:    []string{"dave"},
		Users:     []string{"erin", "bob"},
	}.Sorted()

	assert.Equal(t, "Operators:\nalice, carol\nModerators:\ndave\nUsers:\nbob, erin\n", o.Format())
	assert.False(t, o.Empty())
	assert.True(t, Occupancy{}.Empty())
}

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		source string
		want   Identity
	}{
		{"alice!~alice@host.example", Identity{Nick: "alice", ID: "~alice@host.example"}},
		{"irc.example.net", Identity{Nick: "irc.example.net"}},
		{"bob!bob", Identity{Nick: "bob", ID: "bob"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseIdentity(tt.source), tt.source)
	}
}
