package relay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgrelay/tgrelay/internal/storage"
)

func TestFirstContactRegistersWithDefaults(t *testing.T) {
	commands := []string{"/start", "/stop", "/notifications", "/channel", "/users", "/help", "/commands", "hello", ""}

	for _, cmd := range commands {
		t.Run(cmd, func(t *testing.T) {
			r, store, backend := newTestRelay(t, &recordingSender{})

			r.HandleCommand("100", cmd)

			st, ok := store.Get("100")
			require.True(t, ok, "subscriber must be registered")
			_, persisted := backend.saved["100"]
			assert.True(t, persisted, "registration must be persisted")

			switch cmd {
			case "/stop":
				assert.Equal(t, storage.Settings{Enabled: false, Notifications: true}, st)
			case "/notifications":
				assert.Equal(t, storage.Settings{Enabled: true, Notifications: false}, st)
			default:
				assert.Equal(t, storage.DefaultSettings, st)
			}
		})
	}
}

func TestStartReply(t *testing.T) {
	r, _, _ := newTestRelay(t, &recordingSender{})
	assert.Equal(t, "You will now receive messages from the channel #test.", r.HandleCommand("100", "/start"))

	store := storage.NewStore(&memBackend{}, zerolog.Nop())
	anon := New(Options{}, store, &recordingSender{}, zerolog.Nop())
	assert.Equal(t, "You will now receive messages from the irc.", anon.HandleCommand("100", "/start"))
}

func TestStartStopLeavesNotificationsUntouched(t *testing.T) {
	r, store, backend := newTestRelay(t, &recordingSender{})

	r.HandleCommand("100", "/notifications")
	assert.Equal(t, "You will no longer receive any messages from the irc!", r.HandleCommand("100", "/stop"))
	st, _ := store.Get("100")
	assert.Equal(t, storage.Settings{Enabled: false, Notifications: false}, st)

	r.HandleCommand("100", "/start")
	st, _ = store.Get("100")
	assert.Equal(t, storage.Settings{Enabled: true, Notifications: false}, st)
	assert.Equal(t, st, backend.saved["100"], "every mutation is written through")
}

func TestNotificationsToggle(t *testing.T) {
	r, store, backend := newTestRelay(t, &recordingSender{})

	assert.Equal(t, "Notifications disabled!", r.HandleCommand("100", "/notifications"))
	assert.False(t, backend.saved["100"].Notifications)

	assert.Equal(t, "Notifications enabled!", r.HandleCommand("100", "/notifications"))
	st, _ := store.Get("100")
	assert.Equal(t, storage.DefaultSettings, st)
	assert.True(t, backend.saved["100"].Notifications)
}

func TestChannelReply(t *testing.T) {
	r, _, _ := newTestRelay(t, &recordingSender{})
	assert.Equal(t, "You are getting messages from #test on irc.example.net", r.HandleCommand("1", "/channel"))

	store := storage.NewStore(&memBackend{}, zerolog.Nop())
	noServer := New(Options{Room: RoomIdentity{Name: "#test"}}, store, &recordingSender{}, zerolog.Nop())
	assert.Equal(t, noInformation, noServer.HandleCommand("1", "/channel"))
}

func TestUsersReply(t *testing.T) {
	r, _, _ := newTestRelay(t, &recordingSender{})
	room := &staticRoom{
		self: "relaybot",
		members: Occupancy{
			Operators: []string{"op2", "op1"},
			Voiced:    []string{"voice"},
			Users:     []string{"relaybot", "alice"},
		},
	}
	r.Attach(room)

	assert.Equal(t, noInformation, r.HandleCommand("1", "/users"), "no snapshot before any membership event")

	r.Dispatch(Join{Who: Identity{Nick: "alice", ID: "alice@host"}})
	assert.Equal(t, "Operators:\nop1, op2\nModerators:\nvoice\nUsers:\nalice, relaybot\n", r.HandleCommand("1", "/users"))
}

func TestHelpAndCommandsAreTheSame(t *testing.T) {
	r, _, _ := newTestRelay(t, &recordingSender{})
	help := r.HandleCommand("1", "/help")
	assert.Equal(t, helpText, help)
	assert.Equal(t, help, r.HandleCommand("1", "/commands"))
}

func TestUnknownCommandDoesNotMutate(t *testing.T) {
	r, store, backend := newTestRelay(t, &recordingSender{})
	r.HandleCommand("1", "/stop")
	saves := backend.saves

	for _, text := range []string{"/START", "start", "/start now", " /stop", "/help@relaybot"} {
		assert.Equal(t, unknownCommand, r.HandleCommand("1", text), text)
	}
	st, _ := store.Get("1")
	assert.False(t, st.Enabled)
	assert.Equal(t, saves, backend.saves)
}

func TestCommandsNeverSendDirectly(t *testing.T) {
	sender := &recordingSender{}
	r, _, _ := newTestRelay(t, sender)
	r.HandleCommand("1", "/start")
	r.HandleCommand("1", "/users")
	assert.Empty(t, sender.lines(), "replies are returned, delivery is up to the transport")
}

func TestCorruptSettingsFileStillServesCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telegram_bot_users.save")
	require.NoError(t, os.WriteFile(path, []byte(`{"100": {"enabled": tru`), 0644))

	store, err := storage.Load(&storage.JSONFile{Path: path}, zerolog.Nop())
	require.Error(t, err)

	sender := &recordingSender{}
	r := New(Options{Room: testRoom}, store, sender, zerolog.Nop())
	assert.Equal(t, "You will now receive messages from the channel #test.", r.HandleCommand("100", "/start"))

	r.Dispatch(Message{From: Identity{Nick: "alice"}, Text: "hello"})
	assert.Equal(t, []string{"<alice> hello"}, sender.to("100"))
}
