package relay

import (
	"fmt"

	"github.com/tgrelay/tgrelay/internal/storage"
)

const (
	noInformation  = "I don't have this information currently :("
	unknownCommand = "Unknown command - you might want to take a look at /help"

	helpText = "/start - enable the bot to relay messages from the irc channel\n" +
		"/stop - stop the bot from sending you any messages\n" +
		"(all irc conversation while disabled will be lost)\n" +
		"/notifications - enable/disable irc notifications\n" +
		"/channel - display basic irc channel information\n" +
		"/users - lists all the irc users in the channel\n" +
		"/help or /commands - prints this message\n"
)

// HandleCommand interprets text sent privately by subscriber id and returns
// the reply. The subscriber is registered before the command is looked at,
// whatever the command is.
func (r *Relay) HandleCommand(id, text string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Debug().Str("subscriber", id).Str("command", text).Msg("Command received")
	r.store.GetOrCreate(id)

	switch text {
	case "/start":
		return r.cmdStart(id)
	case "/stop":
		return r.cmdStop(id)
	case "/notifications":
		return r.cmdNotifications(id)
	case "/channel":
		return r.cmdChannel()
	case "/users":
		return r.cmdUsers()
	case "/help", "/commands":
		return helpText
	default:
		return unknownCommand
	}
}

func (r *Relay) cmdStart(id string) string {
	r.set(id, storage.FieldEnabled, true)

	source := "the irc"
	if r.opts.Room.Name != "" {
		source = "the channel " + r.opts.Room.Name
	}
	return fmt.Sprintf("You will now receive messages from %s.", source)
}

func (r *Relay) cmdStop(id string) string {
	r.set(id, storage.FieldEnabled, false)
	return "You will no longer receive any messages from the irc!"
}

func (r *Relay) cmdNotifications(id string) string {
	st, _ := r.store.Get(id)
	on := !st.Notifications
	r.set(id, storage.FieldNotifications, on)
	if on {
		return "Notifications enabled!"
	}
	return "Notifications disabled!"
}

func (r *Relay) cmdChannel() string {
	room := r.opts.Room
	if room.Name == "" || room.Server == "" {
		return noInformation
	}
	return fmt.Sprintf("You are getting messages from %s on %s", room.Name, room.Server)
}

func (r *Relay) cmdUsers() string {
	if !r.haveOccupancy || r.occupancy.Empty() {
		return noInformation
	}
	return r.occupancy.Format()
}

// set mutates a subscriber registered by HandleCommand. A persist failure
// is logged and the in-memory change kept.
func (r *Relay) set(id string, field storage.Field, value bool) {
	if err := r.store.Set(id, field, value); err != nil {
		r.log.Error().Err(err).Str("subscriber", id).Stringer("field", field).Msg("Error saving subscriber settings")
	}
}
