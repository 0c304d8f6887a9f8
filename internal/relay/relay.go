// Package relay routes events between one IRC channel and the Telegram
// users subscribed to it.
//
// Room events are translated by Dispatch into chat lines and notification
// lines and fanned out to subscribers according to their settings. Private
// commands sent by subscribers are interpreted by HandleCommand, which
// updates the subscriber store and produces the reply text.
//
// Both transports deliver events from their own goroutines; every exported
// entry point of Relay holds a single mutex so the core logic, the
// subscriber store and the occupancy snapshot are only ever touched by one
// event at a time.
package relay

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tgrelay/tgrelay/internal/storage"
)

// RoomIdentity names the bridged room
type RoomIdentity struct {
	Name   string
	Server string
}

// Options configures a Relay
type Options struct {
	Room RoomIdentity
	// OwnerID is the subscriber id that receives operational notices.
	// Empty disables owner notifications.
	OwnerID string
}

// Relay is the composition root of the bridge. It owns the subscriber store
// and the room occupancy snapshot.
type Relay struct {
	mu sync.Mutex

	opts   Options
	store  *storage.Store
	sender Sender
	room   Room
	log    zerolog.Logger

	occupancy     Occupancy
	haveOccupancy bool
}

// New creates a relay around store that delivers through sender
func New(opts Options, store *storage.Store, sender Sender, log zerolog.Logger) *Relay {
	return &Relay{
		opts:   opts,
		store:  store,
		sender: sender,
		log:    log,
	}
}

// Attach binds the live room state used to refresh the occupancy snapshot
// and to recognize the bot's own events.
func (r *Relay) Attach(room Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.room = room
}

// BroadcastChat sends a chat line to every enabled subscriber
func (r *Relay) BroadcastChat(from, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastChat(from, text)
}

// BroadcastNotification sends a notification line to every enabled
// subscriber that has notifications turned on.
func (r *Relay) BroadcastNotification(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastNotification(text)
}

// NotifyOwner sends an operational notice to the configured owner. Delivery
// is best effort.
func (r *Relay) NotifyOwner(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opts.OwnerID == "" {
		r.log.Debug().Str("notice", text).Msg("No owner configured, dropping notice")
		return
	}
	if err := r.sender.Send(r.opts.OwnerID, text); err != nil {
		r.log.Debug().Err(err).Msg("Could not notify owner")
	}
}

// Occupancy returns the current occupancy snapshot and whether one has been
// taken yet.
func (r *Relay) Occupancy() (Occupancy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.occupancy, r.haveOccupancy
}

func (r *Relay) broadcastChat(from, text string) {
	line := fmt.Sprintf("<%s> %s", from, text)
	for _, id := range r.store.IDs() {
		st, _ := r.store.Get(id)
		if !st.Enabled {
			continue
		}
		r.send(id, line)
	}
}

func (r *Relay) broadcastNotification(text string) {
	line := "* " + text
	for _, id := range r.store.IDs() {
		st, _ := r.store.Get(id)
		if !st.Enabled || !st.Notifications {
			continue
		}
		r.send(id, line)
	}
}

// send delivers one line; failures are logged and never retried
func (r *Relay) send(id, line string) {
	if err := r.sender.Send(id, line); err != nil {
		r.log.Warn().Err(err).Str("subscriber", id).Msg("Error sending message")
		return
	}
	r.log.Debug().Str("subscriber", id).Str("line", line).Msg("Sent")
}

// refreshOccupancy replaces the snapshot with the room's live membership
func (r *Relay) refreshOccupancy() {
	if r.room == nil {
		return
	}
	r.occupancy = r.room.Members().Sorted()
	r.haveOccupancy = true
}

func (r *Relay) isSelf(nick string) bool {
	return r.room != nil && strings.EqualFold(nick, r.room.Self())
}
