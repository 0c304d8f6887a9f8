package relay

import (
	"fmt"
	"strings"
)

// Dispatch applies one room event: it refreshes the occupancy snapshot where
// membership may have changed and forwards the matching chat or
// notification line to subscribers.
func (r *Relay) Dispatch(ev RoomEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.opts.Room.Name

	switch ev := ev.(type) {
	case Message:
		r.broadcastChat(ev.From.Nick, ev.Text)

	case Join:
		r.refreshOccupancy()
		if r.isSelf(ev.Who.Nick) {
			r.log.Info().Str("room", room).Msg("Joined room")
			return
		}
		r.broadcastNotification(fmt.Sprintf("%s (%s) has joined %s", ev.Who.Nick, ev.Who.ID, room))

	case Part:
		r.refreshOccupancy()
		if r.isSelf(ev.Who.Nick) {
			return
		}
		r.broadcastNotification(fmt.Sprintf("%s (%s) has left %s", ev.Who.Nick, ev.Who.ID, room))

	case Quit:
		r.refreshOccupancy()
		if r.isSelf(ev.Who.Nick) {
			return
		}
		r.broadcastNotification(fmt.Sprintf("%s (%s) Quit (%s)", ev.Who.Nick, ev.Who.ID, ev.Reason))

	case Kick:
		r.refreshOccupancy()
		r.broadcastNotification(fmt.Sprintf("%s was kicked by %s (%s)", ev.Kicked, ev.By.Nick, ev.Reason))

	case NickChange:
		r.refreshOccupancy()
		// the room already knows us by the new nick
		if r.isSelf(ev.NewNick) {
			return
		}
		r.broadcastNotification(fmt.Sprintf("%s is now known as %s", ev.Who.Nick, ev.NewNick))

	case TopicChange:
		r.broadcastNotification(fmt.Sprintf("%s changes topic to '%s'", ev.Who.Nick, ev.Topic))

	case ModeChange:
		r.refreshOccupancy()
		r.broadcastNotification(fmt.Sprintf("%s sets mode: %s", ev.Who.Nick, strings.Join(ev.Args, " ")))

	case NamesSynced:
		r.refreshOccupancy()

	default:
		r.log.Warn().Str("event", fmt.Sprintf("%T", ev)).Msg("Unhandled room event")
	}
}
