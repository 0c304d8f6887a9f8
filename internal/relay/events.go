package relay

import "strings"

// Identity is an IRC participant as seen in a message source
type Identity struct {
	Nick string
	// ID is the user@host part of the source, empty for server sources
	ID string
}

// ParseIdentity splits a "nick!user@host" source
func ParseIdentity(source string) Identity {
	nick, id, _ := strings.Cut(source, "!")
	return Identity{Nick: nick, ID: id}
}

// RoomEvent is one event observed in the room. The set of implementations
// is closed: Message, Join, Part, Quit, Kick, NickChange, TopicChange,
// ModeChange and NamesSynced.
type RoomEvent interface {
	roomEvent()
}

// Message is a chat line spoken in the room
type Message struct {
	From Identity
	Text string
}

// Join is a user entering the room
type Join struct {
	Who Identity
}

// Part is a user leaving the room
type Part struct {
	Who    Identity
	Reason string
}

// Quit is a room member disconnecting from the network
type Quit struct {
	Who    Identity
	Reason string
}

// Kick is a user being removed from the room by another
type Kick struct {
	By     Identity
	Kicked string
	Reason string
}

// NickChange is a room member changing nickname
type NickChange struct {
	Who     Identity
	NewNick string
}

// TopicChange is the room topic being set
type TopicChange struct {
	Who   Identity
	Topic string
}

// ModeChange is a channel mode change; Args holds the mode string followed
// by its parameters
type ModeChange struct {
	Who  Identity
	Args []string
}

// NamesSynced reports that the transport finished reading the full member
// list of the room.
type NamesSynced struct{}

func (Message) roomEvent()     {}
func (Join) roomEvent()        {}
func (Part) roomEvent()        {}
func (Quit) roomEvent()        {}
func (Kick) roomEvent()        {}
func (NickChange) roomEvent()  {}
func (TopicChange) roomEvent() {}
func (ModeChange) roomEvent()  {}
func (NamesSynced) roomEvent() {}
