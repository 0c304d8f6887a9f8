package relay

//go:generate mockgen -source=ports.go -destination=mock_ports_test.go -package=relay

// Sender delivers a line of text to one subscriber
type Sender interface {
	Send(to string, text string) error
}

// Room is the live state of the chatroom as tracked by the transport
type Room interface {
	// Self returns the bot's current nickname
	Self() string
	// Members returns the current membership of the room
	Members() Occupancy
}
