package irc

import (
	"crypto/tls"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"
	"github.com/rs/zerolog"

	"github.com/tgrelay/tgrelay/internal/config"
	"github.com/tgrelay/tgrelay/internal/relay"
)

// Version information (set at build time or here)
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// rejoinDelay is how long the bot waits before rejoining after a kick
var rejoinDelay = 5 * time.Second

// EventSink receives the room events observed on the channel
type EventSink interface {
	Dispatch(relay.RoomEvent)
}

// outbound is the part of the connection used to talk back to the server
type outbound interface {
	Send(command string, params ...string) error
}

// Client is the IRC side of the relay: it keeps the bot in the channel,
// tracks the channel membership and turns channel traffic into room events.
type Client struct {
	conn *ircevent.Connection
	out  outbound
	nick func() string

	cfg     *config.Config
	sink    EventSink
	channel *channelState
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewClient creates a new IRC client delivering room events to sink
func NewClient(cfg *config.Config, sink EventSink, log zerolog.Logger) *Client {
	c := newClient(cfg, sink, log)

	conn := &ircevent.Connection{
		Server:      fmt.Sprintf("%s:%d", cfg.Server, cfg.Port),
		Nick:        cfg.Nick,
		User:        cfg.Username,
		RealName:    cfg.IRCName,
		Password:    cfg.ServerPass,
		QuitMessage: "Shutting down",
		UseTLS:      cfg.UseTLS,
		TLSConfig:   &tls.Config{ServerName: cfg.Server},
		Log:         stdLogger(log),

		// CTCP requests become CTCP_* events, VERSION is answered with Version
		EnableCTCP: true,
		Version:    fmt.Sprintf("tgrelay %s (built %s, commit %s)", Version, BuildDate, GitCommit),
	}
	c.conn = conn
	c.out = conn
	c.nick = conn.CurrentNick

	c.registerHandlers()

	return c
}

// newClient builds a client without a connection
func newClient(cfg *config.Config, sink EventSink, log zerolog.Logger) *Client {
	return &Client{
		cfg:     cfg,
		sink:    sink,
		channel: newChannelState(cfg.Channel),
		log:     log.With().Str("component", "irc").Logger(),
	}
}

// stdLogger adapts zerolog for ircevent, which logs through the standard
// library logger
func stdLogger(zl zerolog.Logger) *log.Logger {
	return log.New(zl.With().Str("component", "ircevent").Logger(), "", 0)
}

func (c *Client) registerHandlers() {
	// Connected (end of MOTD)
	c.conn.AddCallback("376", c.onConnect)
	c.conn.AddCallback("422", c.onConnect) // MOTD missing is also "connected"

	c.conn.AddCallback("005", c.onISupport) // RPL_ISUPPORT
	c.conn.AddCallback("433", c.onNickInUse)

	// Channel membership
	c.conn.AddCallback("353", c.onNames)    // RPL_NAMREPLY
	c.conn.AddCallback("366", c.onNamesEnd) // RPL_ENDOFNAMES
	c.conn.AddCallback("JOIN", c.onJoin)
	c.conn.AddCallback("PART", c.onPart)
	c.conn.AddCallback("QUIT", c.onQuit)
	c.conn.AddCallback("KICK", c.onKick)
	c.conn.AddCallback("NICK", c.onNick)
	c.conn.AddCallback("MODE", c.onMode)
	c.conn.AddCallback("TOPIC", c.onTopic)

	c.conn.AddCallback("PRIVMSG", c.onPrivMsg)
	c.conn.AddCallback("CTCP_ACTION", c.onAction)
}

// Connect initiates the IRC connection
func (c *Client) Connect() error {
	return c.conn.Connect()
}

// Loop runs the IRC event loop (blocking)
func (c *Client) Loop() {
	c.conn.Loop()
}

// Quit disconnects from IRC. Only the first call has an effect.
func (c *Client) Quit(message string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.conn.QuitMessage = message
	c.conn.Quit()
}

// Self returns the bot's current nickname
func (c *Client) Self() string {
	return c.nick()
}

// Members returns the current membership of the channel
func (c *Client) Members() relay.Occupancy {
	return c.channel.occupancy()
}

func (c *Client) isSelf(nick string) bool {
	return fold(nick) == fold(c.nick())
}

func (c *Client) isChannel(target string) bool {
	return fold(target) == fold(c.cfg.Channel)
}

func (c *Client) join() {
	if err := c.out.Send("JOIN", c.cfg.Channel); err != nil {
		c.log.Error().Err(err).Str("channel", c.cfg.Channel).Msg("Could not join channel")
	}
}

func (c *Client) onConnect(e ircmsg.Message) {
	c.log.Info().Msg("Connected to IRC server")
	c.log.Info().Str("channel", c.cfg.Channel).Msg("Joining channel")
	c.join()
}

func (c *Client) onISupport(e ircmsg.Message) {
	// 005 <me> TOKEN[=value]... :are supported by this server
	if len(e.Params) < 2 {
		return
	}
	for _, token := range e.Params[1 : len(e.Params)-1] {
		key, value, _ := strings.Cut(token, "=")
		switch key {
		case "PREFIX":
			c.channel.setPrefix(value)
		case "CHANMODES":
			c.channel.setChanModes(value)
		}
	}
}

func (c *Client) onNickInUse(e ircmsg.Message) {
	// ircevent retries with an underscore appended
	c.log.Warn().Str("nick", c.cfg.Nick).Msg("Nickname already in use")
}

func (c *Client) onNames(e ircmsg.Message) {
	// 353 <me> <symbol> <channel> :<names>
	if len(e.Params) < 4 || !c.isChannel(e.Params[2]) {
		return
	}
	c.channel.addNames(e.Params[3])
}

func (c *Client) onNamesEnd(e ircmsg.Message) {
	// 366 <me> <channel> :End of /NAMES list
	if len(e.Params) < 2 || !c.isChannel(e.Params[1]) {
		return
	}
	c.channel.endNames()
	c.sink.Dispatch(relay.NamesSynced{})
}

func (c *Client) onJoin(e ircmsg.Message) {
	if len(e.Params) < 1 || !c.isChannel(e.Params[0]) {
		return
	}
	who := relay.ParseIdentity(e.Source)
	if c.isSelf(who.Nick) {
		// a NAMES listing follows
		c.channel.reset()
	}
	c.channel.join(who.Nick)
	c.sink.Dispatch(relay.Join{Who: who})
}

func (c *Client) onPart(e ircmsg.Message) {
	if len(e.Params) < 1 || !c.isChannel(e.Params[0]) {
		return
	}
	who := relay.ParseIdentity(e.Source)
	if c.isSelf(who.Nick) {
		c.channel.reset()
	} else {
		c.channel.remove(who.Nick)
	}
	c.sink.Dispatch(relay.Part{Who: who, Reason: param(e, 1)})
}

func (c *Client) onQuit(e ircmsg.Message) {
	who := relay.ParseIdentity(e.Source)
	if !c.channel.remove(who.Nick) {
		return
	}
	c.sink.Dispatch(relay.Quit{Who: who, Reason: param(e, 0)})
}

func (c *Client) onKick(e ircmsg.Message) {
	// KICK <channel> <nick> [:<reason>]
	if len(e.Params) < 2 || !c.isChannel(e.Params[0]) {
		return
	}
	kicked := e.Params[1]
	if c.isSelf(kicked) {
		c.channel.reset()
		c.log.Warn().Str("by", e.Nick()).Msg("Kicked from channel, rejoining")
		time.AfterFunc(rejoinDelay, c.rejoin)
	} else {
		c.channel.remove(kicked)
	}
	c.sink.Dispatch(relay.Kick{By: relay.ParseIdentity(e.Source), Kicked: kicked, Reason: param(e, 2)})
}

func (c *Client) rejoin() {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if !closed {
		c.join()
	}
}

func (c *Client) onNick(e ircmsg.Message) {
	// NICK <new>
	if len(e.Params) < 1 {
		return
	}
	who := relay.ParseIdentity(e.Source)
	newNick := e.Params[0]
	if !c.channel.rename(who.Nick, newNick) {
		return
	}
	if c.isSelf(who.Nick) || c.isSelf(newNick) {
		c.sink.Dispatch(relay.NamesSynced{})
		return
	}
	c.sink.Dispatch(relay.NickChange{Who: who, NewNick: newNick})
}

func (c *Client) onMode(e ircmsg.Message) {
	// MODE <channel> <modes> [args...]
	if len(e.Params) < 2 || !c.isChannel(e.Params[0]) {
		return
	}
	args := e.Params[1:]
	c.channel.applyModes(args)
	c.sink.Dispatch(relay.ModeChange{Who: relay.ParseIdentity(e.Source), Args: args})
}

func (c *Client) onTopic(e ircmsg.Message) {
	// TOPIC <channel> :<topic>
	if len(e.Params) < 2 || !c.isChannel(e.Params[0]) {
		return
	}
	c.sink.Dispatch(relay.TopicChange{Who: relay.ParseIdentity(e.Source), Topic: e.Params[1]})
}

func (c *Client) onPrivMsg(e ircmsg.Message) {
	if len(e.Params) < 2 {
		return
	}

	target := e.Params[0]
	message := e.Params[1]
	from := relay.ParseIdentity(e.Source)
	if strings.HasPrefix(message, "\x01") {
		// CTCP the connection did not translate
		return
	}

	switch {
	case c.isChannel(target):
		c.log.Debug().Str("nick", from.Nick).Str("text", message).Msg("Channel message")
		c.sink.Dispatch(relay.Message{From: from, Text: message})
	case c.isSelf(target):
		c.log.Info().Str("nick", from.Nick).Str("text", message).Msg("Private message")
		c.handleCommand(from.Nick, message)
	}
}

// onAction logs /me lines; they are not relayed
func (c *Client) onAction(e ircmsg.Message) {
	if len(e.Params) < 2 || !c.isChannel(e.Params[0]) {
		return
	}
	c.log.Debug().Str("nick", e.Nick()).Str("text", e.Params[1]).Msg("Channel action")
}

func (c *Client) notice(target, text string) {
	if err := c.out.Send("NOTICE", target, text); err != nil {
		c.log.Warn().Err(err).Str("target", target).Msg("Error sending notice")
	}
}

// param returns the i-th parameter of e or an empty string
func param(e ircmsg.Message, i int) string {
	if i < len(e.Params) {
		return e.Params[i]
	}
	return ""
}
