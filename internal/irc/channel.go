package irc

import (
	"strings"
	"sync"

	"github.com/tgrelay/tgrelay/internal/relay"
)

// RFC 1459 defaults until the server sends ISUPPORT
const (
	defaultPrefix    = "(ov)@+"
	defaultChanModes = "beI,k,l,imnpst"
)

// member is one occupant of the channel with its prefix modes
type member struct {
	nick  string
	modes map[byte]bool
}

func (m *member) isOperator() bool {
	return m.modes['q'] || m.modes['a'] || m.modes['o']
}

func (m *member) isVoiced() bool {
	return m.modes['v']
}

// channelState tracks the membership of the bridged channel
type channelState struct {
	mu   sync.Mutex
	name string

	members map[string]*member
	// names collects a RPL_NAMREPLY listing until RPL_ENDOFNAMES
	names map[string]*member

	// prefix modes and their symbols, position for position
	prefixModes   string
	prefixSymbols string
	// CHANMODES types A, B, C and D
	chanModes [4]string
}

func newChannelState(name string) *channelState {
	s := &channelState{
		name:    name,
		members: make(map[string]*member),
	}
	s.setPrefix(defaultPrefix)
	s.setChanModes(defaultChanModes)
	return s
}

func fold(nick string) string {
	return strings.ToLower(nick)
}

// setPrefix parses an ISUPPORT PREFIX value such as "(qaohv)~&@%+"
func (s *channelState) setPrefix(value string) {
	if !strings.HasPrefix(value, "(") {
		return
	}
	modes, symbols, ok := strings.Cut(value[1:], ")")
	if !ok || len(modes) != len(symbols) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefixModes = modes
	s.prefixSymbols = symbols
}

// setChanModes parses an ISUPPORT CHANMODES value such as "beI,k,l,imnpst"
func (s *channelState) setChanModes(value string) {
	parts := strings.Split(value, ",")
	if len(parts) < 4 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.chanModes[:], parts[:4])
}

// reset forgets all members, used when the bot leaves the channel
func (s *channelState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = make(map[string]*member)
	s.names = nil
}

// addNames records one RPL_NAMREPLY line of space separated, prefixed nicks
func (s *channelState) addNames(list string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.names == nil {
		s.names = make(map[string]*member)
	}
	for _, entry := range strings.Fields(list) {
		m := &member{modes: make(map[byte]bool)}
		for len(entry) > 0 {
			i := strings.IndexByte(s.prefixSymbols, entry[0])
			if i < 0 {
				break
			}
			m.modes[s.prefixModes[i]] = true
			entry = entry[1:]
		}
		// userhost-in-names
		entry, _, _ = strings.Cut(entry, "!")
		if entry == "" {
			continue
		}
		m.nick = entry
		s.names[fold(entry)] = m
	}
}

// endNames replaces the membership with the collected listing
func (s *channelState) endNames() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.names != nil {
		s.members = s.names
		s.names = nil
	}
}

func (s *channelState) join(nick string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[fold(nick)] = &member{nick: nick, modes: make(map[byte]bool)}
}

// remove drops nick and reports whether it was in the channel
func (s *channelState) remove(nick string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fold(nick)
	_, ok := s.members[key]
	delete(s.members, key)
	return ok
}

// rename moves oldNick to newNick keeping its modes and reports whether
// oldNick was in the channel
func (s *channelState) rename(oldNick, newNick string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[fold(oldNick)]
	if !ok {
		return false
	}
	delete(s.members, fold(oldNick))
	m.nick = newNick
	s.members[fold(newNick)] = m
	return true
}

// applyModes updates member prefix modes from MODE parameters, e.g.
// ["+ov-v", "alice", "bob", "carol"]
func (s *channelState) applyModes(params []string) {
	if len(params) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	args := params[1:]
	next := func() (string, bool) {
		if len(args) == 0 {
			return "", false
		}
		a := args[0]
		args = args[1:]
		return a, true
	}

	adding := true
	for i := 0; i < len(params[0]); i++ {
		mode := params[0][i]
		switch {
		case mode == '+':
			adding = true
		case mode == '-':
			adding = false
		case strings.IndexByte(s.prefixModes, mode) >= 0:
			nick, ok := next()
			if !ok {
				return
			}
			if m, found := s.members[fold(nick)]; found {
				if adding {
					m.modes[mode] = true
				} else {
					delete(m.modes, mode)
				}
			}
		case strings.IndexByte(s.chanModes[0], mode) >= 0,
			strings.IndexByte(s.chanModes[1], mode) >= 0:
			next()
		case strings.IndexByte(s.chanModes[2], mode) >= 0:
			if adding {
				next()
			}
		}
	}
}

// occupancy partitions the members into operators, voiced and plain users
func (s *channelState) occupancy() relay.Occupancy {
	s.mu.Lock()
	defer s.mu.Unlock()

	var o relay.Occupancy
	for _, m := range s.members {
		op, voiced := m.isOperator(), m.isVoiced()
		if op {
			o.Operators = append(o.Operators, m.nick)
		}
		if voiced {
			o.Voiced = append(o.Voiced, m.nick)
		}
		if !op && !voiced {
			o.Users = append(o.Users, m.nick)
		}
	}
	return o.Sorted()
}
