package irc

import (
	"sort"
	"strings"
)

// handleCommand answers a private message sent to the bot on IRC
func (c *Client) handleCommand(nick, message string) {
	message = strings.TrimSpace(message)
	fields := strings.Fields(message)
	if len(fields) == 0 {
		return
	}

	switch strings.ToLower(fields[0]) {
	case "stats":
		c.cmdStats(nick)
	default:
		c.notice(nick, "Not understood: "+message)
	}
}

func (c *Client) cmdStats(nick string) {
	o := c.channel.occupancy()

	seen := make(map[string]bool)
	var users []string
	for _, group := range [][]string{o.Operators, o.Voiced, o.Users} {
		for _, n := range group {
			if !seen[n] {
				seen[n] = true
				users = append(users, n)
			}
		}
	}
	sort.Strings(users)

	c.notice(nick, "--- Channel statistics ---")
	c.notice(nick, "Channel: "+c.cfg.Channel)
	c.notice(nick, "Users: "+strings.Join(users, ", "))
	c.notice(nick, "Opers: "+strings.Join(o.Operators, ", "))
	c.notice(nick, "Voiced: "+strings.Join(o.Voiced, ", "))
}
