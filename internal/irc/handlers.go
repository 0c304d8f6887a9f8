package irc

// This file contains documentation for the IRC event handlers.
// The actual handler implementations are split across:
// - client.go: Connection lifecycle, membership tracking, channel events
// - channel.go: Channel membership state (NAMES, prefix modes)
// - commands.go: Private IRC command implementations

/*
Handler Summary:

Connection Events:
- 376/422 (onConnect): End of MOTD / MOTD missing - bot is connected
  - Joins the bridged channel
- 005 (onISupport): RPL_ISUPPORT
  - Reads PREFIX and CHANMODES so mode changes are parsed correctly
- 433 (onNickInUse): ERR_NICKNAMEINUSE
  - Logged; the connection retries with an underscore appended

Membership:
- 353 (onNames): RPL_NAMREPLY - collects prefixed nicks
- 366 (onNamesEnd): RPL_ENDOFNAMES - replaces the membership, NamesSynced
- JOIN (onJoin): member added, Join event (own join resets the membership)
- PART (onPart): member removed, Part event
- QUIT (onQuit): member removed, Quit event if the user was in the channel
- KICK (onKick): member removed, Kick event; the bot rejoins after a delay
- NICK (onNick): member renamed, NickChange event for other users
- MODE (onMode): prefix modes applied, ModeChange event

Channel Traffic:
- TOPIC (onTopic): TopicChange event
- PRIVMSG (onPrivMsg):
  - to the channel: Message event
  - to the bot: private command (stats)

CTCP (translated by the connection, EnableCTCP):
- CTCP_VERSION: answered by ircevent with the bot version
- CTCP_ACTION (onAction): /me lines are logged, never relayed
- any other \x01-framed PRIVMSG is dropped by onPrivMsg
*/
