package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, menu description, and aliases.
// Aliases are matched against plain text, so "restart" reaches the same handler as "/start".
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	Hidden      bool
	Aliases     []string
}
