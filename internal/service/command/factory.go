package command

import (
	"github.com/sandevgo/knowbot/internal/core"
)

func NewCommands(q Queries) []core.Command {
	return []core.Command{
		&stateCommand{q: q},
		&historyCommand{q: q},
		&notesCommand{q: q},
	}
}
