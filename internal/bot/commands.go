package bot

import (
	"context"
	"sort"

	"github.com/go-telegram/bot/models"
)

// Scope restricts where a command may be used
type Scope int

const (
	// Anywhere commands work in groups and, on the selected chat, in direct messages
	Anywhere Scope = iota
	// GroupOnly commands are ignored in direct messages
	GroupOnly
	// DirectOnly commands are ignored in groups
	DirectOnly
	// Unscoped commands work everywhere and need no selected chat
	Unscoped
)

// Request is a command invocation
type Request struct {
	Message *models.Message
	Args    []string
	// ChatID is the chat whose quotes the command works on. In direct
	// messages it is the chat selected with /chats.
	ChatID int64
	Direct bool
}

// Command represents a bot command that can be executed
type Command interface {
	// Execute runs the command with the given request
	Execute(ctx context.Context, req *Request) error
}

// CommandFunc is an adapter to allow ordinary functions to be used as commands
type CommandFunc func(ctx context.Context, req *Request) error

// Execute implements the Command interface
func (f CommandFunc) Execute(ctx context.Context, req *Request) error {
	return f(ctx, req)
}

type entry struct {
	cmd         Command
	scope       Scope
	description string
}

// Registry holds all registered commands
type Registry struct {
	commands map[string]entry
}

// NewRegistry creates a new command registry
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]entry),
	}
}

// Register adds a command to the registry. Commands without a description
// are not advertised to Telegram clients.
func (r *Registry) Register(name string, scope Scope, description string, cmd Command) {
	r.commands[name] = entry{cmd: cmd, scope: scope, description: description}
}

// Get retrieves a command and its scope by name
func (r *Registry) Get(name string) (Command, Scope, bool) {
	e, ok := r.commands[name]
	return e.cmd, e.scope, ok
}

// Has checks if a command is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.commands[name]
	return ok
}

// List returns all registered command names, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptions returns the advertised commands with their descriptions
func (r *Registry) Descriptions() map[string]string {
	out := make(map[string]string, len(r.commands))
	for name, e := range r.commands {
		if e.description != "" {
			out[name] = e.description
		}
	}
	return out
}
