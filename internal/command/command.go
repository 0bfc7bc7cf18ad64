// Package command implements the dispatch table the client engine's read
// handler calls into: case-insensitive name lookup and arity-checked
// dispatch, in the shape of Redis's redisCommandTable/lookupCommand.
package command

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/FX-HAO/pusher/internal/client"
	"github.com/FX-HAO/pusher/internal/pubsub"
)

// Handler is a command implementation. argv[0] is the command name itself,
// matching the classic Redis argv convention.
type Handler func(c *client.Client, argv [][]byte)

// Descriptor describes one registered command, matching redisCommand
// trimmed to the fields this server actually uses.
type Descriptor struct {
	Name    string
	Arity   int
	Handler Handler

	Calls  atomic.Uint64
	Errors atomic.Uint64
}

// checkArity reports whether argc satisfies d.Arity, matching
// processCommand's arity check: positive is exact, negative -N is "at
// least N".
func (d *Descriptor) checkArity(argc int) bool {
	if d.Arity >= 0 {
		return argc == d.Arity
	}
	return argc >= -d.Arity
}

// Table is a case-insensitive name-to-Descriptor map plus the Dispatch entry
// point the client engine's read handler calls, matching the server-wide
// singleton commandTable that lookupCommand searches.
type Table struct {
	commands map[string]*Descriptor
}

// NewTable builds the server's command table. hub backs PUBLISH/SUBSCRIBE/
// UNSUBSCRIBE's channel bookkeeping.
func NewTable(hub *pubsub.Hub) *Table {
	t := &Table{commands: make(map[string]*Descriptor)}

	t.register("PING", -1, pingCommand)
	t.register("ECHO", 2, echoCommand)
	t.register("PUBLISH", 3, publishCommand(hub))
	t.register("SUBSCRIBE", 2, subscribeCommand(hub))
	t.register("UNSUBSCRIBE", 2, unsubscribeCommand(hub))
	t.register("COMMAND", -1, commandCommand(t))

	return t
}

func (t *Table) register(name string, arity int, handler Handler) {
	t.commands[name] = &Descriptor{Name: name, Arity: arity, Handler: handler}
}

// Lookup returns the descriptor for a case-insensitive command name, and
// whether one was found, matching lookupCommand.
func (t *Table) Lookup(name string) (*Descriptor, bool) {
	d, ok := t.commands[strings.ToUpper(name)]
	return d, ok
}

// Len reports the number of registered commands, used by the COMMAND
// command's reply.
func (t *Table) Len() int { return len(t.commands) }

// Dispatch looks up argv[0] case-insensitively and either runs its handler
// or stages exactly one error reply, matching processCommand's
// unknown-command and arity-mismatch paths. It never invokes a handler on
// either failure.
func (t *Table) Dispatch(c *client.Client, argv [][]byte) {
	if len(argv) == 0 {
		return
	}
	name := string(argv[0])
	d, ok := t.Lookup(name)
	if !ok {
		_ = c.AddReplyErrorFormat("ERR unknown command '%s'", name)
		return
	}
	if !d.checkArity(len(argv)) {
		d.Errors.Add(1)
		_ = c.AddReplyErrorFormat("ERR wrong number of arguments for '%s' command", d.Name)
		return
	}
	d.Calls.Add(1)
	d.Handler(c, argv)
}

func pingCommand(c *client.Client, argv [][]byte) {
	switch len(argv) {
	case 1:
		_ = c.AddReplyString([]byte("+PONG\r\n"))
	case 2:
		reply := append([]byte{'+'}, argv[1]...)
		reply = append(reply, '\r', '\n')
		_ = c.AddReplyString(reply)
	default:
		_ = c.AddReplyErrorFormat("ERR wrong number of arguments for '%s' command", "PING")
	}
}

func echoCommand(c *client.Client, argv [][]byte) {
	reply := append([]byte{'+'}, argv[1]...)
	reply = append(reply, '\r', '\n')
	_ = c.AddReplyString(reply)
}

func publishCommand(hub *pubsub.Hub) Handler {
	return func(c *client.Client, argv [][]byte) {
		channel, message := string(argv[1]), argv[2]
		n := hub.Publish(channel, message)
		_ = c.AddReplyLongLong(int64(n))
	}
}

func subscribeCommand(hub *pubsub.Hub) Handler {
	return func(c *client.Client, argv [][]byte) {
		channel := string(argv[1])
		hub.Subscribe(channel, c)
		_ = c.AddReplyString([]byte(fmt.Sprintf("+subscribed %s\r\n", channel)))
	}
}

func unsubscribeCommand(hub *pubsub.Hub) Handler {
	return func(c *client.Client, argv [][]byte) {
		channel := string(argv[1])
		hub.Unsubscribe(channel, c)
		_ = c.AddReplyString([]byte(fmt.Sprintf("+unsubscribed %s\r\n", channel)))
	}
}

func commandCommand(t *Table) Handler {
	return func(c *client.Client, argv [][]byte) {
		_ = c.AddReplyLongLong(int64(t.Len()))
	}
}
