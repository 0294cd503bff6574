// Package router maps "group action args..." command lines onto handlers.
//
// It sits in front of the cobra command tree so that groups can declare a
// default action: "sapadt source /sap/bc/adt/..." runs "source read".
package router

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"pkt.systems/sapadt/adterr"
)

// Handler runs a routed command and returns its process exit code.
type Handler func(ctx context.Context, inv Invocation) int

// Invocation is a parsed command line.
type Invocation struct {
	Group      string
	Action     string
	Positional []string
	Flags      map[string]string
	// order keeps flag names in the order they first appeared.
	order []string
}

// Flag returns the raw value of a flag and whether it was given.
func (inv Invocation) Flag(name string) (string, bool) {
	v, ok := inv.Flags[name]
	return v, ok
}

// Bool reports whether a boolean flag is set to a true value.
func (inv Invocation) Bool(name string) bool {
	v, ok := inv.Flags[name]
	if !ok {
		return false
	}
	switch strings.ToLower(v) {
	case "", "1", "true", "yes", "on":
		return true
	}
	return false
}

// FlagArgs renders the flags back as --name=value tokens in their original
// order.
func (inv Invocation) FlagArgs() []string {
	out := make([]string, 0, len(inv.order))
	for _, name := range inv.order {
		out = append(out, "--"+name+"="+inv.Flags[name])
	}
	return out
}

func (inv *Invocation) setFlag(name, value string) {
	if inv.Flags == nil {
		inv.Flags = make(map[string]string)
	}
	if _, seen := inv.Flags[name]; !seen {
		inv.order = append(inv.order, name)
	}
	inv.Flags[name] = value
}

var boolFlags = map[string]bool{
	"color": true, "no-color": true, "json": true, "https": true,
	"insecure": true, "help": true, "raw": true, "datasource": true,
	"search-desc": true, "own-only": true, "simulate": true, "validate": true,
	"background": true, "force": true, "no-search": true, "activate": true,
	"watch": true, "fail-fast": true, "quiet": true, "verbose": true,
}

// IsBoolFlag reports whether name never consumes the following token.
func IsBoolFlag(name string) bool { return boolFlags[name] }

type command struct {
	handler     Handler
	description string
}

// Router dispatches parsed command lines. The zero value is not usable; use
// New.
type Router struct {
	program   string
	commands  map[string]map[string]command
	defaults  map[string]string
	groupDesc map[string]string
	bools     map[string]bool
}

// New returns an empty router. program names the binary in help output.
func New(program string) *Router {
	return &Router{
		program:   program,
		commands:  make(map[string]map[string]command),
		defaults:  make(map[string]string),
		groupDesc: make(map[string]string),
		bools:     make(map[string]bool),
	}
}

// AddBoolFlags extends the boolean whitelist of this router with flags the
// registered commands declare.
func (r *Router) AddBoolFlags(names ...string) {
	for _, n := range names {
		r.bools[n] = true
	}
}

func (r *Router) isBool(name string) bool {
	return boolFlags[name] || r.bools[name]
}

// Register binds handler to group/action, replacing any earlier binding.
func (r *Router) Register(group, action string, handler Handler) {
	actions := r.commands[group]
	if actions == nil {
		actions = make(map[string]command)
		r.commands[group] = actions
	}
	c := actions[action]
	c.handler = handler
	actions[action] = c
}

// SetDefault makes action the one run when the group is given without a
// known action.
func (r *Router) SetDefault(group, action string) {
	r.defaults[group] = action
}

// Describe sets the help text for an action, or for the group itself when
// action is empty.
func (r *Router) Describe(group, action, text string) {
	if action == "" {
		r.groupDesc[group] = text
		return
	}
	actions := r.commands[group]
	if actions == nil {
		actions = make(map[string]command)
		r.commands[group] = actions
	}
	c := actions[action]
	c.description = text
	actions[action] = c
}

// Parse splits args into group, action, positionals and flags. Flags may
// appear anywhere; "--" ends flag parsing.
func Parse(args []string) Invocation {
	return parse(args, IsBoolFlag)
}

func parse(args []string, isBool func(string) bool) Invocation {
	var inv Invocation
	var words []string
	for i := 0; i < len(args); i++ {
		tok := args[i]
		switch {
		case tok == "--":
			words = append(words, args[i+1:]...)
			i = len(args)
		case tok == "-h":
			inv.setFlag("help", "true")
		case strings.HasPrefix(tok, "--") && len(tok) > 2:
			name := tok[2:]
			if eq := strings.IndexByte(name, '='); eq >= 0 {
				inv.setFlag(name[:eq], name[eq+1:])
				continue
			}
			if isBool(name) || i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
				inv.setFlag(name, "true")
				continue
			}
			inv.setFlag(name, args[i+1])
			i++
		default:
			words = append(words, tok)
		}
	}
	if len(words) > 0 {
		inv.Group = words[0]
	}
	if len(words) > 1 {
		inv.Action = words[1]
	}
	if len(words) > 2 {
		inv.Positional = append([]string(nil), words[2:]...)
	}
	return inv
}

// Run parses args, resolves the handler and runs it. Routing and usage
// errors return 1 and router-printed help returns 0; otherwise the handler's
// code is returned. --help on a known action reaches the handler, which
// prints the action's own help.
func (r *Router) Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	inv := parse(args, r.isBool)
	help := inv.Bool("help")

	if inv.Group == "" || inv.Group == "help" {
		if help || inv.Group == "help" {
			r.printHelp(stdout)
			return 0
		}
		return r.fail(stderr, inv, "missing command group", r.printHelp)
	}
	actions, ok := r.commands[inv.Group]
	if !ok {
		return r.fail(stderr, inv, fmt.Sprintf("unknown command group %q", inv.Group), r.printHelp)
	}

	cmd, known := actions[inv.Action]
	known = known && cmd.handler != nil
	if inv.Action == "help" || (help && !known) {
		r.printGroupHelp(stdout, inv.Group)
		return 0
	}
	if !known {
		def, hasDefault := r.defaults[inv.Group]
		switch {
		case hasDefault:
			if inv.Action != "" {
				inv.Positional = append([]string{inv.Action}, inv.Positional...)
			}
			inv.Action = def
		case inv.Action == "":
			r.printGroupHelp(stdout, inv.Group)
			return 0
		default:
			return r.fail(stderr, inv, fmt.Sprintf("unknown command %q", inv.Group+" "+inv.Action), func(w io.Writer) {
				r.printGroupHelp(w, inv.Group)
			})
		}
	}
	cmd, ok = actions[inv.Action]
	if !ok || cmd.handler == nil {
		return r.fail(stderr, inv, fmt.Sprintf("unknown command %q", inv.Group+" "+inv.Action), func(w io.Writer) {
			r.printGroupHelp(w, inv.Group)
		})
	}
	return cmd.handler(ctx, inv)
}

func (r *Router) fail(w io.Writer, inv Invocation, msg string, help func(io.Writer)) int {
	if inv.Bool("json") {
		fmt.Fprintln(w, adterr.New("router", "", adterr.Internal, msg).JSON())
		return 1
	}
	fmt.Fprintf(w, "Error: %s\n", msg)
	help(w)
	return 1
}

func (r *Router) groups() []string {
	out := make([]string, 0, len(r.commands))
	for g := range r.commands {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

func (r *Router) actions(group string) []string {
	out := make([]string, 0, len(r.commands[group]))
	for a, c := range r.commands[group] {
		if c.handler != nil && a != "" {
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Router) printHelp(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s <group> <action> [options]\n\nCommands:\n", r.program)
	for _, g := range r.groups() {
		fmt.Fprintf(w, "\n  %s", g)
		if d := r.groupDesc[g]; d != "" {
			fmt.Fprintf(w, " - %s", d)
		}
		fmt.Fprintln(w)
		for _, a := range r.actions(g) {
			fmt.Fprintf(w, "    %s", a)
			if d := r.commands[g][a].description; d != "" {
				fmt.Fprintf(w, " - %s", d)
			}
			fmt.Fprintln(w)
		}
	}
}

func (r *Router) printGroupHelp(w io.Writer, group string) {
	desc := r.groupDesc[group]
	if desc == "" {
		desc = group
	}
	fmt.Fprintf(w, "%s %s - %s\n\nActions:\n", r.program, group, desc)
	acts := r.actions(group)
	width := 0
	for _, a := range acts {
		if len(a) > width {
			width = len(a)
		}
	}
	for _, a := range acts {
		fmt.Fprintf(w, "  %-*s  %s\n", width, a, r.commands[group][a].description)
	}
	if def, ok := r.defaults[group]; ok {
		fmt.Fprintf(w, "\n'%s %s <args>' runs '%s %s %s <args>'.\n", r.program, group, r.program, group, def)
	}
}
