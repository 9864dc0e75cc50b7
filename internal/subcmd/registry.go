package subcmd

// SubCommand pairs a command name and its one-line help with a handler.
type SubCommand struct {
	Name    string
	Help    string
	Handler Handler
}

// Registry is an ordered, append-only list of subcommands. Build it once at
// startup and treat it as read-only afterwards.
type Registry struct {
	entries []SubCommand
}

// NewRegistry returns a registry seeded with cmds in the given order.
func NewRegistry(cmds ...SubCommand) *Registry {
	r := &Registry{}
	for _, cmd := range cmds {
		r.Add(cmd.Name, cmd.Help, cmd.Handler)
	}
	return r
}

// Add appends a subcommand. Duplicate names are accepted; lookups resolve to
// the first registration.
func (r *Registry) Add(name, help string, handler Handler) {
	if handler == nil {
		panic("subcmd: nil handler for " + name)
	}
	r.entries = append(r.entries, SubCommand{Name: name, Help: help, Handler: handler})
}

// Len reports the number of registered descriptors, duplicates included.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Commands returns a copy of every descriptor in registration order.
func (r *Registry) Commands() []SubCommand {
	if r == nil {
		return nil
	}
	out := make([]SubCommand, len(r.entries))
	copy(out, r.entries)
	return out
}

// Lookup returns the first descriptor registered under name.
func (r *Registry) Lookup(name string) (SubCommand, bool) {
	if r == nil {
		return SubCommand{}, false
	}
	for _, entry := range r.entries {
		if entry.Name == name {
			return entry, true
		}
	}
	return SubCommand{}, false
}

// Names returns each distinct name once, ordered by first registration.
func (r *Registry) Names() []string {
	unique := r.unique()
	names := make([]string, 0, len(unique))
	for _, entry := range unique {
		names = append(names, entry.Name)
	}
	return names
}

// Shadowed lists names that were registered more than once.
func (r *Registry) Shadowed() []string {
	if r == nil {
		return nil
	}
	counts := make(map[string]int, len(r.entries))
	var shadowed []string
	for _, entry := range r.entries {
		counts[entry.Name]++
		if counts[entry.Name] == 2 {
			shadowed = append(shadowed, entry.Name)
		}
	}
	return shadowed
}

func (r *Registry) unique() []SubCommand {
	if r == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(r.entries))
	out := make([]SubCommand, 0, len(r.entries))
	for _, entry := range r.entries {
		if _, ok := seen[entry.Name]; ok {
			continue
		}
		seen[entry.Name] = struct{}{}
		out = append(out, entry)
	}
	return out
}

func (r *Registry) clone() *Registry {
	return &Registry{entries: r.Commands()}
}
