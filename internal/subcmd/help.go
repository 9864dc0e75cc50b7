package subcmd

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
)

// EntryKind tells HelpFormatter how to lay out an entry.
type EntryKind int

const (
	// EntryOption is an ordinary flag or positional argument.
	EntryOption EntryKind = iota
	// EntrySelector consumes the remaining arguments and fans out into
	// subcommands. Only its choices are rendered, one per line.
	EntrySelector
)

// Choice is one selectable subcommand of an EntrySelector.
type Choice struct {
	Name string
	Help string
}

// Entry is a single item of a help section.
type Entry struct {
	Kind       EntryKind
	Invocation string
	Help       string
	Choices    []Choice
}

// Section groups entries under a title such as "options".
type Section struct {
	Title   string
	Entries []Entry
}

const (
	defaultMaxHelpPosition = 24
	entryIndent            = 2
	choiceIndent           = 4
	minWrapWidth           = 20
)

// HelpFormatter renders top-level help. Width is the wrap width; zero or
// less disables wrapping.
type HelpFormatter struct {
	Width           int
	MaxHelpPosition int
}

// Format renders usage, an optional description, and the sections.
func (f HelpFormatter) Format(usage, description string, sections []Section) string {
	var b strings.Builder
	b.WriteString(usage)
	b.WriteString("\n")
	if desc := strings.TrimSpace(description); desc != "" {
		b.WriteString("\n")
		b.WriteString(f.wrap(desc, f.Width))
		b.WriteString("\n")
	}

	column := f.helpColumn(sections)
	for _, section := range sections {
		if len(section.Entries) == 0 {
			continue
		}
		b.WriteString("\n")
		b.WriteString(section.Title)
		b.WriteString(":\n")
		for _, entry := range section.Entries {
			f.writeEntry(&b, entry, column)
		}
	}
	return b.String()
}

func (f HelpFormatter) helpColumn(sections []Section) int {
	limit := f.MaxHelpPosition
	if limit <= 0 {
		limit = defaultMaxHelpPosition
	}
	widest := 0
	for _, section := range sections {
		for _, entry := range section.Entries {
			switch entry.Kind {
			case EntrySelector:
				for _, choice := range entry.Choices {
					widest = max(widest, choiceIndent+len(choice.Name))
				}
			default:
				widest = max(widest, entryIndent+len(entry.Invocation))
			}
		}
	}
	return min(widest+2, limit)
}

func (f HelpFormatter) writeEntry(b *strings.Builder, entry Entry, column int) {
	if entry.Kind == EntrySelector {
		for _, choice := range entry.Choices {
			f.writeLine(b, choiceIndent, choice.Name, choice.Help, column)
		}
		return
	}
	f.writeLine(b, entryIndent, entry.Invocation, entry.Help, column)
}

func (f HelpFormatter) writeLine(b *strings.Builder, indent int, invocation, help string, column int) {
	lead := strings.Repeat(" ", indent) + invocation
	help = strings.TrimSpace(help)
	if help == "" {
		b.WriteString(lead)
		b.WriteString("\n")
		return
	}
	if len(lead)+2 > column {
		b.WriteString(lead)
		b.WriteString("\n")
		lead = ""
	}
	pad := strings.Repeat(" ", column)
	width := 0
	if f.Width > 0 {
		width = f.Width - column
	}
	for i, line := range strings.Split(f.wrap(help, width), "\n") {
		if i == 0 && lead != "" {
			b.WriteString(lead)
			b.WriteString(strings.Repeat(" ", column-len(lead)))
		} else {
			b.WriteString(pad)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func (f HelpFormatter) wrap(s string, width int) string {
	if width < minWrapWidth {
		return s
	}
	return text.WrapSoft(s, width)
}
