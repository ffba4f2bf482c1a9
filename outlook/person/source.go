package person

import "strings"

// Source tags where a Person was observed.
type Source string

const (
	SourceDirectory        Source = "directory"
	SourcePersonalContacts Source = "personal_contacts"
	SourceEmailHistory     Source = "email_history"
	SourceFuzzyMatch       Source = "fuzzy_match"
)

// AllSources lists the searchable sources in fold order.
var AllSources = []Source{SourceDirectory, SourcePersonalContacts, SourceEmailHistory}

// Priority ranks source authority; higher wins merge ties and seeds relevance.
func (s Source) Priority() int {
	switch s {
	case SourceDirectory:
		return 100
	case SourcePersonalContacts:
		return 80
	case SourceEmailHistory:
		return 60
	case SourceFuzzyMatch:
		return 20
	}
	return 0
}

// ParseSources maps user supplied names onto searchable sources, keeping fold order.
// "gal" and "contacts" are accepted as aliases. Unknown names are dropped.
func ParseSources(names []string) []Source {
	if len(names) == 0 {
		return nil
	}
	enabled := map[Source]bool{}
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "directory", "gal":
			enabled[SourceDirectory] = true
		case "personal_contacts", "contacts":
			enabled[SourcePersonalContacts] = true
		case "email_history", "history":
			enabled[SourceEmailHistory] = true
		}
	}
	return orderSources(enabled)
}

func orderSources(enabled map[Source]bool) []Source {
	out := make([]Source, 0, len(enabled))
	for _, src := range AllSources {
		if enabled[src] {
			out = append(out, src)
		}
	}
	return out
}
