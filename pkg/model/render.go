package model

import "strings"

// scheduleMarker prefixes a tag that carries a date instead of a category.
const scheduleMarker = "$"

// TagCount is one entry of the rendered tag bar.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ItemView is one rendered item. Scheduled is set only for items whose tag
// is a schedule marker.
type ItemView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Scheduled string `json:"scheduled,omitempty"`
}

// View is the user-facing projection of State for one active tag.
type View struct {
	Tags      []TagCount `json:"tags"`
	ActiveTag int        `json:"active_tag"`
	Items     []ItemView `json:"items"`
}

// DisplayTag resolves an item's stored tag to its display category for the
// given reference date (ISO "YYYY-MM-DD"). A schedule marker counts as
// "tickler" strictly while its date is in the future; on the day itself it
// already shows as "inbox". ISO dates compare correctly as strings.
func DisplayTag(tag, refDate string) string {
	if tag == "" {
		return "inbox"
	}
	if strings.HasPrefix(tag, scheduleMarker) {
		if tag[len(scheduleMarker):] > refDate {
			return "tickler"
		}
		return "inbox"
	}
	return tag
}

// Render groups items by resolved display tag, counts them in the fixed
// TagOrder, and returns the items whose resolved tag equals activeTag. An
// activeTag outside TagOrder is coerced to "inbox". today is the reference
// date for schedule resolution; it is supplied by the caller because "now"
// changes independent of the log.
func Render(s *State, activeTag, today string) View {
	activeIdx := tagIndex(activeTag)
	if activeIdx < 0 {
		activeTag = "inbox"
		activeIdx = 0
	}

	counts := make(map[string]int)
	items := []ItemView{} // non-nil so the wire view serializes as []
	for _, item := range s.Items() {
		actual := DisplayTag(item.Tag, today)
		counts[actual]++
		if actual != activeTag {
			continue
		}
		v := ItemView{ID: item.ID, Title: item.Title}
		if strings.HasPrefix(item.Tag, scheduleMarker) {
			v.Scheduled = item.Tag[len(scheduleMarker):]
		}
		items = append(items, v)
	}

	tags := make([]TagCount, len(TagOrder))
	for i, name := range TagOrder {
		tags[i] = TagCount{Name: name, Count: counts[name]}
	}

	return View{Tags: tags, ActiveTag: activeIdx, Items: items}
}

func tagIndex(tag string) int {
	for i, name := range TagOrder {
		if name == tag {
			return i
		}
	}
	return -1
}
