// Package nav describes the sidebar navigation.
package nav

// Link is one sidebar destination.
type Link struct {
	Label  string
	Path   string
	Icon   string
	Active bool
}

var destinations = []Link{
	{Label: "Dashboard", Path: "/", Icon: "home"},
	{Label: "Transactions", Path: "/transactions", Icon: "list"},
	{Label: "Categories", Path: "/categories", Icon: "tag"},
	{Label: "Monthly Summary", Path: "/monthly-summary", Icon: "calendar"},
	{Label: "Summary", Path: "/summary", Icon: "chart"},
}

// Links returns the fixed destinations in order, marking the one whose path
// equals currentPath as active.
func Links(currentPath string) []Link {
	out := make([]Link, len(destinations))
	copy(out, destinations)
	for i := range out {
		out[i].Active = out[i].Path == currentPath
	}
	return out
}

// Paths returns the destination paths in order.
func Paths() []string {
	out := make([]string, 0, len(destinations))
	for _, d := range destinations {
		out = append(out, d.Path)
	}
	return out
}

// Label returns the sidebar label for path, or "" if path is not a
// destination.
func Label(path string) string {
	for _, d := range destinations {
		if d.Path == path {
			return d.Label
		}
	}
	return ""
}
