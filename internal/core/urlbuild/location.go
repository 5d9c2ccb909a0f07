package urlbuild

import (
	"errors"
	"net/url"
	"strings"

	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/artpar/envswitch/internal/core/match"
)

// ErrInvalidURL is returned for page URLs without a scheme or host.
var ErrInvalidURL = errors.New("not a valid URL")

// Location is the part of a page URL that survives an environment switch.
type Location struct {
	Protocol string `json:"protocol"` // with trailing colon, e.g. "https:"
	Hostname string `json:"hostname"` // without port
	Path     string `json:"path"`     // path + "?" query + "#" fragment, verbatim
}

// ParseURL splits a page URL into the inputs BuildURL needs. The hostname is
// lowercased, as a browser reports it.
func ParseURL(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return Location{}, ErrInvalidURL
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" || u.ForceQuery {
		path += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		path += "#" + u.EscapedFragment()
	}

	return Location{
		Protocol: NormalizeProtocol(u.Scheme),
		Hostname: strings.ToLower(u.Hostname()),
		Path:     path,
	}, nil
}

// String rebuilds the URL of the location.
func (l Location) String() string {
	return l.Protocol + "//" + l.Hostname + l.Path
}

// Choice is one selectable environment of a project.
type Choice struct {
	Domain   string `json:"domain"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
	Wildcard bool   `json:"wildcard"`
}

// DomainChoices lists a project's entries for a picker, in stored order.
// The entry equal to currentHostname is marked selected.
func DomainChoices(project *domain.Project, currentHostname string) []Choice {
	if project == nil {
		return []Choice{}
	}
	choices := make([]Choice, 0, len(project.Domains))
	for _, e := range project.Domains {
		choices = append(choices, Choice{
			Domain:   e.Value(),
			Label:    e.DisplayLabel(),
			Selected: e.Value() == currentHostname,
			Wildcard: match.IsWildcard(e.Value()),
		})
	}
	return choices
}
