package topic

import (
	"fmt"
	"strings"
)

// Builder constructs MQTT topic strings of the form {root}/{segment}/{id}.
// Segment constants live in internal/pkg/mqtt/paths; the builder itself is
// protocol agnostic.
type Builder struct {
	// root is the base namespace for all topics (e.g., "parking/v1").
	root string

	// group, when set, prefixes filters with $share/{group}/.
	group string
}

// NewBuilder creates a Builder for the given root namespace.
// Leading and trailing slashes are trimmed.
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.Trim(root, "/")}
}

// Root returns the namespace the builder was created with.
func (b *Builder) Root() string {
	return b.root
}

// Build returns {root}/{segment}/{id}.
func (b *Builder) Build(segment, id string) string {
	return b.prefix() + fmt.Sprintf("%s/%s/%s", b.root, segment, id)
}

// BuildWildcard returns {root}/{segment}/+ for subscribing to every id.
func (b *Builder) BuildWildcard(segment string) string {
	return b.Build(segment, Wildcard)
}

// Shared returns a copy of the builder that emits shared-subscription filters.
func (b *Builder) Shared(group string) *Builder {
	return &Builder{root: b.root, group: group}
}

func (b *Builder) prefix() string {
	if b.group == "" {
		return ""
	}
	return "$share/" + b.group + "/"
}
