// Package roster lists the collaborators that can be assigned to cards.
// The roster is advisory: assignments are never validated against it.
package roster

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dyluth/lanes/pkg/board"
)

// Provider lists collaborators.
type Provider interface {
	List(ctx context.Context) ([]board.Collaborator, error)
}

// Static is a fixed roster, typically from lanes.yml.
type Static []board.Collaborator

// List returns a copy of the static roster.
func (s Static) List(ctx context.Context) ([]board.Collaborator, error) {
	return append([]board.Collaborator{}, s...), nil
}

// Lister is the store method RedisProvider reads. *board.Client implements it.
type Lister interface {
	ListCollaborators(ctx context.Context, scope board.Scope) ([]board.Collaborator, error)
}

// RedisProvider reads the roster hash of one scope.
type RedisProvider struct {
	store Lister
	scope board.Scope
}

// NewRedisProvider creates a provider for scope.
func NewRedisProvider(store Lister, scope board.Scope) *RedisProvider {
	return &RedisProvider{store: store, scope: scope}
}

// List returns the stored collaborators.
func (p *RedisProvider) List(ctx context.Context) ([]board.Collaborator, error) {
	return p.store.ListCollaborators(ctx, p.scope)
}

// Merge combines providers. Entries are deduplicated by name, the first provider
// to list a name wins, and the result is sorted by name.
func Merge(providers ...Provider) Provider {
	return merged(providers)
}

type merged []Provider

func (m merged) List(ctx context.Context) ([]board.Collaborator, error) {
	seen := make(map[string]bool)
	var out []board.Collaborator
	for _, p := range m {
		entries, err := p.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list roster: %w", err)
		}
		for _, e := range entries {
			name := strings.TrimSpace(e.Name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			e.Name = name
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if out == nil {
		out = []board.Collaborator{}
	}
	return out, nil
}
