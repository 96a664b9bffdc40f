package board

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// SetCollaborator records a roster entry (HSET name → avatar URL).
func (c *Client) SetCollaborator(ctx context.Context, scope Scope, collab Collaborator) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	name := strings.TrimSpace(collab.Name)
	if name == "" {
		return fmt.Errorf("%w: collaborator name is required", ErrInvalidArgument)
	}
	if err := c.rdb.HSet(ctx, RosterKey(scope), name, collab.AvatarURL).Err(); err != nil {
		return transient("set collaborator", err)
	}
	return nil
}

// RemoveCollaborator deletes a roster entry. Removing an unknown name is a no-op.
// Cards already assigned to the name keep it.
func (c *Client) RemoveCollaborator(ctx context.Context, scope Scope, name string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := c.rdb.HDel(ctx, RosterKey(scope), name).Err(); err != nil {
		return transient("remove collaborator", err)
	}
	return nil
}

// ListCollaborators returns the roster sorted by name.
// Returns an empty slice if no roster exists (not an error).
func (c *Client) ListCollaborators(ctx context.Context, scope Scope) ([]Collaborator, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	raw, err := c.rdb.HGetAll(ctx, RosterKey(scope)).Result()
	if err != nil {
		return nil, transient("list collaborators", err)
	}

	out := make([]Collaborator, 0, len(raw))
	for name, avatar := range raw {
		out = append(out, Collaborator{Name: name, AvatarURL: avatar})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
