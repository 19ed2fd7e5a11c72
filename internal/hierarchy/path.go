package hierarchy

import (
	"context"
	"fmt"
)

// Node is one (level, levelId) pair in the production tree.
type Node struct {
	Level   Level
	LevelID string
}

// Path is the ordered sequence of nodes from the project root down to a
// target node, inclusive. The first element is always the project; each
// subsequent element sits exactly one level deeper.
type Path []Node

// NotFoundError reports a missing hierarchy node or a broken ancestor link.
type NotFoundError struct {
	Level   Level
	LevelID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("hierarchy node not found: %s %q", e.Level, e.LevelID)
}

// AncestorLookup fetches the parent levelId of a node. Parent/child linkage
// is stored outside this package; implementations report found=false when
// the node or its parent link is missing. The project root has no parent
// and is never passed to the lookup.
type AncestorLookup func(ctx context.Context, level Level, levelID string) (parentID string, found bool, err error)

// BuildPath walks parent links upward from the target node and returns the
// full root-to-target path. It fails with *NotFoundError when any link in
// the ancestor chain is missing, or when the chain does not terminate at
// projectID.
func BuildPath(ctx context.Context, projectID string, level Level, levelID string, lookup AncestorLookup) (Path, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("unknown hierarchy level: %q", level)
	}
	if levelID == "" {
		return nil, fmt.Errorf("level id is required")
	}

	nodes := make([]Node, 0, len(levelOrder))
	current := Node{Level: level, LevelID: levelID}
	for {
		nodes = append(nodes, current)
		parentLevel, ok := ParentLevel(current.Level)
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parentID, found, err := lookup(ctx, current.Level, current.LevelID)
		if err != nil {
			return nil, fmt.Errorf("looking up parent of %s %q: %w", current.Level, current.LevelID, err)
		}
		if !found || parentID == "" {
			return nil, &NotFoundError{Level: current.Level, LevelID: current.LevelID}
		}
		current = Node{Level: parentLevel, LevelID: parentID}
	}

	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}

	if nodes[0].LevelID != projectID {
		return nil, &NotFoundError{Level: LevelProject, LevelID: projectID}
	}
	return Path(nodes), nil
}

// Target returns the final node of the path.
func (p Path) Target() Node {
	return p[len(p)-1]
}
