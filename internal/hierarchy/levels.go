package hierarchy

import "fmt"

// Level identifies one tier of the production hierarchy. The six levels are
// strictly ordered: every node's level determines its exact depth, and no
// level may be skipped between a parent and its child.
type Level string

const (
	LevelProject Level = "project"
	LevelAct     Level = "act"
	LevelChapter Level = "chapter"
	LevelScene   Level = "scene"
	LevelShot    Level = "shot"
	LevelTake    Level = "take"
)

var levelOrder = []Level{
	LevelProject,
	LevelAct,
	LevelChapter,
	LevelScene,
	LevelShot,
	LevelTake,
}

// Levels returns the full ordering from root to leaf.
func Levels() []Level {
	out := make([]Level, len(levelOrder))
	copy(out, levelOrder)
	return out
}

func ParseLevel(s string) (Level, error) {
	for _, l := range levelOrder {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown hierarchy level: %q", s)
}

func (l Level) Valid() bool {
	return l.ordinal() >= 0
}

// Depth returns the zero-based depth of the level, with Project at 0 and
// Take at 5. Unknown levels report -1.
func (l Level) Depth() int {
	return l.ordinal()
}

func (l Level) ordinal() int {
	for i, candidate := range levelOrder {
		if candidate == l {
			return i
		}
	}
	return -1
}

// ParentLevel returns the level immediately above l. Project has no parent.
func ParentLevel(l Level) (Level, bool) {
	idx := l.ordinal()
	if idx <= 0 {
		return "", false
	}
	return levelOrder[idx-1], true
}

// ChildLevel returns the level immediately below l. Take has no child.
func ChildLevel(l Level) (Level, bool) {
	idx := l.ordinal()
	if idx < 0 || idx == len(levelOrder)-1 {
		return "", false
	}
	return levelOrder[idx+1], true
}

// IsAncestor reports whether level a is an ancestor of level b, treating a
// level as an ancestor of itself.
func IsAncestor(a, b Level) bool {
	ai, bi := a.ordinal(), b.ordinal()
	if ai < 0 || bi < 0 {
		return false
	}
	return ai <= bi
}
