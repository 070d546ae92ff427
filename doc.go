/*
Package outline is a hierarchical procedure editor engine.

An outline is a forest of steps connected by ordered parent to child edges.
From that raw graph the engine derives hierarchical codes ("0", "1", "1.2"),
inherited key-value data and visibility under collapse, and it keeps every
committed state as an immutable, semantically versioned snapshot with a
human-readable change log.

# Concept

The graph is the only source of truth. Codes are never stored as authoritative:
they are recomputed from node and edge order every time the outline is read.
Reordering rewrites edges, so codes follow automatically.

Edits happen through a Session, the single mutator of one project. A Session
persists on checkpoints and, when enabled, on a periodic autosave tick that only
writes when the content changed since the last persist.

# Usage

	eng := outline.New(
		outline.WithStore(file.New(".outline/projects")),
		outline.WithAutosaveInterval(30*time.Second),
	)
	defer eng.Close(context.Background())

	s, err := eng.Open(ctx, "changeover")
	if err != nil {
		log.Fatal(err)
	}
	step, _ := s.AddChild(domain.DefaultRootID, domain.Node{Label: "Isolate power"})
	_ = s.Reorder(domain.DragIntent{DraggedID: step.ID, TargetID: domain.DefaultRootID, Mode: domain.DropOnto})
	rec, err := s.Checkpoint(ctx, domain.KindMinor, "ready for review")

# Versions

Every persist bumps the version: autosave and draft checkpoints bump the patch,
archive checkpoints the minor. Publishing forks a new project at the next major
version and leaves the session on its own lineage.
*/
package outline
