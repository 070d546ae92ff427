/*
Package domain contains the outline and version engine.

It models a procedure outline as a forest of nodes joined by ordered parent to
child edges and derives everything a reader needs from that raw graph. The package
is pure: no I/O, no persistence, no goroutines. Adapters feed it mutations and
persist the snapshots it produces.

# Key Entities

  - Node and Edge: the raw, authoritative graph.
  - Graph: the mutable state container (GraphStore) with structural guards.
  - Process: derives hierarchical codes, inherited payload and visibility.
  - BuildTree: the renderable rooted hierarchy.
  - Reorder: reparenting and resequencing from a drag intent.
  - ChangeLog: human readable difference between two snapshots.
  - Version: the major.minor.patch counter behind draft, archive and publish checkpoints.
*/
package domain
