/*
Package ports defines the driven ports of the outline engine.

The engine never persists anything itself. These interfaces are the narrow
contracts through which adapters store snapshots, append version history and
publish finished outlines.

# Key Interfaces

  - SnapshotStore: persists the latest snapshot of each project.
  - HistoryLog: append-only log of committed versions.
  - DistributedLocker: coordinates writers across replicas.
  - Publisher: receives snapshots forked by a publish checkpoint.
*/
package ports
