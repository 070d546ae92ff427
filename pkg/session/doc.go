/*
Package session holds the authoritative in-memory outline of an editing session
and orchestrates its persistence.

A Manager guards store access per project with ref-counted local locks and an
optional distributed lock. A Session is the single mutator of one project's
snapshot: readers see the current snapshot through an atomic cell, mutations are
serialized, and checkpoints commit a bumped version to the store and the history
log. An Autosaver periodically commits a patch version when the current snapshot
differs from the last persisted one.
*/
package session
