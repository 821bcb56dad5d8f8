package core

// Mirror persists named snapshots of a store's cache to durable local
// storage. Snapshots are restored at store construction and are the
// demo-mode source of truth across process restarts. Saving is best-effort:
// stores log mirror errors and carry on.
type Mirror interface {
	Save(name string, v interface{}) error
	// Load unmarshals the snapshot named `name` into `into`.
	// Reports false when no snapshot exists.
	Load(name string, into interface{}) (bool, error)
}
