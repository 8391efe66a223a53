package memtable

// Item is what a read observes for one key. Key and Value alias the log buffer.
type Item struct {
	Key     []byte
	Value   []byte
	Version uint64
	// Tombstone is set when the key was removed at Version. Value is nil then.
	Tombstone bool
}

// Mode selects how reads treat tombstones and older versions.
type Mode uint8

const (
	// Latest yields the newest visible value per key and hides tombstones.
	Latest Mode = iota
	// LatestWithTombstone also yields keys whose newest visible entry is a tombstone.
	LatestWithTombstone
	// AllVersions yields every visible version of every key, newest first, tombstones included.
	AllVersions
)
