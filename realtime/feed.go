package realtime

// Change operations carried by the feed.
const (
	OpInsert = "insert"
	OpDelete = "delete"
)

// Event is a row-level change notification for one scope of one entity
// family. It carries only the row identifier: consumers needing the full
// record perform a follow-up point read against their gateway.
type Event struct {
	Op     string `json:"op"`
	Family string `json:"family"`
	Scope  string `json:"scope"`
	RowID  string `json:"row_id"`
}

// Handlers receive change events for one subscription.
type Handlers struct {
	OnInsert func(Event)
	OnDelete func(Event)
}

// Feed is a realtime change feed. Delivery is at-least-once; consumers must
// be idempotent under redelivery.
type Feed interface {
	Publish(ev Event) error
	// Subscribe opens a feed scoped to one family+scope. The returned
	// teardown closes the subscription and is safe to call in any state,
	// including after a failed handshake.
	Subscribe(family, scope string, h Handlers) (func(), error)
}

// Topic names the feed channel for one scope of one family.
func Topic(family, scope string) string {
	return family + "." + scope
}
