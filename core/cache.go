package core

// Record is any entity record held in an entity store cache.
type Record interface {
	RecordID() string
}

// Cache is an ordered, identity-unique collection of entity records.
// An operation that would introduce a duplicate identifier replaces the
// existing entry in place instead of appending a second one.
// Not safe for concurrent use; each store guards its cache with its own lock.
type Cache[T Record] struct {
	order []string
	byID  map[string]T
}

func NewCache[T Record]() *Cache[T] {
	return &Cache[T]{byID: make(map[string]T)}
}

func (c *Cache[T]) Len() int {
	return len(c.order)
}

func (c *Cache[T]) Get(id string) (T, bool) {
	rec, ok := c.byID[id]
	return rec, ok
}

// List returns the records in display order. The returned slice is owned by
// the caller.
func (c *Cache[T]) List() []T {
	recs := make([]T, 0, len(c.order))
	for _, id := range c.order {
		recs = append(recs, c.byID[id])
	}
	return recs
}

// Replace swaps the whole cache content for `recs`, preserving their order.
// A duplicate identifier within `recs` keeps its first position with the
// later value.
func (c *Cache[T]) Replace(recs []T) {
	c.order = c.order[:0]
	c.byID = make(map[string]T, len(recs))
	for _, rec := range recs {
		id := rec.RecordID()
		if _, ok := c.byID[id]; !ok {
			c.order = append(c.order, id)
		}
		c.byID[id] = rec
	}
}

// Prepend puts `rec` at the head; if the identifier is already present the
// existing entry is replaced in place instead.
func (c *Cache[T]) Prepend(rec T) {
	id := rec.RecordID()
	if _, ok := c.byID[id]; !ok {
		c.order = append([]string{id}, c.order...)
	}
	c.byID[id] = rec
}

// Append puts `rec` at the tail; if the identifier is already present the
// existing entry is replaced in place instead.
func (c *Cache[T]) Append(rec T) {
	id := rec.RecordID()
	if _, ok := c.byID[id]; !ok {
		c.order = append(c.order, id)
	}
	c.byID[id] = rec
}

// MergeNew inserts `rec` only if its identifier is not present yet
// (first-writer-wins, the reconciler's merge rule). `atTail` selects the
// family's display convention. Reports whether the record was inserted.
func (c *Cache[T]) MergeNew(rec T, atTail bool) bool {
	if _, ok := c.byID[rec.RecordID()]; ok {
		return false
	}
	if atTail {
		c.Append(rec)
	} else {
		c.Prepend(rec)
	}
	return true
}

// Set replaces an existing entry in place without moving it.
// Reports whether the identifier was present.
func (c *Cache[T]) Set(rec T) bool {
	id := rec.RecordID()
	if _, ok := c.byID[id]; !ok {
		return false
	}
	c.byID[id] = rec
	return true
}

// Remove drops the entry with `id`; absence is not an error.
func (c *Cache[T]) Remove(id string) bool {
	if _, ok := c.byID[id]; !ok {
		return false
	}
	delete(c.byID, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}
