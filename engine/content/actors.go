package content

import (
	lru "github.com/hashicorp/golang-lru"
)

// DefaultActorCacheSize is used when no size is configured.
const DefaultActorCacheSize = 64

// Speaker is the resolved presentation of an actor.
type Speaker struct {
	Name     string
	Portrait string
}

// Actors resolves speaker names and portraits through an LRU cache. The
// cache is transient and never saved.
type Actors struct {
	cat   *Catalog
	cache *lru.Cache
}

// NewActors creates a speaker lookup over the catalog.
func NewActors(cat *Catalog, size int) (*Actors, error) {
	if size <= 0 {
		size = DefaultActorCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Actors{cat: cat, cache: cache}, nil
}

// Speaker returns the display name and portrait of an actor. Unknown actors
// are shown by id; an empty id is the narrator.
func (a *Actors) Speaker(actorID string) Speaker {
	if actorID == "" {
		return Speaker{}
	}
	if v, ok := a.cache.Get(actorID); ok {
		return v.(Speaker)
	}
	s := Speaker{Name: actorID}
	if actor, ok := a.cat.Actor(actorID); ok {
		switch {
		case actor.DisplayName != "":
			s.Name = actor.DisplayName
		case actor.Name != "":
			s.Name = actor.Name
		}
		s.Portrait = actor.Portrait
	}
	a.cache.Add(actorID, s)
	return s
}

// Len returns the number of cached speakers.
func (a *Actors) Len() int {
	return a.cache.Len()
}

// Purge empties the cache.
func (a *Actors) Purge() {
	a.cache.Purge()
}
