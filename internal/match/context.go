package match

// Context carries the per-utterance priority information the matchers use
// for disambiguation. It is built fresh from session/UI state for every
// parse and never persisted.
type Context struct {
	// Tiles holds the species IDs currently present on the user's active
	// tiles. Highest disambiguation priority.
	Tiles map[string]struct{}

	// Site holds the species IDs valid for the current count site.
	// Medium priority.
	Site map[string]struct{}

	// Recents lists recently-used species IDs, most recent first.
	// Used as a tie-break boost only.
	Recents []string

	// Session holds the species IDs already recorded in the current count
	// session. An auto-accepted species outside this set still needs a
	// lightweight confirmation popup.
	Session map[string]struct{}
}

// NewContext returns an empty Context ready for population.
func NewContext() *Context {
	return &Context{
		Tiles:   make(map[string]struct{}),
		Site:    make(map[string]struct{}),
		Session: make(map[string]struct{}),
	}
}

// HasTile reports whether speciesID is on an active tile.
func (c *Context) HasTile(speciesID string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Tiles[speciesID]
	return ok
}

// OnSite reports whether speciesID is valid for the current site. An empty
// site set means no site filter is active and everything is valid.
func (c *Context) OnSite(speciesID string) bool {
	if c == nil || len(c.Site) == 0 {
		return true
	}
	_, ok := c.Site[speciesID]
	return ok
}

// InSession reports whether speciesID was already recorded this session.
func (c *Context) InSession(speciesID string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Session[speciesID]
	return ok
}

// RecencyBoost returns a small additive score boost for recently-used
// species, decaying with position. At most recencyBoostMax.
func (c *Context) RecencyBoost(speciesID string) float64 {
	if c == nil {
		return 0
	}
	for i, id := range c.Recents {
		if id == speciesID {
			boost := recencyBoostMax - float64(i)*recencyBoostStep
			if boost < 0 {
				return 0
			}
			return boost
		}
	}
	return 0
}

const (
	recencyBoostMax  = 0.03
	recencyBoostStep = 0.005

	tileBoost = 0.05
	siteBoost = 0.02
)

// contextBoost sums the priority boosts for speciesID: tiles first, then
// site membership, then recency.
func (c *Context) contextBoost(speciesID string) float64 {
	if c == nil {
		return 0
	}
	boost := c.RecencyBoost(speciesID)
	if c.HasTile(speciesID) {
		boost += tileBoost
	}
	if len(c.Site) > 0 && c.OnSite(speciesID) {
		boost += siteBoost
	}
	return boost
}
