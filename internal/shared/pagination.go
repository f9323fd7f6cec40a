package shared

// Page bounds list queries.
type Page struct {
	Limit  int
	Offset int
}

// Clamp normalises a page against defaults and a hard ceiling.
func (p Page) Clamp(def, max int) Page {
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > max {
		p.Limit = max
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
