package domain

// Offer is the bookable product a stock belongs to. Catalog import owns these
// rows; the booking core only reads them.
type Offer struct {
	ID        string
	VenueID   string
	Name      string
	IsActive  bool
	IsDuo     bool
	IsDigital bool
	CanExpire bool
	// CapExempt marks physical categories (e.g. press subscriptions) that
	// count toward the overall cap only, never the physical sub-bucket.
	CapExempt bool
}

type Venue struct {
	ID          string
	OffererID   string
	Name        string
	IsValidated bool
}

type Offerer struct {
	ID       string
	Name     string
	IsActive bool
}
