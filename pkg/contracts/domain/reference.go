package domain

// AdvisorRecord maps a client account to its owning advisor and client
// display name. Account is the join key; the joiner coerces it to numeric
// form on both sides before comparing.
type AdvisorRecord struct {
	Account    NullString `json:"account"`
	ClientName NullString `json:"client_name"`
	Advisor    NullString `json:"advisor"`
}

// DashboardRecord maps (account, asset, fixing date) to the opening and
// current market price of a position. Duplicates on that composite key are
// dropped before joining, first occurrence wins.
type DashboardRecord struct {
	Account      NullString `json:"account"`
	Asset        NullString `json:"asset"`
	FixingDate   NullString `json:"fixing_date"`
	OpeningPrice NullFloat  `json:"opening_price"`
	MarketPrice  NullFloat  `json:"market_price"`
}
