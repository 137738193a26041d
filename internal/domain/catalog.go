package domain

// Canonical read-only projections of backend catalogue data. Field values are
// already normalized: identifiers are strings, prices are integer cents.

type City struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Pinyin      string `json:"pinyin,omitempty"`
	CinemaTotal int    `json:"cinema_total,omitempty"`
	TenantID    string `json:"tenant_id"`
}

type CinemaRecord struct {
	CinemaID       string `json:"cinema_id"`
	TenantID       string `json:"tenant_id"`
	ResolvedDomain string `json:"resolved_domain,omitempty"`
	Name           string `json:"name"`
	Address        string `json:"address,omitempty"`
	Phone          string `json:"phone,omitempty"`
	CityID         string `json:"city_id,omitempty"`
}

type Movie struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Duration int    `json:"duration,omitempty"`
	Genre    string `json:"genre,omitempty"`
	Poster   string `json:"poster,omitempty"`
	CinemaID string `json:"cinema_id"`
	TenantID string `json:"tenant_id"`
}

type Session struct {
	ID         string `json:"id"`
	CinemaID   string `json:"cinema_id"`
	MovieID    string `json:"movie_id"`
	HallName   string `json:"hall_name"`
	PriceCents int64  `json:"price_cents"`
	StartTime  string `json:"start_time"`
	Date       string `json:"date,omitempty"`
	TenantID   string `json:"tenant_id"`
}
