package models

// Provider is a streaming service from the external catalog.
type Provider struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

// ProviderRecord states that a provider offers a movie in a country.
type ProviderRecord struct {
	ProviderID int64  `json:"providerId"`
	MovieID    int64  `json:"movieId"`
	Country    string `json:"country"`
}
