package models

// LatLng is a geocoded position.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// AddressSuggestion is one autocomplete candidate.
type AddressSuggestion struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}
