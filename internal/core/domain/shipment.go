package domain

import "time"

type TransportMode string

const (
	ModeSea  TransportMode = "sea"
	ModeAir  TransportMode = "air"
	ModeRoad TransportMode = "road"
)

func ParseTransportMode(raw string) (TransportMode, bool) {
	switch TransportMode(raw) {
	case ModeSea, ModeAir, ModeRoad:
		return TransportMode(raw), true
	default:
		return "", false
	}
}

// RoutePoint is one end of a shipment route.
type RoutePoint struct {
	Country string `json:"country"`
	City    string `json:"city,omitempty"`
}

type ShipmentItem struct {
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
}

type Shipment struct {
	ID           string         `json:"id"`
	Reference    string         `json:"reference"`
	Origin       RoutePoint     `json:"origin"`
	Destination  RoutePoint     `json:"destination"`
	Mode         TransportMode  `json:"mode"`
	Incoterm     string         `json:"incoterm"`
	BuyerPartyID string         `json:"buyer_party_id"`
	Items        []ShipmentItem `json:"items"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CrossBorder reports whether origin and destination are in different countries.
func (s *Shipment) CrossBorder() bool {
	return s.Origin.Country != "" && s.Destination.Country != "" &&
		s.Origin.Country != s.Destination.Country
}

type Product struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	HSCode       string  `json:"hs_code"`
	UnitPrice    float64 `json:"unit_price"`
	UnitWeightKG float64 `json:"unit_weight_kg,omitempty"`
}

type Party struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Address string `json:"address,omitempty"`
	TaxID   string `json:"tax_id,omitempty"`
}

// ProductIndex builds an id lookup over the product catalog.
func ProductIndex(products []Product) map[string]Product {
	index := make(map[string]Product, len(products))
	for _, p := range products {
		index[p.ID] = p
	}
	return index
}
