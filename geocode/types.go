package geocode

// ReverseResult is the Nominatim /reverse response (format=json).
type ReverseResult struct {
	PlaceID     int64   `json:"place_id"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	OSMID       int64   `json:"osm_id"`
	OSMType     string  `json:"osm_type"`
	Address     Address `json:"address"`
	// Error is set instead of an address for points Nominatim cannot
	// geocode, e.g. the open sea.
	Error string `json:"error,omitempty"`
}

// Address contains the structured address components we use.
type Address struct {
	Road         string `json:"road,omitempty"`
	Suburb       string `json:"suburb,omitempty"`
	Village      string `json:"village,omitempty"`
	Town         string `json:"town,omitempty"`
	City         string `json:"city,omitempty"`
	Municipality string `json:"municipality,omitempty"`
	County       string `json:"county,omitempty"`
	State        string `json:"state,omitempty"`
	Postcode     string `json:"postcode,omitempty"`
	Country      string `json:"country,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
}

// AreaName picks the most specific populated place, in the order city,
// town, village, suburb, municipality, county.
func (a Address) AreaName() (string, bool) {
	for _, name := range []string{a.City, a.Town, a.Village, a.Suburb, a.Municipality, a.County} {
		if name != "" {
			return name, true
		}
	}
	return "", false
}
