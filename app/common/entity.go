package common

// Entity is a municipality or the whole country.
type Entity struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// WholeCountry is the default selection.
var WholeCountry = Entity{Code: WholeCountryCode, Name: "Finland"}
