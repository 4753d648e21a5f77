package models

import "strings"

// MapCategory translates a property type to the target form's unitType
// option. Unrecognized values fall back to APARTMENT.
func MapCategory(tipo string) string {
	switch strings.TrimSpace(tipo) {
	case TipoCasa:
		return "HOME"
	case TipoTerreno:
		return "ALLOTMENT_LAND"
	case TipoComercial:
		return "BUILDING"
	default:
		return "APARTMENT"
	}
}

// MapTaxPeriod translates the IPTU billing period. Anything that does not
// mention "Mensal" is billed yearly.
func MapTaxPeriod(periodo string) string {
	if strings.Contains(periodo, "Mensal") {
		return "MONTHLY"
	}
	return "YEARLY"
}

// MapAddressDisplay translates the address display mode to the suffix of the
// form's display switch.
func MapAddressDisplay(modo string) string {
	switch strings.ToLower(strings.TrimSpace(modo)) {
	case "rua":
		return "STREET"
	case "bairro":
		return "NEIGHBORHOOD"
	default:
		return "ALL"
	}
}
