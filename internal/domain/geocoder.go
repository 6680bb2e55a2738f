package domain

import "context"

// Geocoder resolves a postal code to coordinates for providers whose APIs
// only accept lat/lon. An empty result (zero coordinates, nil error) means
// the postal code could not be resolved.
type Geocoder interface {
	GeocodePostal(ctx context.Context, postalCode string) (Coordinates, error)
}
