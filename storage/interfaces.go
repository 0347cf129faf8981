package storage

import "tripscout/models"

// Store is the persistence surface the pipeline writes to.
type Store interface {
	SaveRun(stats *models.RunStats) error
	SaveOffers(runID string, offers []*models.CanonicalOffer) error
	SavePackages(packages []*models.Package) error
	FetchLodging() ([]*models.LodgingOption, error)
	PackageKeys() (map[string]struct{}, error)
	Close() error
}

// RawOfferWriter is the interface for dumping the unprocessed offer union.
type RawOfferWriter interface {
	WriteRaw(offers []*models.Offer) error
	Close() error
}
