package relational

import (
	"gorm.io/gorm"

	"hbnb_api/internal/domain"
)

type loader struct {
	one func(db *gorm.DB, id string) (domain.Entity, error)
	all func(db *gorm.DB) ([]domain.Entity, error)
}

var loaders = map[domain.Kind]loader{
	domain.KindState:   loaderFor[domain.State](nil),
	domain.KindAmenity: loaderFor[domain.Amenity](nil),
	domain.KindUser:    loaderFor[domain.User](nil),
	domain.KindCity:    loaderFor[domain.City](nil),
	domain.KindPlace:   loaderFor[domain.Place](attachLinks),
	domain.KindReview:  loaderFor[domain.Review](nil),
}

// loaderFor reads rows of T; after, when set, decorates the loaded rows.
func loaderFor[T any, PT interface {
	*T
	domain.Entity
}](after func(db *gorm.DB, rows []PT) error) loader {
	return loader{
		one: func(db *gorm.DB, id string) (domain.Entity, error) {
			var row T
			if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
				return nil, err
			}
			p := PT(&row)
			if after != nil {
				if err := after(db, []PT{p}); err != nil {
					return nil, err
				}
			}
			return p, nil
		},
		all: func(db *gorm.DB) ([]domain.Entity, error) {
			var rows []T
			if err := db.Order("id").Find(&rows).Error; err != nil {
				return nil, err
			}
			ps := make([]PT, len(rows))
			out := make([]domain.Entity, len(rows))
			for i := range rows {
				ps[i] = PT(&rows[i])
				out[i] = ps[i]
			}
			if after != nil && len(ps) > 0 {
				if err := after(db, ps); err != nil {
					return nil, err
				}
			}
			return out, nil
		},
	}
}

// attachLinks fills AmenityIDs from the association table, sorted by id.
func attachLinks(db *gorm.DB, places []*domain.Place) error {
	if len(places) == 1 {
		var ids []string
		if err := db.Raw(selectPlaceLinksSQL, places[0].ID).Scan(&ids).Error; err != nil {
			return err
		}
		if len(ids) > 0 {
			places[0].AmenityIDs = ids
		}
		return nil
	}

	var links []placeAmenity
	if err := db.Order("place_id, amenity_id").Find(&links).Error; err != nil {
		return err
	}
	byPlace := make(map[string][]string, len(places))
	for _, l := range links {
		byPlace[l.PlaceID] = append(byPlace[l.PlaceID], l.AmenityID)
	}
	for _, p := range places {
		p.AmenityIDs = byPlace[p.ID]
	}
	return nil
}
