package relational

import "hbnb_api/internal/domain"

// placeAmenity is one row of the Place<->Amenity association.
type placeAmenity struct {
	PlaceID   string          `gorm:"primaryKey;size:60"`
	AmenityID string          `gorm:"primaryKey;size:60"`
	Place     *domain.Place   `gorm:"foreignKey:PlaceID;constraint:OnDelete:CASCADE"`
	Amenity   *domain.Amenity `gorm:"foreignKey:AmenityID;constraint:OnDelete:CASCADE"`
}

func (placeAmenity) TableName() string { return "place_amenity" }
