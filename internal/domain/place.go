package domain

type Amenity struct {
	Base
	Name string `gorm:"size:128;not null" json:"name"`
}

func (*Amenity) Kind() Kind { return KindAmenity }

type Place struct {
	Base
	CityID          string  `gorm:"size:60;not null;index" json:"city_id"`
	UserID          string  `gorm:"size:60;not null;index" json:"user_id"`
	Name            string  `gorm:"size:128;not null" json:"name"`
	Description     string  `gorm:"size:1024" json:"description"`
	NumberRooms     int     `gorm:"not null;default:0" json:"number_rooms"`
	NumberBathrooms int     `gorm:"not null;default:0" json:"number_bathrooms"`
	MaxGuest        int     `gorm:"not null;default:0" json:"max_guest"`
	PriceByNight    int     `gorm:"not null;default:0" json:"price_by_night"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`

	// Relational storage keeps these in the place_amenity table.
	AmenityIDs []string `gorm:"-" json:"amenity_ids"`
}

func (*Place) Kind() Kind { return KindPlace }

// HasAmenity reports whether id is linked to the place.
func (p *Place) HasAmenity(id string) bool {
	for _, a := range p.AmenityIDs {
		if a == id {
			return true
		}
	}
	return false
}

// UnlinkAmenity removes id and reports whether it was linked.
func (p *Place) UnlinkAmenity(id string) bool {
	for i, a := range p.AmenityIDs {
		if a == id {
			p.AmenityIDs = append(p.AmenityIDs[:i:i], p.AmenityIDs[i+1:]...)
			return true
		}
	}
	return false
}
