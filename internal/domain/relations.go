package domain

// Refs returns the soft foreign keys held by e, keyed by the referenced kind.
func Refs(e Entity) map[Kind]string {
	switch v := e.(type) {
	case *City:
		return map[Kind]string{KindState: v.StateID}
	case *Place:
		return map[Kind]string{KindCity: v.CityID, KindUser: v.UserID}
	case *Review:
		return map[Kind]string{KindPlace: v.PlaceID, KindUser: v.UserID}
	}
	return nil
}

// SetRef points e at parent. It reports false when e has no such reference.
func SetRef(e Entity, parent Kind, id string) bool {
	switch v := e.(type) {
	case *City:
		if parent == KindState {
			v.StateID = id
			return true
		}
	case *Place:
		switch parent {
		case KindCity:
			v.CityID = id
			return true
		case KindUser:
			v.UserID = id
			return true
		}
	case *Review:
		switch parent {
		case KindPlace:
			v.PlaceID = id
			return true
		case KindUser:
			v.UserID = id
			return true
		}
	}
	return false
}

// Children lists the kinds holding a reference to parent.
func Children(parent Kind) []Kind {
	switch parent {
	case KindState:
		return []Kind{KindCity}
	case KindCity:
		return []Kind{KindPlace}
	case KindUser:
		return []Kind{KindPlace, KindReview}
	case KindPlace:
		return []Kind{KindReview}
	}
	return nil
}
