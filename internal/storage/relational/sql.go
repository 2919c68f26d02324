package relational

// GORM rebinds ? for the active dialect.

const deletePlaceLinksSQL = `
DELETE FROM place_amenity
WHERE place_id = ?
`

const deleteAmenityLinksSQL = `
DELETE FROM place_amenity
WHERE amenity_id = ?
`

const selectPlaceLinksSQL = `
SELECT amenity_id
FROM place_amenity
WHERE place_id = ?
ORDER BY amenity_id
`
