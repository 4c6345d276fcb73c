package user

// Actor is the authenticated caller together with the building selected for
// the request. BuildingID is zero when no building could be resolved.
type Actor struct {
	User       User
	BuildingID int64
}

// ID returns the caller's user id.
func (a Actor) ID() int64 { return a.User.ID }

// HasBuilding reports whether a building is selected.
func (a Actor) HasBuilding() bool { return a.BuildingID > 0 }
