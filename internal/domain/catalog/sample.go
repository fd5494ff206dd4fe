package catalog

// SampleCatalogID and SampleCatalogName identify the built-in catalog.
const (
	SampleCatalogID   = "gym"
	SampleCatalogName = "Sample gym timetable"
)

// Default limits that go with the sample catalog.
const (
	SampleMaxBudget        = 50
	SampleMaxItemCount     = 3
	SampleMaxTotalDuration = 150
	SampleDiversityBonus   = 2
)

// SampleGymItems returns the six gym classes of the sample timetable.
func SampleGymItems() []Item {
	return []Item{
		{ID: "Yoga", Price: 15, Duration: 60, Timeslot: "morning", Category: "mind_body", BaseScore: 8},
		{ID: "HIIT", Price: 20, Duration: 45, Timeslot: "morning", Category: "cardio", BaseScore: 9},
		{ID: "Pilates", Price: 18, Duration: 60, Timeslot: "afternoon", Category: "mind_body", BaseScore: 7},
		{ID: "Spinning", Price: 22, Duration: 45, Timeslot: "afternoon", Category: "cardio", BaseScore: 6},
		{ID: "Boxing", Price: 25, Duration: 60, Timeslot: "evening", Category: "strength", BaseScore: 10},
		{ID: "Zumba", Price: 12, Duration: 45, Timeslot: "evening", Category: "cardio", BaseScore: 5},
	}
}

// SampleGymCatalog returns SampleGymItems as a Catalog.
func SampleGymCatalog() *Catalog {
	return MustCatalog(SampleGymItems())
}
