// Package models holds the GORM persistence shapes. Domain packages never
// import it; repositories translate through the mappers package.
package models

// All lists every model in creation order, used by auto-migration.
func All() []interface{} {
	return []interface{}{
		&RegionModel{},
		&ICUModel{},
		&UserModel{},
		&ICUOperatorModel{},
		&ICUManagerModel{},
		&BedCountModel{},
		&UpdateTokenModel{},
		&ExternalClientModel{},
		&ExternalClientRegionModel{},
	}
}
