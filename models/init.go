package models

import "gorm.io/gorm"

// CreateDefaultPointsPackages seeds the top-up catalog.
func CreateDefaultPointsPackages(db *gorm.DB) error {
	defaultPackages := []PointsPackage{
		{
			Name:        "starter",
			Description: "500 marketplace points",
			Points:      500,
			Price:       500, // $5
		},
		{
			Name:        "standard",
			Description: "1,200 marketplace points",
			Points:      1200,
			Price:       1000, // $10
			IsPopular:   true,
		},
		{
			Name:        "pro",
			Description: "7,000 marketplace points",
			Points:      7000,
			Price:       5000, // $50
		},
	}
	for _, pkg := range defaultPackages {
		if err := db.FirstOrCreate(&pkg, "name = ?", pkg.Name).Error; err != nil {
			return err
		}
	}
	return nil
}
