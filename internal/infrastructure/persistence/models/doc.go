// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
//   - base.go: shared columns (id, timestamps, version)
//   - donation.go: donations, donation_projects and annual_goals
package models
