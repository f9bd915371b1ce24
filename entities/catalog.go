package entities

import (
	"github.com/google/uuid"
)

type Tag struct {
	ID   uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name string    `gorm:"uniqueIndex;size:32" json:"name"`
	Slug string    `gorm:"uniqueIndex;size:32" json:"slug"`
}

type Ingredient struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name            string    `gorm:"index;size:128" json:"name"`
	MeasurementUnit string    `gorm:"size:64" json:"measurement_unit"`
}
