// Package annotations stores curated events (deployments, campaigns,
// incidents) that are shown alongside an origin's stats.
package annotations

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"pagetally/internal/calendar"
)

// AnnotationType represents the type of annotation
type AnnotationType string

const (
	AnnotationDeployment AnnotationType = "deployment"
	AnnotationCampaign   AnnotationType = "campaign"
	AnnotationIncident   AnnotationType = "incident"
	AnnotationGeneral    AnnotationType = "general"
)

// Annotation spans StartDay to EndDay inclusive. Days are stored in their
// canonical YYYY-MM-DD form so they compare lexically.
type Annotation struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Origin      string         `gorm:"not null;index:idx_annotations_origin_days" json:"origin"`
	Title       string         `gorm:"not null;size:255" json:"title"`
	Description string         `gorm:"size:1000" json:"description"`
	Type        AnnotationType `gorm:"size:50;default:'general'" json:"type"`
	StartDay    string         `gorm:"not null;size:10;index:idx_annotations_origin_days" json:"startDay"`
	EndDay      string         `gorm:"not null;size:10" json:"endDay"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// TableName specifies the table name for GORM
func (Annotation) TableName() string {
	return "annotations"
}

// ValidAnnotationTypes returns all valid annotation types
func ValidAnnotationTypes() []AnnotationType {
	return []AnnotationType{
		AnnotationDeployment,
		AnnotationCampaign,
		AnnotationIncident,
		AnnotationGeneral,
	}
}

// IsValidAnnotationType checks if the given type is valid
func IsValidAnnotationType(t AnnotationType) bool {
	for _, valid := range ValidAnnotationTypes() {
		if t == valid {
			return true
		}
	}
	return false
}

// Days returns the annotation's span as a day interval.
func (a Annotation) Days() (calendar.Interval, error) {
	return calendar.ParseInterval(a.StartDay + ":" + a.EndDay)
}

// CreateAnnotation validates and stores an annotation. EndDay defaults to
// StartDay.
func CreateAnnotation(db *gorm.DB, annotation *Annotation) error {
	if annotation.Title == "" {
		return fmt.Errorf("annotation title is required")
	}
	if annotation.Origin == "" {
		return fmt.Errorf("annotation origin is required")
	}
	if annotation.EndDay == "" {
		annotation.EndDay = annotation.StartDay
	}
	days, err := annotation.Days()
	if err != nil {
		return fmt.Errorf("invalid annotation days: %w", err)
	}
	if days.Unit() != calendar.Day {
		return fmt.Errorf("annotation days must be YYYY-MM-DD, got %s", days)
	}

	if annotation.Type == "" {
		annotation.Type = AnnotationGeneral
	}
	if !IsValidAnnotationType(annotation.Type) {
		return fmt.Errorf("unknown annotation type %q", annotation.Type)
	}

	now := time.Now().UTC()
	annotation.CreatedAt = now
	annotation.UpdatedAt = now

	return db.Create(annotation).Error
}

// ForInterval returns the origin's annotations overlapping interval,
// ordered by start day.
func ForInterval(db *gorm.DB, origin string, interval calendar.Interval) ([]Annotation, error) {
	first := interval.Start().FirstDay().Format(time.DateOnly)
	last := interval.End().LastDay().Format(time.DateOnly)

	var annotations []Annotation
	err := db.Where("origin = ? AND start_day <= ? AND end_day >= ?", origin, last, first).
		Order("start_day ASC, id ASC").
		Find(&annotations).Error
	if err != nil {
		return nil, err
	}
	return annotations, nil
}

// DeleteAnnotation deletes an annotation by ID and origin
func DeleteAnnotation(db *gorm.DB, id uint, origin string) error {
	result := db.Where("id = ? AND origin = ?", id, origin).Delete(&Annotation{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
