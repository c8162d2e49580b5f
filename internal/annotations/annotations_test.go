package annotations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pagetally/internal/calendar"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := db.AutoMigrate(&Annotation{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func TestCreateAnnotation(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		name        string
		annotation  *Annotation
		wantErr     bool
		errContains string
	}{
		{
			name: "valid annotation",
			annotation: &Annotation{
				Origin:      "example.org",
				Title:       "Launch",
				Description: "Public launch",
				Type:        AnnotationCampaign,
				StartDay:    "2024-03-01",
				EndDay:      "2024-03-07",
			},
		},
		{
			name: "single day defaults",
			annotation: &Annotation{
				Origin:   "example.org",
				Title:    "Deploy",
				StartDay: "2024-03-02",
			},
		},
		{
			name:        "missing title",
			annotation:  &Annotation{Origin: "example.org", StartDay: "2024-03-02"},
			wantErr:     true,
			errContains: "title is required",
		},
		{
			name:        "missing origin",
			annotation:  &Annotation{Title: "x", StartDay: "2024-03-02"},
			wantErr:     true,
			errContains: "origin is required",
		},
		{
			name:        "end before start",
			annotation:  &Annotation{Origin: "example.org", Title: "x", StartDay: "2024-03-02", EndDay: "2024-03-01"},
			wantErr:     true,
			errContains: "invalid annotation days",
		},
		{
			name:        "month precision",
			annotation:  &Annotation{Origin: "example.org", Title: "x", StartDay: "2024-03"},
			wantErr:     true,
			errContains: "YYYY-MM-DD",
		},
		{
			name:        "unknown type",
			annotation:  &Annotation{Origin: "example.org", Title: "x", StartDay: "2024-03-02", Type: "party"},
			wantErr:     true,
			errContains: "unknown annotation type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CreateAnnotation(db, tt.annotation)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, tt.annotation.ID)
			assert.NotEmpty(t, tt.annotation.EndDay)
			assert.NotEmpty(t, tt.annotation.Type)
		})
	}
}

func TestForInterval(t *testing.T) {
	db := setupTestDB(t)
	for _, a := range []Annotation{
		{Origin: "example.org", Title: "february", StartDay: "2024-02-10", EndDay: "2024-02-20"},
		{Origin: "example.org", Title: "straddles", StartDay: "2024-02-25", EndDay: "2024-03-02"},
		{Origin: "example.org", Title: "march", StartDay: "2024-03-15"},
		{Origin: "example.org", Title: "april", StartDay: "2024-04-01"},
		{Origin: "other.org", Title: "elsewhere", StartDay: "2024-03-15"},
	} {
		require.NoError(t, CreateAnnotation(db, &a))
	}

	titles := func(interval string) []string {
		found, err := ForInterval(db, "example.org", calendar.MustParseInterval(interval))
		require.NoError(t, err)
		var out []string
		for _, a := range found {
			out = append(out, a.Title)
		}
		return out
	}

	assert.Equal(t, []string{"straddles", "march"}, titles("2024-03"))
	assert.Equal(t, []string{"march"}, titles("2024-03-15"))
	assert.Equal(t, []string{"february", "straddles", "march", "april"}, titles("2024"))
	assert.Equal(t, []string{"straddles"}, titles("2024-W09"))
	assert.Empty(t, titles("2023"))
}

func TestDeleteAnnotation(t *testing.T) {
	db := setupTestDB(t)
	a := &Annotation{Origin: "example.org", Title: "x", StartDay: "2024-03-02"}
	require.NoError(t, CreateAnnotation(db, a))

	assert.ErrorIs(t, DeleteAnnotation(db, a.ID, "other.org"), gorm.ErrRecordNotFound)
	assert.NoError(t, DeleteAnnotation(db, a.ID, "example.org"))
}
