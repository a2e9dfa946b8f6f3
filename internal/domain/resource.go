package domain

import "time"

// Category values mirror the catalog filter chips in the client.
const (
	CategoryProgramming = "Programación"
	CategoryMarketing   = "Marketing"
	CategoryScience     = "Ciencia"
	CategoryBusiness    = "Negocios"
	CategoryDesign      = "Diseño"
	CategoryOther       = "Otros"
)

// ValidCategory reports whether the category is one of the catalog values.
func ValidCategory(c string) bool {
	switch c {
	case CategoryProgramming, CategoryMarketing, CategoryScience, CategoryBusiness, CategoryDesign, CategoryOther:
		return true
	}
	return false
}

// Resource is a shared PDF document record. Downloads is the aggregate
// counter incremented on every permitted download regardless of tier; it is
// unrelated to the per-user download counter.
type Resource struct {
	ID             string
	Title          string
	Author         string
	AIModel        string
	Category       string
	Description    string
	OriginalSource string
	FileKey        string
	AvatarKey      string
	ThumbnailKey   string
	Downloads      int64
	AverageRating  float64
	TotalRatings   int
	Validations    int
	UploaderID     string
	UploadedAt     time.Time
	UpdatedAt      time.Time
}
