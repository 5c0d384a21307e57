package models

// Account is the recruiter-side reference record. Only the fields the
// meeting flow reads are mapped here; the full profile lives in the main
// recruiting backend.
type Account struct {
	BaseModel

	Name  string `json:"name"`
	Nick  string `json:"nick"`
	Email string `json:"email" gorm:"uniqueIndex"`
}
