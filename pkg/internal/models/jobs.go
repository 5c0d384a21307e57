package models

import "gorm.io/datatypes"

type Job struct {
	BaseModel

	Title       string                      `json:"title"`
	Description string                      `json:"description" gorm:"type:text"`
	Location    string                      `json:"location"`
	CompanyName string                      `json:"company_name"`
	Skills      datatypes.JSONSlice[string] `json:"skills"`

	RecruiterID uint    `json:"recruiter_id"`
	Recruiter   Account `json:"recruiter"`
}

type Resume struct {
	BaseModel

	CandidateName   string                      `json:"candidate_name"`
	Email           string                      `json:"email"`
	Summary         string                      `json:"summary" gorm:"type:text"`
	Skills          datatypes.JSONSlice[string] `json:"skills"`
	ExperienceYears float64                     `json:"experience_years"`

	// Analysis carries the AI-derived strengths/concerns from the screening
	// stage, AiScorecard receives the interview outcome.
	Analysis    datatypes.JSONMap `json:"analysis"`
	AiScorecard datatypes.JSONMap `json:"ai_scorecard"`

	JobID       *uint   `json:"job_id"`
	RecruiterID uint    `json:"recruiter_id"`
	Recruiter   Account `json:"recruiter"`
}
