package models

import "fmt"

// Canonical record fields.
const (
	FieldName              = "name"
	FieldHeadline          = "headline"
	FieldLocation          = "location"
	FieldAbout             = "about"
	FieldConnections       = "connections"
	FieldProfilePictureURL = "profile_picture_url"
	FieldEmail             = "email"
	FieldPhone             = "phone"
	FieldWebsite           = "website"
	FieldCurrentPosition   = "current_position"
	FieldCurrentCompany    = "current_company"
	FieldEmploymentDur     = "employment_duration"
	FieldTotalExperience   = "total_experience_count"
	FieldTotalEducation    = "total_education_count"
	FieldSkillsList        = "skills_list"
	FieldSkillsCount       = "skills_count"
	FieldCertifications    = "certifications"
	FieldCertsCount        = "certifications_count"
	FieldLanguages         = "languages"
	FieldLanguagesCount    = "languages_count"
	FieldVolunteer         = "volunteer_experience"
	FieldVolunteerCount    = "volunteer_count"
	FieldPublications      = "publications"
	FieldPublicationsCount = "publications_count"
	FieldProjects          = "projects"
	FieldProjectsCount     = "projects_count"
	FieldFollowers         = "followers"
	FieldActivityPosts     = "activity_posts"
	FieldCompleteness      = "profile_completeness_indicators"
	FieldProfileURL        = "profile_url"
	FieldExtractionMethod  = "extraction_method"
	FieldExtractionStatus  = "extraction_status"
)

const (
	MethodLimited     = "limited"
	StatusLimitedData = "limited_data"
)

// MeaningfulFields decide whether a record carries real profile data.
var MeaningfulFields = []string{FieldName, FieldHeadline, FieldAbout}

// Numbered builds flattened composite names such as experience_2_title.
func Numbered(prefix string, n int, sub string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, n, sub)
}

// Slot builds numbered slot names such as skill_3.
func Slot(prefix string, n int) string {
	return fmt.Sprintf("%s_%d", prefix, n)
}
