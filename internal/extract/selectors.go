package extract

import (
	"profile_spider/internal/models"
)

// FieldSpec binds one scalar field to its selector chain. Post, when set,
// reshapes the matched text.
type FieldSpec struct {
	Name  string
	Chain Chain
	Post  func(string) string
}

// Selector chains are ordered newest markup revision first; the trailing
// entries target the legacy profile layout.
var basicFields = []FieldSpec{
	{
		Name: models.FieldName,
		Chain: Texts(
			"h1.text-heading-xlarge.inline.t-24.v-align-middle.break-words",
			`h1[class*="text-heading-xlarge"]`,
			"h1.break-words",
			".pv-text-details__left-panel h1",
			".ph5 h1",
			"h1",
		),
	},
	{
		Name: models.FieldHeadline,
		Chain: Texts(
			".text-body-medium.break-words",
			`div[class*="text-body-medium"][class*="break-words"]`,
			".pv-text-details__left-panel .text-body-medium",
			".ph5 .text-body-medium",
			"[data-generated-suggestion-target]",
		),
	},
	{
		Name: models.FieldLocation,
		Chain: Texts(
			".text-body-small.inline.t-black--light.break-words",
			`span[class*="text-body-small"][class*="t-black--light"]`,
			".pv-text-details__left-panel .text-body-small",
			".ph5 .text-body-small",
			".pv-top-card-profile-picture + div span.text-body-small",
		),
	},
	{
		Name: models.FieldAbout,
		Chain: Texts(
			".pv-shared-text-with-see-more .full-width",
			".pv-about__summary-text .full-width",
			"#about .full-width",
			`[class*="pv-about"] [class*="full-width"]`,
			".core-section-container__content .pv-shared-text-with-see-more",
			".about-section .pv-shared-text-with-see-more",
		),
	},
	{
		Name: models.FieldConnections,
		Chain: Texts(
			".t-black--light .t-normal",
			".pv-top-card--list-bullet li span",
			".pv-top-card-v2-ctas .t-black--light",
			".pv-top-card-profile-picture + div span.t-black--light",
			`[class*="t-black--light"] span`,
		),
		Post: ParseConnections,
	},
	{
		Name: models.FieldProfilePictureURL,
		Chain: Attrs("src",
			".pv-top-card-profile-picture img",
			".profile-photo-edit img",
			".pv-top-card__photo img",
		),
	},
	{
		Name: models.FieldWebsite,
		Chain: Attrs("href",
			`.pv-contact-info__contact-type a[href*="http"]`,
			".ci-websites a",
		),
	},
}

var experienceFields = []FieldSpec{
	{
		Name: models.FieldCurrentPosition,
		Chain: Texts(
			".experience-section .pv-entity__summary-info h3",
			`.pvs-list__paged-list-item .mr1.t-bold span[aria-hidden="true"]`,
			`[data-field="experience"] .pvs-entity__summary-title a span[aria-hidden="true"]`,
		),
	},
	{
		Name: models.FieldCurrentCompany,
		Chain: Texts(
			".experience-section .pv-entity__secondary-title",
			`.pvs-list__paged-list-item .t-14 span[aria-hidden="true"]`,
			`[data-field="experience"] .t-14.t-normal span[aria-hidden="true"]`,
		),
	},
	{
		Name: models.FieldEmploymentDur,
		Chain: Texts(
			".experience-section .pv-entity__bullet-item-v2",
			`.pvs-list__paged-list-item .t-black--light span[aria-hidden="true"]`,
			`[data-field="experience"] .pvs-entity__caption-wrapper`,
		),
	},
}

var metricFields = []FieldSpec{
	{
		Name: models.FieldFollowers,
		Chain: Texts(
			".pv-recent-activity-section__follower-count",
			".follower-count",
			`[data-field="follower"]`,
		),
	},
	{
		Name: models.FieldActivityPosts,
		Chain: Texts(
			".pv-recent-activity-section__posts-count",
			".activity-count",
		),
	},
}

var sections = []Section{
	{
		Prefix:     "experience",
		Items:      ".pvs-list__paged-list-item, .pv-entity__position-group-pager li",
		Max:        5,
		Required:   "title",
		CountField: models.FieldTotalExperience,
		Fields: []SubField{
			{"title", Text(`.mr1.t-bold span[aria-hidden="true"], h3`)},
			{"company", Text(`.t-14.t-normal span[aria-hidden="true"], .pv-entity__secondary-title`)},
			{"duration", Text(`.t-black--light span[aria-hidden="true"], .pv-entity__bullet-item`)},
			{"location", Text(`.t-black--light.t-normal span[aria-hidden="true"]`)},
		},
	},
	{
		Prefix:     "education",
		Items:      `[data-field="education"] .pvs-list__paged-list-item, .education-section .pv-entity__summary-info`,
		Max:        3,
		Required:   "school",
		CountField: models.FieldTotalEducation,
		Fields: []SubField{
			{"school", Text(`.mr1.t-bold span[aria-hidden="true"], h3`)},
			{"degree", Text(`.t-14.t-normal span[aria-hidden="true"], .pv-entity__degree-name`)},
			{"field", Text(`.t-14 span[aria-hidden="true"]:nth-child(2)`)},
			{"years", Text(`.t-black--light span[aria-hidden="true"], .pv-entity__dates`)},
		},
	},
	{
		Prefix:     "volunteer",
		Items:      `[data-field="volunteer"] .pvs-list__paged-list-item`,
		Max:        3,
		Required:   "title",
		CountField: models.FieldVolunteerCount,
		JoinField:  models.FieldVolunteer,
		Join: func(entry map[string]string) string {
			return entry["title"] + " at " + entry["organization"]
		},
		Fields: []SubField{
			{"title", Text(`.mr1.t-bold span[aria-hidden="true"]`)},
			{"organization", Text(`.t-14.t-normal span[aria-hidden="true"]`)},
		},
	},
}

var lists = []ListSpec{
	{
		Field:       models.FieldSkillsList,
		CountField:  models.FieldSkillsCount,
		PerSelector: 10,
		Max:         10,
		MinLen:      3,
		Dedupe:      true,
		SlotPrefix:  "skill",
		Slots:       5,
		Selectors: []string{
			`.pv-skill-category-entity__name span[aria-hidden="true"]`,
			".skill-name",
			`.pvs-skill .mr1 span[aria-hidden="true"]`,
			`[data-field="skill"] .mr1 span[aria-hidden="true"]`,
		},
	},
	{
		Field:       models.FieldCertifications,
		CountField:  models.FieldCertsCount,
		PerSelector: 5,
		Max:         5,
		MinLen:      4,
		Dedupe:      true,
		FirstOnly:   true,
		Selectors: []string{
			`[data-field="certification"] .mr1 span[aria-hidden="true"]`,
			".pv-accomplishments-block .pv-accomplishment-entity h4",
			".certifications .pv-entity__summary-title",
		},
	},
	{
		Field:       models.FieldLanguages,
		CountField:  models.FieldLanguagesCount,
		PerSelector: 5,
		Max:         5,
		Dedupe:      true,
		Selectors: []string{
			`[data-field="language"] .mr1 span[aria-hidden="true"]`,
			".languages .pv-accomplishment-entity h4",
		},
	},
	{
		Field:       models.FieldPublications,
		CountField:  models.FieldPublicationsCount,
		PerSelector: 3,
		Max:         3,
		MinLen:      6,
		Selectors: []string{
			`[data-field="publication"] .mr1 span[aria-hidden="true"]`,
			".publications .pv-accomplishment-entity h4",
		},
	},
	{
		Field:       models.FieldProjects,
		CountField:  models.FieldProjectsCount,
		PerSelector: 3,
		Max:         3,
		MinLen:      6,
		Selectors: []string{
			`[data-field="project"] .mr1 span[aria-hidden="true"]`,
			".projects .pv-accomplishment-entity h4",
		},
	},
}

// section keywords feeding profile_completeness_indicators
var completenessKeywords = map[string]string{
	"has_experience": "experience",
	"has_education":  "education",
	"has_skills":     "skills",
}
