package site

// Stage identifies one unit of work within a run.
type Stage string

const (
	StageHeader Stage = "header"
	StageFooter Stage = "footer"
	StagePage   Stage = "page"
)

// Request is a (stage, spec, page) tuple created per stage by the orchestrator.
type Request struct {
	Stage Stage
	Spec  WebsiteSpec
	Page  string
}

// Label is the human readable name used in progress messages and logs.
func (r Request) Label() string {
	if r.Stage == StagePage {
		return "page " + r.Page
	}
	return string(r.Stage)
}

// Section is one block of a generated page.
type Section struct {
	Reference      string `json:"reference"`
	Markup         string `json:"markup"`
	Stylesheet     string `json:"stylesheet"`
	ImageCandidate bool   `json:"image_candidate,omitempty"`
	ImageQuery     string `json:"image_query,omitempty"`
}

// Artifact is the validated result of one stage. Header and footer artifacts
// carry Markup/Stylesheet; page artifacts carry Sections.
type Artifact struct {
	Stage      Stage     `json:"stage"`
	Page       string    `json:"page,omitempty"`
	Markup     string    `json:"markup,omitempty"`
	Stylesheet string    `json:"stylesheet,omitempty"`
	Sections   []Section `json:"sections,omitempty"`
	Fallback   bool      `json:"fallback,omitempty"`
}
