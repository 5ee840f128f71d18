package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/biodoia/gocareerflow/internal/gateway"
	"github.com/biodoia/gocareerflow/internal/providers"
)

// ErrNoProviderAvailable indica che il gateway ha restituito la risposta di fallback
var ErrNoProviderAvailable = errors.New("no provider produced a response")

// promptTemplates contiene i template dei prompt per stage
var promptTemplates = map[Stage]*template.Template{
	StageResumeParsing: template.Must(template.New("resume_parsing").Parse(
		`Extract the candidate profile from the following resume.
Return the relevant skills, roles and experience in a concise structured summary.

Resume:
{{.Input.ResumeText}}`)),

	StageJobMatching: template.Must(template.New("job_matching").Parse(
		`Evaluate how well the candidate profile below matches the job description.
Give an overall match assessment with strengths and gaps.

Candidate profile:
{{.ParsedData}}

Job description:
{{.Input.JobDescription}}`)),

	StageSkillAnalysis: template.Must(template.New("skill_analysis").Parse(
		`Analyze the candidate profile below against the job description and
recommend the skills the candidate should develop or highlight.

Candidate profile:
{{.ParsedData}}

Job description:
{{.Input.JobDescription}}`)),

	StageResultSynthesis: template.Must(template.New("result_synthesis").Parse(
		`Combine the following analyses into a single coherent report for the candidate.

Match analysis:
{{.OverallMatch}}

Skill recommendations:
{{.SkillRecommendations}}`)),
}

// promptData è il contesto passato ai template dei prompt
type promptData struct {
	Input                *Input
	ParsedData           string
	OverallMatch         string
	SkillRecommendations string
}

// outputField è il campo principale dell'output per stage
var outputField = map[Stage]string{
	StageResumeParsing:   "parsed_data",
	StageJobMatching:     "overall_match",
	StageSkillAnalysis:   "skill_recommendations",
	StageResultSynthesis: "summary",
}

// GatewayAgent è un runner che esegue uno stage tramite il provider gateway
type GatewayAgent struct {
	stage    Stage
	name     string
	gw       *gateway.Gateway
	settings providers.Settings
}

// NewGatewayAgent crea un runner gateway-backed per uno stage
func NewGatewayAgent(stage Stage, name string, gw *gateway.Gateway, settings providers.Settings) *GatewayAgent {
	return &GatewayAgent{
		stage:    stage,
		name:     name,
		gw:       gw,
		settings: settings,
	}
}

// Agent restituisce il nome dell'agent
func (a *GatewayAgent) Agent() string {
	return a.name
}

// Run costruisce il prompt dello stage, lo invia tramite il gateway e
// impacchetta il testo nel campo di output atteso dallo stage
func (a *GatewayAgent) Run(ctx context.Context, input *Input, prior map[Stage]*StageResult) (map[string]interface{}, float64, error) {
	prompt, err := buildPrompt(a.stage, input, prior)
	if err != nil {
		return nil, 0, err
	}

	resp := a.gw.Dispatch(ctx, &gateway.Request{
		Prompt:   prompt,
		Agent:    a.name,
		Settings: a.settings,
	})

	if resp.Fallback {
		return nil, 0, ErrNoProviderAvailable
	}

	field := outputField[a.stage]
	if field == "" {
		field = "result"
	}

	output := map[string]interface{}{
		field: resp.Text,
	}

	// Confidence del provider (0-1) riportata in scala 0-100
	return output, resp.Confidence * 100, nil
}

// buildPrompt esegue il template del prompt per uno stage
func buildPrompt(stage Stage, input *Input, prior map[Stage]*StageResult) (string, error) {
	tmpl, ok := promptTemplates[stage]
	if !ok {
		return "", fmt.Errorf("no prompt template for stage %s", stage)
	}

	data := promptData{
		Input:                input,
		ParsedData:           priorField(prior, StageResumeParsing, "parsed_data"),
		OverallMatch:         priorField(prior, StageJobMatching, "overall_match"),
		SkillRecommendations: priorField(prior, StageSkillAnalysis, "skill_recommendations"),
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to build prompt for %s: %w", stage, err)
	}

	return sb.String(), nil
}

// priorField estrae un campo testuale dall'output di uno stage precedente
func priorField(prior map[Stage]*StageResult, stage Stage, field string) string {
	result, ok := prior[stage]
	if !ok || result.Output == nil {
		return ""
	}

	if value, ok := result.Output[field].(string); ok {
		return value
	}
	return ""
}
