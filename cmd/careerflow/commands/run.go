package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/biodoia/gocareerflow/internal/providers"
	"github.com/biodoia/gocareerflow/internal/stats"
	"github.com/biodoia/gocareerflow/internal/workflow"
	"github.com/biodoia/gocareerflow/pkg/database"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	resumePath  string
	jobPath     string
	inputPath   string
	runModel    string
	noPersist   bool
	prettyPrint bool
)

// RunCmd rappresenta il comando run
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a career analysis workflow",
	Long: `Run the full multi-stage career analysis workflow.

The workflow parses the resume, matches it against the job description,
analyzes skill gaps, synthesizes a report and applies a quality gate.
The result is printed as JSON.`,
	Example: `  # Run from separate text files
  careerflow run --resume resume.txt --job job.txt

  # Run from a single YAML input file
  careerflow run --input request.yaml

  # Run without persisting the result
  careerflow run --resume resume.txt --job job.txt --no-persist`,
	RunE: runWorkflow,
}

// workflowInput è il formato YAML del file di input
type workflowInput struct {
	ResumeText     string            `yaml:"resume_text"`
	JobDescription string            `yaml:"job_description"`
	Metadata       map[string]string `yaml:"metadata"`
}

func init() {
	RunCmd.Flags().StringVar(&resumePath, "resume", "", "Path to the resume text file")
	RunCmd.Flags().StringVar(&jobPath, "job", "", "Path to the job description text file")
	RunCmd.Flags().StringVar(&inputPath, "input", "", "Path to a YAML input file (alternative to --resume/--job)")
	RunCmd.Flags().StringVar(&runModel, "model", "", "Override the provider model for all stages")
	RunCmd.Flags().BoolVar(&noPersist, "no-persist", false, "Skip persisting the workflow run")
	RunCmd.Flags().BoolVar(&prettyPrint, "pretty", true, "Indent the JSON output")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	input, err := loadWorkflowInput()
	if err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("failed to build provider registry: %w", err)
	}

	if registry.Count() == 0 {
		log.Warn().Msg("No provider enabled, the workflow will run in degraded mode")
	}

	// Persistence is optional for one-shot runs
	var db *database.DB
	if !noPersist {
		db, err = database.New(&cfg.Database)
		if err != nil {
			log.Warn().Err(err).Msg("Persistence unavailable, continuing without it")
			db = nil
		} else {
			defer db.Close()
			if err := db.AutoMigrate(); err != nil {
				log.Warn().Err(err).Msg("Migration failed, continuing without persistence")
				db.Close()
				db = nil
			}
		}
	}

	collector := stats.NewCollector(db, 0)

	gw, err := buildGateway(cfg, registry, collector, nil)
	if err != nil {
		return err
	}

	// Model override applied to every stage; empty means per-provider default
	runners := buildRunners(gw, providers.Settings{Model: runModel})

	opts := []workflow.Option{}
	if db != nil {
		opts = append(opts, workflow.WithDB(db))
	}

	orchestrator := workflow.NewOrchestrator(workflowConfig(cfg), runners, opts...)

	result := orchestrator.RunWorkflow(context.Background(), input)

	if !prettyPrint {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	return printJSON(result)
}

// loadWorkflowInput costruisce l'input del workflow dai flag
func loadWorkflowInput() (*workflow.Input, error) {
	if inputPath != "" {
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}

		var parsed workflowInput
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse input file: %w", err)
		}

		if parsed.ResumeText == "" {
			return nil, fmt.Errorf("input file must set resume_text")
		}

		return &workflow.Input{
			ResumeText:     parsed.ResumeText,
			JobDescription: parsed.JobDescription,
			Metadata:       parsed.Metadata,
		}, nil
	}

	if resumePath == "" {
		return nil, fmt.Errorf("either --input or --resume is required")
	}

	resume, err := os.ReadFile(resumePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read resume file: %w", err)
	}

	job := ""
	if jobPath != "" {
		data, err := os.ReadFile(jobPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read job description file: %w", err)
		}
		job = string(data)
	}

	return &workflow.Input{
		ResumeText:     string(resume),
		JobDescription: job,
	}, nil
}
