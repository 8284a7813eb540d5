// Command analyze runs a single decision analysis from the terminal: it
// reads a decision spec from a JSON file, optionally attaches local files
// to options, invokes the configured provider, and prints the normalized
// result as JSON.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"decision-matrix/backend/internal/ai"
	"decision-matrix/backend/internal/config"
)

func main() {
	var (
		specPath   = flag.String("spec", "", "Path to decision spec JSON file")
		outputPath = flag.String("output", "", "Optional path to write the result JSON")
		timeout    = flag.Duration("timeout", 0, "Override request timeout (e.g. 90s)")
		attachArgs multiFlag
	)
	flag.Var(&attachArgs, "attach", "Attachment as optionID=path (repeatable)")
	flag.Parse()

	if strings.TrimSpace(*specPath) == "" {
		logrus.Fatal("-spec is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load configuration: %v", err)
	}
	if *timeout > 0 {
		cfg.RequestTimeoutDuration = *timeout
	}

	spec, err := readSpec(*specPath)
	if err != nil {
		logrus.Fatalf("read spec: %v", err)
	}
	if err := attachFiles(spec, attachArgs); err != nil {
		logrus.Fatalf("attach files: %v", err)
	}

	analyzer, providerName := buildAnalyzer(cfg)
	if analyzer == nil {
		logrus.Fatal("no analysis provider configured; set GEMINI_API_KEY or OPENAI_API_KEY")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeoutDuration)
	defer cancel()

	start := time.Now()
	logrus.WithFields(logrus.Fields{
		"provider": providerName,
		"criteria": len(spec.Criteria),
		"options":  len(spec.Options),
	}).Info("running analysis")

	result, err := analyzer.Analyze(ctx, *spec)
	if err != nil {
		logrus.Fatalf("analysis failed: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"winner":   result.WinnerID,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("analysis complete")

	if err := writeResult(*outputPath, result); err != nil {
		logrus.Fatalf("write result: %v", err)
	}
}

func readSpec(path string) (*ai.DecisionSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var spec ai.DecisionSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if strings.TrimSpace(spec.Title) == "" {
		return nil, errors.New("spec title is required")
	}
	if len(spec.Criteria) == 0 || len(spec.Options) == 0 {
		return nil, errors.New("spec needs at least one criterion and one option")
	}
	return &spec, nil
}

// attachFiles reads each optionID=path argument and appends the file as a
// base64 attachment on the named option.
func attachFiles(spec *ai.DecisionSpec, args []string) error {
	for _, arg := range args {
		optionID, path, ok := strings.Cut(arg, "=")
		optionID = strings.TrimSpace(optionID)
		path = strings.TrimSpace(path)
		if !ok || optionID == "" || path == "" {
			return fmt.Errorf("invalid -attach value %q, expected optionID=path", arg)
		}

		idx := -1
		for i := range spec.Options {
			if spec.Options[i].ID == optionID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("option %q not found in spec", optionID)
		}

		payload, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		spec.Options[idx].Attachments = append(spec.Options[idx].Attachments, ai.Attachment{
			ID:       uuid.NewString(),
			Name:     filepath.Base(path),
			MIMEType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(payload),
		})
		logrus.WithFields(logrus.Fields{
			"option": optionID,
			"file":   path,
			"size":   len(payload),
		}).Info("attachment added")
	}
	return nil
}

func writeResult(path string, result ai.AnalysisResult) error {
	if strings.TrimSpace(path) == "" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// buildAnalyzer mirrors the server's provider chain assembly.
func buildAnalyzer(cfg *config.Config) (ai.Analyzer, string) {
	if cfg.DisableAI {
		return nil, ""
	}

	var primary, fallback ai.Analyzer
	providerName := ""

	if client, err := ai.NewGeminiClient(providerConfig(cfg.Gemini, cfg)); err == nil {
		primary = client
		providerName = "gemini"
	} else if !errors.Is(err, ai.ErrDisabled) {
		logrus.Fatalf("gemini client: %v", err)
	}

	if client, err := ai.NewOpenAIClient(providerConfig(cfg.OpenAI, cfg)); err == nil {
		fallback = client
		if providerName == "" {
			providerName = "openai"
		}
	} else if !errors.Is(err, ai.ErrDisabled) {
		logrus.Fatalf("openai client: %v", err)
	}

	switch {
	case primary != nil && fallback != nil:
		return ai.WithFallback(primary, fallback), providerName
	case primary != nil:
		return primary, providerName
	case fallback != nil:
		return fallback, providerName
	default:
		return nil, ""
	}
}

func providerConfig(p config.Provider, cfg *config.Config) ai.Config {
	return ai.Config{
		APIKey:      p.APIKey,
		Model:       p.Model,
		BaseURL:     p.BaseURL,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Timeout:     cfg.RequestTimeoutDuration,
	}
}

type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}
