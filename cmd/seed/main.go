// Command seed imports story packs (YAML files) into the database.
//
// Usage:
//
//	seed -config config.yaml stories/*.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/tomrodww/ai-guessing-game/internal/app"
	"github.com/tomrodww/ai-guessing-game/internal/config"
	"github.com/tomrodww/ai-guessing-game/internal/util"
	"github.com/tomrodww/ai-guessing-game/pkg/domain"
	"github.com/tomrodww/ai-guessing-game/pkg/oracle"
	"github.com/tomrodww/ai-guessing-game/pkg/store"
)

const importConcurrency = 4

type storyFile struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Context  string `yaml:"context"`
	Solution string `yaml:"solution"`
	Active   *bool  `yaml:"active"`
	Phrases  []struct {
		Order int    `yaml:"order"`
		Text  string `yaml:"text"`
	} `yaml:"phrases"`
	Hints []string `yaml:"hints"`
}

func main() {
	configPath := flag.String("config", config.ConfigPath, "path to config.yaml")
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: seed [-config config.yaml] <story.yaml> [...]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}
	util.InitLogger(cfg.LogLevel)

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to init store", "err", err)
		os.Exit(1)
	}
	// Validation lives in the app core; the seeder goes through it rather
	// than writing rows directly.
	appCore, err := app.New(app.Config{Store: dataStore, Oracle: noOracle{}})
	if err != nil {
		slog.Error("failed to init app", "err", err)
		os.Exit(1)
	}

	var g errgroup.Group
	g.SetLimit(importConcurrency)
	for _, path := range flag.Args() {
		g.Go(func() error {
			story, err := loadStoryFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			created, err := appCore.CreateStory(story)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			slog.Info("story imported", "path", path, "id", created.ID, "title", created.Title, "phrases", len(created.Phrases))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("seeding failed", "err", err)
		os.Exit(1)
	}
}

func loadStoryFile(path string) (domain.Story, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Story{}, err
	}
	var file storyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return domain.Story{}, fmt.Errorf("parse story file: %w", err)
	}
	story := domain.Story{
		ID:       file.ID,
		Title:    file.Title,
		Context:  file.Context,
		Solution: file.Solution,
		Hints:    file.Hints,
		Active:   true,
	}
	if file.Active != nil {
		story.Active = *file.Active
	}
	for _, p := range file.Phrases {
		story.Phrases = append(story.Phrases, domain.Phrase{Order: p.Order, Text: p.Text})
	}
	return story, nil
}

// noOracle satisfies the app's oracle dependency; seeding never evaluates
// questions.
type noOracle struct{}

func (noOracle) Evaluate(_ context.Context, _, _ string, _ []domain.Phrase) oracle.RawVerdict {
	return oracle.RawVerdict{Status: oracle.StatusUnavailable}
}
