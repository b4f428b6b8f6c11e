package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/provider-directory/internal/model"
	"github.com/sells-group/provider-directory/internal/store"
)

var enqueueFile string

// seedRecord is one entry of the YAML seed file consumed by enqueue.
// HTML and text bodies can be inlined or referenced by path, with paths
// resolved relative to the seed file.
type seedRecord struct {
	SourceURL     string `yaml:"source_url"`
	SourceName    string `yaml:"source_name"`
	ScrapeGroupID string `yaml:"scrape_group_id"`
	RawHTML       string `yaml:"raw_html"`
	RawText       string `yaml:"raw_text"`
	HTMLPath      string `yaml:"html_path"`
	TextPath      string `yaml:"text_path"`
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue scraped pages for ingestion",
	Long:  "Reads a YAML seed file of scraped pages and creates pending records for the ingest workers.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(enqueueFile)
		if err != nil {
			return eris.Wrapf(err, "read seed file %s", enqueueFile)
		}
		seeds, err := parseSeeds(data)
		if err != nil {
			return err
		}

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		created, err := enqueueSeeds(ctx, store.NewPostgres(pool), seeds, filepath.Dir(enqueueFile))
		if err != nil {
			return err
		}
		zap.L().Info("records enqueued", zap.Int("created", created))
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueFile, "file", "", "YAML seed file of scraped pages")
	_ = enqueueCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(enqueueCmd)
}

func parseSeeds(data []byte) ([]seedRecord, error) {
	var seeds []seedRecord
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, eris.Wrap(err, "parse seed file")
	}
	for i, s := range seeds {
		if strings.TrimSpace(s.SourceURL) == "" {
			return nil, eris.Errorf("seed %d: source_url is required", i)
		}
	}
	return seeds, nil
}

type recordCreator interface {
	Create(ctx context.Context, r *model.ScrapedRecord) error
}

func enqueueSeeds(ctx context.Context, records recordCreator, seeds []seedRecord, baseDir string) (int, error) {
	created := 0
	for i, s := range seeds {
		html, err := seedBody(s.RawHTML, s.HTMLPath, baseDir)
		if err != nil {
			return created, eris.Wrapf(err, "seed %d", i)
		}
		text, err := seedBody(s.RawText, s.TextPath, baseDir)
		if err != nil {
			return created, eris.Wrapf(err, "seed %d", i)
		}

		rec := &model.ScrapedRecord{
			SourceURL:  s.SourceURL,
			SourceName: s.SourceName,
			RawHTML:    html,
			RawText:    text,
		}
		if s.ScrapeGroupID != "" {
			gid := s.ScrapeGroupID
			rec.ScrapeGroupID = &gid
		}

		if err := records.Create(ctx, rec); err != nil {
			return created, eris.Wrapf(err, "seed %d: create record", i)
		}
		created++
	}
	return created, nil
}

func seedBody(inline, path, baseDir string) (string, error) {
	if inline != "" || path == "" {
		return inline, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "read body file %s", path)
	}
	return string(data), nil
}
