package logic

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-yaml"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/idelchi/modelseal/internal/config"
	"github.com/idelchi/modelseal/internal/container"
	"github.com/idelchi/modelseal/internal/errkind"
)

// Report describes one inspected file.
type Report struct {
	Path       string              `yaml:"path"`
	Size       int64               `yaml:"-"`
	Recognized bool                `yaml:"recognized"`
	Reason     string              `yaml:"reason,omitempty"`
	Layout     string              `yaml:"layout,omitempty"`
	Framed     bool                `yaml:"framed-trailer,omitempty"`
	Ciphertext string              `yaml:"ciphertext,omitempty"`
	Metadata   *container.Metadata `yaml:"metadata,omitempty"`
	Header     map[string]any      `yaml:"header-metadata,omitempty"`
}

// Inspect reads the container layout and metadata of path without decrypting it.
// Files that are not containers yield a report with Recognized unset and no error;
// a file shaped like a structural header but lacking a trailer carries the reason.
func Inspect(path string) (Report, error) {
	report := Report{Path: path}

	file, err := os.Open(path)
	if err != nil {
		return report, fmt.Errorf("opening %q: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return report, fmt.Errorf("stat %q: %w", path, err)
	}

	report.Size = info.Size()

	layout, _, err := container.Detect(file, info.Size())
	if err != nil {
		return report, fmt.Errorf("reading %q: %w", path, err)
	}

	if layout == container.LayoutUnknown {
		return report, nil
	}

	index, err := container.Open(file, info.Size())

	switch {
	case errors.Is(err, errkind.ErrFormat):
		report.Reason = err.Error()

		return report, nil
	case err != nil:
		return report, err
	}

	meta := index.Metadata

	report.Recognized = true
	report.Layout = index.Layout.String()
	report.Framed = index.Framed
	report.Ciphertext = humanize.IBytes(uint64(max(0, index.BodySize))) //nolint:gosec // clamped
	report.Metadata = &meta

	if index.Header != nil {
		report.Header = container.ReadHeaderMetadata(index.Header)
	}

	return report, nil
}

// RunInspect inspects every file in cfg.Args, cfg.Parallel at a time.
// Reports are printed as YAML documents in argument order.
//
//nolint:cyclop // parallel processing pipeline with printer goroutine
func RunInspect(cfg *config.Config, logger *logrus.Logger, out io.Writer) error {
	if len(cfg.Args) == 0 {
		return errors.New("inspect requires at least one file")
	}

	start := time.Now()

	type result struct {
		order  int
		report Report
		err    error
	}

	results := make(chan result, len(cfg.Args))

	group := errgroup.Group{}
	group.SetLimit(cfg.Parallel)

	printed := make(chan struct{})

	var (
		collected  []result
		recognized int
		errored    int
		totalSize  int64
	)

	go func() {
		defer close(printed)

		for res := range results {
			collected = append(collected, res)

			switch {
			case res.err != nil:
				errored++

				logger.WithError(res.err).WithField("file", res.report.Path).Error("inspecting file")
			case res.report.Recognized:
				recognized++
				totalSize += res.report.Size
			}
		}
	}()

	for i, file := range cfg.Args {
		group.Go(func() error {
			report, err := Inspect(file)
			results <- result{order: i, report: report, err: err}

			return err
		})
	}

	err := group.Wait()

	close(results)

	<-printed

	sort.Slice(collected, func(i, j int) bool { return collected[i].order < collected[j].order })

	for _, res := range collected {
		if res.err != nil {
			fmt.Fprintf(out, "# %s: %v\n", res.report.Path, res.err)

			continue
		}

		doc, marshalErr := yaml.Marshal(res.report)
		if marshalErr != nil {
			return fmt.Errorf("rendering report: %w", marshalErr)
		}

		fmt.Fprintf(out, "---\n%s", doc)
	}

	logger.WithFields(logrus.Fields{
		"files":      len(cfg.Args),
		"containers": recognized,
		"errors":     errored,
		"size":       humanize.IBytes(uint64(max(0, totalSize))), //nolint:gosec // clamped
		"duration":   time.Since(start).Round(time.Millisecond),
	}).Info("inspection finished")

	if err != nil {
		return fmt.Errorf("inspecting files: %w", err)
	}

	return nil
}
