package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hrygo/habitsense/analytics"
	"github.com/hrygo/habitsense/internal/profile"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a snapshot file and print the JSON report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("file")
		rawNow, _ := cmd.Flags().GetString("now")
		window, _ := cmd.Flags().GetInt("trend-window")

		p := &profile.Profile{Timezone: viper.GetString("timezone")}
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return errors.Wrapf(err, "invalid timezone %s", p.Timezone)
		}

		snap, err := readSnapshotFile(path)
		if err != nil {
			return err
		}
		if err := resolveReferenceTime(&snap, rawNow, time.Now(), p.Location()); err != nil {
			return err
		}
		if window > 0 {
			snap.TrendWindowDays = window
		} else if viper.GetString("trend-baseline") == profile.TrendBaselineMeasured {
			snap.TrendWindowDays = 30
		}

		return runAnalyze(cmd.Context(), analytics.NewEngine(), snap, cmd.OutOrStdout())
	},
}

func init() {
	analyzeCmd.Flags().StringP("file", "f", "", "snapshot file (.yaml, .yml or .json)")
	analyzeCmd.Flags().String("now", "", "reference time in RFC3339, overrides the snapshot")
	analyzeCmd.Flags().Int("trend-window", 0, "measure the trend on trailing windows of this many days")
	_ = analyzeCmd.MarkFlagRequired("file")
}

// readSnapshotFile decodes a snapshot, choosing YAML or JSON by file extension.
func readSnapshotFile(path string) (analytics.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return analytics.Snapshot{}, errors.Wrap(err, "failed to open snapshot")
	}
	defer f.Close()
	return decodeSnapshot(f, filepath.Ext(path))
}

func decodeSnapshot(r io.Reader, ext string) (analytics.Snapshot, error) {
	var snap analytics.Snapshot
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
			return snap, errors.Wrap(err, "failed to decode yaml snapshot")
		}
	case ".json":
		if err := json.NewDecoder(r).Decode(&snap); err != nil {
			return snap, errors.Wrap(err, "failed to decode json snapshot")
		}
	default:
		return snap, errors.Errorf("unsupported snapshot format %q", ext)
	}
	return snap, nil
}

// resolveReferenceTime applies the --now override, falls back to fallback when the
// snapshot has no reference time, and moves the result into loc.
func resolveReferenceTime(snap *analytics.Snapshot, rawNow string, fallback time.Time, loc *time.Location) error {
	if rawNow != "" {
		t, err := time.Parse(time.RFC3339, rawNow)
		if err != nil {
			return errors.Wrap(err, "--now must be an RFC3339 timestamp")
		}
		snap.Now = t
	}
	if snap.Now.IsZero() {
		snap.Now = fallback
	}
	snap.Now = snap.Now.In(loc)
	return nil
}

func runAnalyze(ctx context.Context, engine *analytics.Engine, snap analytics.Snapshot, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	report, err := engine.Analyze(ctx, snap)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
