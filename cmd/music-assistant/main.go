package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/FunctionalFactory/music-assistant-v2/internal/analyzer"
	"github.com/FunctionalFactory/music-assistant-v2/internal/config"
	"github.com/FunctionalFactory/music-assistant-v2/internal/server"
	"github.com/FunctionalFactory/music-assistant-v2/internal/store"
	"github.com/FunctionalFactory/music-assistant-v2/internal/wav"
)

var (
	version = "2.0.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "music-assistant",
	Short: "Transcribe monophonic audio into sheet music",
	Long: `Music Assistant turns a recorded melody into note events and a
MusicXML score.

Pipeline: audio → pitch/onset analysis → tempo estimation → note
segmentation → duration quantization → MusicXML`,
	Version: version,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Transcribe a WAV file and write the result to disk",
	Long: `Analyze a mono or stereo WAV file, print the transcribed notes and
write result.json plus a MusicXML score next to the input.

Examples:
  music-assistant analyze --input melody.wav
  music-assistant analyze -i take3.wav --delta 0.2 --wait 0.05 --bpm 96`,
	RunE: runAnalyze,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analysis API",
	Long: `Start the JSON API for uploading audio files and retrieving
transcription results by task ID.

Example:
  music-assistant serve --port 8080`,
	RunE: runServe,
}

var (
	flagInput  string
	flagOutDir string
	flagDelta  float64
	flagWait   float64
	flagBPM    float64
	flagPort   int
	flagConfig string
)

func init() {
	analyzeCmd.Flags().StringVarP(&flagInput, "input", "i", "", "input WAV file (required)")
	analyzeCmd.Flags().StringVarP(&flagOutDir, "output-dir", "o", "", "output directory (default: input's directory)")
	analyzeCmd.Flags().Float64Var(&flagDelta, "delta", 0.14, "onset peak prominence in [0.01, 1.0]")
	analyzeCmd.Flags().Float64Var(&flagWait, "wait", 0.03, "minimum seconds between onsets in [0.01, 0.5]")
	analyzeCmd.Flags().Float64Var(&flagBPM, "bpm", 0, "pin the tempo instead of estimating it")
	_ = analyzeCmd.MarkFlagRequired("input")

	serveCmd.Flags().IntVar(&flagPort, "port", 0, "listen port (overrides config)")
	serveCmd.Flags().StringVar(&flagConfig, "config", defaultConfigPath(), "config file path")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	f, err := os.Open(flagInput)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	buf, err := wav.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", flagInput, err)
	}

	params := analyzer.DefaultParams()
	params.Delta = flagDelta
	params.Wait = flagWait
	params.BPM = flagBPM
	params.Title = strings.TrimSuffix(filepath.Base(flagInput), filepath.Ext(flagInput))

	start := time.Now()
	result, err := analyzer.Analyze(context.Background(), buf, params)
	if err != nil {
		return err
	}

	outDir := flagOutDir
	if outDir == "" {
		outDir = filepath.Dir(flagInput)
	}
	base := filepath.Join(outDir, params.Title)

	if err := writeResult(base, result); err != nil {
		return err
	}

	printNotes(result)
	fmt.Printf("\n%d notes, %.0f BPM, analyzed in %s\n",
		len(result.Notes), result.Rhythm.BPM, time.Since(start).Round(time.Millisecond))
	fmt.Printf("wrote %s.json and %s.musicxml\n", base, base)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagPort > 0 {
		cfg.Server.Port = flagPort
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := server.New(cfg, st)
	if err != nil {
		return err
	}
	return srv.Run()
}

func printNotes(result *analyzer.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Start (s)", "Pitch", "Duration"})
	for i, n := range result.Notes {
		pitchName := n.PitchName
		if n.Rest {
			pitchName = "(rest)"
		}
		t.AppendRow(table.Row{i + 1, fmt.Sprintf("%.3f", n.StartTime), pitchName, n.DurationClass})
	}
	t.Render()
}

func writeResult(base string, result *analyzer.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(base+".json", data, 0o644); err != nil {
		return fmt.Errorf("write result json: %w", err)
	}
	if err := os.WriteFile(base+".musicxml", []byte(result.MusicXML), 0o644); err != nil {
		return fmt.Errorf("write musicxml: %w", err)
	}
	return nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "music-assistant.toml"
	}
	return filepath.Join(home, ".config", "music-assistant", "config.toml")
}
