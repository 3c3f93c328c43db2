package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/edmo-mood/face"
	"github.com/maastricht-university/edmo-mood/voice"
)

func newClassifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a single voice vector or face measurement and record it",
	}
	cmd.AddCommand(newClassifyVoiceCmd(a), newClassifyFaceCmd(a))
	return cmd
}

func newClassifyVoiceCmd(a *app) *cobra.Command {
	var (
		session                string
		pitch, volume, rate    float64
		pitchVar, volumeConsis float64
	)
	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Classify a normalized voice feature vector",
		Example: "  edmo-mood classify voice --session room-1 --pitch 0.8 --volume 0.85 --rate 0.85\n" +
			"  edmo-mood classify voice --pitch 0.5 --volume 0.45 --rate 0.45 --volume-consistency 0.7",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := voice.Input{Pitch: pitch, Volume: volume, SpeechRate: rate}
			if cmd.Flags().Changed("pitch-variability") {
				in.PitchVariability = &pitchVar
			}
			if cmd.Flags().Changed("volume-consistency") {
				in.VolumeConsistency = &volumeConsis
			}

			p, st, err := a.pipeline()
			if err != nil {
				return err
			}
			defer st.Close()
			out, err := p.ClassifyVoice(cmd.Context(), session, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	f := cmd.Flags()
	f.StringVar(&session, "session", "", "session id (generated when empty)")
	f.Float64Var(&pitch, "pitch", 0, "normalized pitch [0,1]")
	f.Float64Var(&volume, "volume", 0, "normalized volume [0,1]")
	f.Float64Var(&rate, "rate", 0, "normalized speech rate [0,1]")
	f.Float64Var(&pitchVar, "pitch-variability", 0, "pitch variability [0,1]; sampled when omitted")
	f.Float64Var(&volumeConsis, "volume-consistency", 0, "volume consistency [0,1]; sampled when omitted")
	return cmd
}

func newClassifyFaceCmd(a *app) *cobra.Command {
	var (
		session string
		stats   []string
		image   string
	)
	cmd := &cobra.Command{
		Use:   "face",
		Short: "Classify face statistics or a camera frame",
		Long: "Each --stats value is one face as avg_intensity,std_intensity,symmetry,edge_density.\n" +
			"Without --stats and --image the frame counts as having no face.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if image != "" && len(stats) > 0 {
				return errors.New("--stats and --image are mutually exclusive")
			}
			faces := make([]face.Stats, 0, len(stats))
			for _, s := range stats {
				fs, err := parseStats(s)
				if err != nil {
					return err
				}
				faces = append(faces, fs)
			}

			p, st, err := a.pipeline()
			if err != nil {
				return err
			}
			defer st.Close()

			if image == "" {
				out, err := p.ClassifyFace(cmd.Context(), session, faces)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			}
			raw, err := os.ReadFile(image)
			if err != nil {
				return err
			}
			img, _, err := face.DecodeFrame(raw)
			if err != nil {
				return err
			}
			out, err := p.ClassifyFrame(cmd.Context(), session, img)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	f := cmd.Flags()
	f.StringVar(&session, "session", "", "session id (generated when empty)")
	f.StringArrayVar(&stats, "stats", nil, "face statistics avg,std,symmetry,edge (repeatable)")
	f.StringVar(&image, "image", "", "camera frame (png, jpeg, gif or webp)")
	return cmd
}

func parseStats(s string) (face.Stats, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return face.Stats{}, fmt.Errorf("stats %q: want 4 comma separated values", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return face.Stats{}, fmt.Errorf("stats %q: %w", s, err)
		}
		v[i] = f
	}
	return face.Stats{AvgIntensity: v[0], StdIntensity: v[1], Symmetry: v[2], EdgeDensity: v[3]}, nil
}
