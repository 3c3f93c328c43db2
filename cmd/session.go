package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/edmo-mood/emotion"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var session, audio, image string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one fused round from an audio clip and/or a camera frame",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, st, err := a.pipeline()
			if err != nil {
				return err
			}
			defer st.Close()
			out, err := p.Analyze(cmd.Context(), session, audio, image)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	f := cmd.Flags()
	f.StringVar(&session, "session", "", "session id (generated when empty)")
	f.StringVar(&audio, "audio", "", "audio clip sent to the voice feature service")
	f.StringVar(&image, "image", "", "camera frame (png, jpeg, gif or webp)")
	return cmd
}

func newFuseCmd(a *app) *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "fuse",
		Short: "Fuse the latest stored face and voice labels of a session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if session == "" {
				return errors.New("--session is required")
			}
			p, st, err := a.pipeline()
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := p.Fuse(cmd.Context(), session)
			if err != nil {
				return err
			}
			if res == nil {
				return fmt.Errorf("session %s has no face or voice estimate", session)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session id")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		session string
		hours   int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write timeline.json, summary.yaml and a confidence chart for a session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if session == "" {
				return errors.New("--session is required")
			}
			p, st, err := a.pipeline()
			if err != nil {
				return err
			}
			defer st.Close()

			var since time.Time
			if hours > 0 {
				since = time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
			}
			out, err := p.Export(cmd.Context(), session, since)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session id")
	cmd.Flags().IntVar(&hours, "hours", 0, "only records of the last n hours (0 exports everything)")
	return cmd
}

func newLabelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "List the emotion vocabulary by family",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FAMILY\tVALENCE\tLABEL\tBASIC")
			for _, f := range emotion.Families() {
				for _, l := range emotion.Members(f) {
					basic := ""
					if l.IsBasic() {
						basic = "yes"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f, f.Valence(), l, basic)
				}
			}
			return tw.Flush()
		},
	}
}
