package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/skinconsult/internal/domain"
	"github.com/ashureev/skinconsult/internal/store"
)

var exportHeader = []string{
	"session_id", "user_name", "started_at", "ended_at",
	"skin_type", "age", "main_issue", "advice_type", "additional_info",
	"skin_problems", "messages", "transcript",
}

func newExportCmd() *cobra.Command {
	var (
		dbPath string
		out    string
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write ended consultations as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := store.NewSQLite(dbPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = repo.Close() }()

			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			records, err := repo.ListEndedSessions(cmd.Context(), from)
			if err != nil {
				return err
			}

			snaps := make([]domain.Snapshot, 0, len(records))
			for _, rec := range records {
				msgs, err := repo.ListMessages(cmd.Context(), rec.SessionID)
				if err != nil {
					return err
				}
				snaps = append(snaps, domain.Snapshot{
					SessionID:  rec.SessionID,
					UserName:   rec.UserName,
					Answers:    rec.Answers,
					Transcript: msgs,
					StartedAt:  rec.CreatedAt,
					EndedAt:    *rec.EndedAt,
				})
			}
			if out == "" || out == "-" {
				return writeSnapshotsCSV(cmd.OutOrStdout(), snaps)
			}
			if err := exportFile(out, snaps); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d sessions to %s\n", len(snaps), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", defaultDBPath, "SQLite database path")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	cmd.Flags().DurationVar(&since, "since", 0, "only sessions ended within this duration")

	return cmd
}

// exportFile writes snaps to path and reports write and close errors.
func exportFile(path string, snaps []domain.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeSnapshotsCSV(f, snaps); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func writeSnapshotsCSV(w io.Writer, snaps []domain.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, s := range snaps {
		row := []string{
			s.SessionID,
			s.UserName,
			s.StartedAt.UTC().Format(time.RFC3339),
			s.EndedAt.UTC().Format(time.RFC3339),
			s.Answers.SkinType,
			s.Answers.Age,
			s.Answers.MainIssue,
			s.Answers.AdviceType,
			s.Answers.AdditionalInfo,
			strings.Join(s.Answers.SkinProblems, "; "),
			strconv.Itoa(len(s.Transcript)),
			flattenTranscript(s.Transcript),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func flattenTranscript(msgs []domain.StoredMessage) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
