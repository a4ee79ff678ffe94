package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kailas-cloud/sieve/internal/domain/search/hit"
	"github.com/kailas-cloud/sieve/internal/domain/search/stats"
)

const defaultRankMass = 0.8

var (
	rankHits     string
	rankMass     float64
	rankFloor    float64
	rankMinHits  int
	rankMinPages int
	rankJSON     bool
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Compute document statistics and the rank-mass selection of a hit file",
	Long: `Read a JSON array of hits (document_name, page_number, text_number,
score), compute per-document statistics and print the documents that hold
the requested share of relevance mass.

Examples:
  sievectl rank --hits hits.json --mass 0.8
  curl -s .../responses/ID | jq .hits | sievectl rank --hits - --json`,
	Args: cobra.NoArgs,
	RunE: runRank,
}

func init() {
	rankCmd.Flags().StringVar(&rankHits, "hits", "", `hit file ("-" reads stdin)`)
	rankCmd.Flags().Float64Var(&rankMass, "mass", defaultRankMass, "share of relevance mass, (0, 1] or a percentage (1, 100]")
	rankCmd.Flags().Float64Var(&rankFloor, "floor", stats.DefaultSmoothing, "lower bound of a document share")
	rankCmd.Flags().IntVar(&rankMinHits, "min-hits", 1, "display documents with at least this many hits")
	rankCmd.Flags().IntVar(&rankMinPages, "min-pages", 1, "display documents with at least this many pages")
	rankCmd.Flags().BoolVar(&rankJSON, "json", false, "output as JSON")
	_ = rankCmd.MarkFlagRequired("hits")
	rootCmd.AddCommand(rankCmd)
}

type rankOutput struct {
	Mass     float64     `json:"mass"`
	Selected []string    `json:"selected"`
	Stats    []stats.Row `json:"stats"`
}

func runRank(cmd *cobra.Command, _ []string) error {
	if !(rankMass > 0 && rankMass <= 100) {
		return fmt.Errorf("mass must be in (0, 100], got %v", rankMass)
	}
	if rankMinHits < 0 || rankMinPages < 0 {
		return errors.New("min-hits and min-pages must not be negative")
	}

	hits, err := readHits(cmd, rankHits)
	if err != nil {
		return err
	}
	full, err := stats.AggregateWithFloor(hits, rankFloor)
	if err != nil {
		return err
	}
	out := rankOutput{
		Mass:     rankMass,
		Selected: stats.Select(full, rankMass),
		Stats:    stats.FilterForDisplay(full, rankMinHits, rankMinPages).Rows(),
	}

	if rankJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal ranking: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	return outputRankTable(cmd, out)
}

func readHits(cmd *cobra.Command, path string) ([]hit.Hit, error) {
	var r io.Reader
	if path == "-" {
		if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return nil, errors.New("no hits piped on stdin")
		}
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open hits: %w", err)
		}
		defer f.Close()
		r = f
	}

	var hits []hit.Hit
	if err := json.NewDecoder(r).Decode(&hits); err != nil {
		return nil, fmt.Errorf("decode hits: %w", err)
	}
	for i, h := range hits {
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("hits[%d]: %w", i, err)
		}
	}
	return hits, nil
}

func outputRankTable(cmd *cobra.Command, out rankOutput) error {
	if len(out.Stats) == 0 {
		cmd.Println("No documents to display.")
	} else {
		selected := make(map[string]bool, len(out.Selected))
		for _, name := range out.Selected {
			selected[name] = true
		}

		re := lipgloss.NewRenderer(cmd.OutOrStdout())
		header := re.NewStyle().Bold(true).Padding(0, 1)
		cell := re.NewStyle().Padding(0, 1)
		marked := cell.Foreground(lipgloss.Color("10"))

		rows := make([][]string, len(out.Stats))
		for i, r := range out.Stats {
			mark := ""
			if selected[r.DocumentName] {
				mark = "*"
			}
			rows[i] = []string{
				r.DocumentName,
				strconv.Itoa(r.Hits),
				strconv.Itoa(r.PagesCount),
				strconv.FormatFloat(r.Score, 'f', 4, 64),
				strconv.FormatFloat(r.ScoreWeighted, 'f', 4, 64),
				strconv.FormatFloat(r.ScoreWeightedScaled, 'f', 4, 64),
				mark,
			}
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("DOCUMENT", "HITS", "PAGES", "SCORE", "WEIGHTED", "SHARE", "SELECTED").
			Rows(rows...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				switch {
				case row == table.HeaderRow:
					return header
				case row >= 0 && row < len(rows) && rows[row][6] != "":
					return marked
				default:
					return cell
				}
			})
		cmd.Println(t.Render())
	}

	cmd.Printf("Selected %d documents at mass %v: %s\n",
		len(out.Selected), out.Mass, strings.Join(out.Selected, ", "))
	return nil
}
