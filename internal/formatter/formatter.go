// package formatter renders shows and episodes as plain text, Markdown, CSV and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/shared"
)

// Supported output formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

// Formats lists every supported output format.
var Formats = []string{FormatText, FormatMarkdown, FormatCSV, FormatJSON}

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidArgument, name, strings.Join(Formats, ", "))
	}
}

// FormatMinutes renders a minute count as "42m" or "1h 05m".
func FormatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

// ProgressBar renders pct as a fixed-width bar such as "[#####-----]".
func ProgressBar(pct, width int) string {
	if width <= 0 {
		return ""
	}
	pct = max(0, min(pct, 100))
	filled := pct * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// ShowsToCSV converts saved shows to CSV with columns: ID, Name, Publisher, Episodes, Added
func ShowsToCSV(shows []models.SavedShow) ([]byte, error) {
	records := make([][]string, 0, len(shows))
	for _, s := range shows {
		records = append(records, []string{
			s.Show.ID,
			s.Show.Name,
			s.Show.Publisher,
			strconv.Itoa(s.Show.TotalEpisodes),
			s.AddedAt,
		})
	}
	return writeCSV([]string{"ID", "Name", "Publisher", "Episodes", "Added"}, records)
}

// EpisodesToCSV converts enriched episodes to CSV with columns: ID, Name, Released, Duration, Listened, Completed, Fully Played
func EpisodesToCSV(episodes []models.EnrichedEpisode) ([]byte, error) {
	records := make([][]string, 0, len(episodes))
	for _, e := range episodes {
		records = append(records, []string{
			e.ID,
			e.Name,
			e.ReleaseDate,
			strconv.Itoa(e.DurationMinutes),
			strconv.Itoa(e.ResumeMinutes),
			strconv.Itoa(e.PctCompleted),
			strconv.FormatBool(e.ResumePoint.FullyPlayed),
		})
	}
	return writeCSV([]string{"ID", "Name", "Released", "Duration", "Listened", "Completed", "Fully Played"}, records)
}

func writeCSV(headers []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	if err := writer.WriteAll(records); err != nil {
		return nil, fmt.Errorf("failed to write CSV records: %w", err)
	}
	return buf.Bytes(), nil
}

// ShowsToMarkdown converts saved shows to a Markdown list.
func ShowsToMarkdown(shows []models.SavedShow) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Saved Shows\n\n")
	fmt.Fprintf(&buf, "**Shows**: %d\n\n", len(shows))

	for i, s := range shows {
		fmt.Fprintf(&buf, "%d. **%s** by %s (%d episodes)\n", i+1, s.Show.Name, s.Show.Publisher, s.Show.TotalEpisodes)
	}

	return buf.Bytes(), nil
}

// EpisodesToMarkdown converts a show's enriched episodes to Markdown with an optional cover image
func EpisodesToMarkdown(show models.Show, episodes []models.EnrichedEpisode, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", show.Name)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}
	if show.Publisher != "" {
		fmt.Fprintf(&buf, "**Publisher**: %s\n", show.Publisher)
	}
	fmt.Fprintf(&buf, "**Episodes**: %d\n\n", len(episodes))

	buf.WriteString("## Episodes\n\n")
	buf.WriteString("| # | Episode | Released | Duration | Listened | Completed |\n")
	buf.WriteString("|---|---|---|---|---|---|\n")
	for i, e := range episodes {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s | %d%% |\n",
			i+1,
			strings.ReplaceAll(e.Name, "|", `\|`),
			e.ReleaseDate,
			FormatMinutes(e.DurationMinutes),
			FormatMinutes(e.ResumeMinutes),
			e.PctCompleted,
		)
	}

	return buf.Bytes(), nil
}

// ShowsToText converts saved shows to plain text.
func ShowsToText(shows []models.SavedShow) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Saved shows: %d\n\n", len(shows))
	for i, s := range shows {
		fmt.Fprintf(&buf, "%d. %s - %s [%s]\n", i+1, s.Show.Name, s.Show.Publisher, s.Show.ID)
	}

	return buf.Bytes(), nil
}

// EpisodesToText converts a show's enriched episodes to plain text with a progress bar per episode
func EpisodesToText(show models.Show, episodes []models.EnrichedEpisode) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Show: %s\n", show.Name)
	if show.Publisher != "" {
		fmt.Fprintf(&buf, "Publisher: %s\n", show.Publisher)
	}
	fmt.Fprintf(&buf, "Episodes: %d\n\n", len(episodes))

	for i, e := range episodes {
		fmt.Fprintf(&buf, "%d. %s\n   %s %3d%%  %s of %s\n",
			i+1, e.Name,
			ProgressBar(e.PctCompleted, 20), e.PctCompleted,
			FormatMinutes(e.ResumeMinutes), FormatMinutes(e.DurationMinutes),
		)
	}

	return buf.Bytes(), nil
}

// RenderShows writes shows to w in the given format.
func RenderShows(w io.Writer, format string, shows []models.SavedShow) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatMarkdown:
		data, err = ShowsToMarkdown(shows)
	case FormatCSV:
		data, err = ShowsToCSV(shows)
	case FormatJSON:
		data, err = shared.MarshalJSON(shows, true)
	default:
		data, err = ShowsToText(shows)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// RenderEpisodes writes a show's enriched episodes to w in the given format.
func RenderEpisodes(w io.Writer, format string, show models.Show, episodes []models.EnrichedEpisode) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatMarkdown:
		data, err = EpisodesToMarkdown(show, episodes, "")
	case FormatCSV:
		data, err = EpisodesToCSV(episodes)
	case FormatJSON:
		data, err = shared.MarshalJSON(ShowExport{Show: show, Episodes: episodes}, true)
	default:
		data, err = EpisodesToText(show, episodes)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ShowExport is the JSON document written for one show.
type ShowExport struct {
	Show     models.Show              `json:"show"`
	Episodes []models.EnrichedEpisode `json:"episodes"`
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// WriteShowExport writes one show's episodes under dir in the given format and returns the created files.
//
// Markdown exports get their own directory {dir}/{show id}/README.md, with the cover image when downloadCover is set.
// The other formats write {dir}/{show id}.{ext}.
func WriteShowExport(export ShowExport, format, dir string, downloadCover bool) ([]string, error) {
	base := filepath.Join(dir, export.Show.ID)

	switch format {
	case FormatMarkdown:
		return writeMarkdownExport(export, base, downloadCover)
	case FormatCSV:
		data, err := EpisodesToCSV(export.Episodes)
		if err != nil {
			return nil, err
		}
		return writeFile(base+".csv", data)
	case FormatText:
		data, err := EpisodesToText(export.Show, export.Episodes)
		if err != nil {
			return nil, err
		}
		return writeFile(base+".txt", data)
	default:
		data, err := shared.MarshalJSON(export, true)
		if err != nil {
			return nil, fmt.Errorf("JSON marshal failed: %w", err)
		}
		return writeFile(base+".json", data)
	}
}

func writeFile(path string, data []byte) ([]string, error) {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return []string{path}, nil
}

func writeMarkdownExport(export ShowExport, dir string, downloadCover bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	var files []string
	var cover string
	if url := models.ImageURL(export.Show.Images); downloadCover && url != "" {
		if data, err := DownloadImage(url); err == nil {
			path := filepath.Join(dir, "cover.jpg")
			if err := os.WriteFile(path, data, 0644); err == nil {
				cover = "cover.jpg"
				files = append(files, path)
			}
		}
	}

	data, err := EpisodesToMarkdown(export.Show, export.Episodes, cover)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	readme, err := writeFile(filepath.Join(dir, "README.md"), data)
	if err != nil {
		return nil, err
	}
	return append(files, readme...), nil
}
