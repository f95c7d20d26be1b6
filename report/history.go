package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hannes/pagepack/store"
)

// History prints one line per recorded build, newest first as given
func History(w io.Writer, records []store.Record, colors bool) error {
	if len(records) == 0 {
		_, err := io.WriteString(w, "No builds recorded\n")
		return err
	}

	s := newStyles(colors)
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s  %s  %s  %s  %s\n",
		s.header.Render(pad("Started", 19)),
		s.header.Render(pad("Status", 7)),
		s.header.Render(pad("Mode", 11)),
		s.header.Render(padLeft("Duration", 8)),
		s.header.Render(padLeft("Size", 10)),
		s.header.Render("Build"))

	for _, rec := range records {
		var size int64
		for _, a := range rec.Assets {
			size += a.Size
		}

		status := s.success.Render(pad(rec.Status, 7))
		if rec.Status != store.StatusSuccess {
			status = s.err.Render(pad(rec.Status, 7))
		}

		fmt.Fprintf(&b, "%s  %s  %s  %s  %s  %s\n",
			pad(rec.StartedAt.Local().Format(time.DateTime), 19),
			status,
			s.kind.Render(pad(rec.Mode, 11)),
			padLeft(rec.Duration.Round(time.Millisecond).String(), 8),
			s.size.Render(padLeft(HumanSize(size), 10)),
			rec.ID)
		if rec.FirstError != "" {
			fmt.Fprintf(&b, "    %s %s\n", s.err.Render("ERROR"), rec.FirstError)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
