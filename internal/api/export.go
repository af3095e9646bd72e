package api

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/talgya/classroom/internal/engine"
)

var snapshotHeader = []string{"time", "agent_id", "joy", "anxiety", "sadness", "anger", "stress", "energy", "risk"}

// WriteSnapshotsCSV writes every snapshot matching q to w, following the
// keyset cursor until a short page. q.Limit is the page size.
func WriteSnapshotsCSV(ctx context.Context, w io.Writer, log engine.SnapshotLog, q engine.SnapshotQuery) error {
	if q.Limit <= 0 {
		q.Limit = snapshotPages.Max
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(snapshotHeader); err != nil {
		return err
	}
	for {
		page, err := log.Snapshots(ctx, q)
		if err != nil {
			return fmt.Errorf("snapshots after %d: %w", q.After, err)
		}
		for _, sn := range page {
			if err := cw.Write(snapshotRecord(sn)); err != nil {
				return err
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
		if len(page) < q.Limit {
			return nil
		}
		q.After = page[len(page)-1].ID
	}
}

func snapshotRecord(sn engine.Snapshot) []string {
	return []string{
		sn.Time.UTC().Format(time.RFC3339),
		string(sn.Agent),
		formatFloat(sn.Emotion.Joy),
		formatFloat(sn.Emotion.Anxiety),
		formatFloat(sn.Emotion.Sadness),
		formatFloat(sn.Emotion.Anger),
		formatFloat(sn.Stress),
		formatFloat(sn.Energy),
		formatFloat(sn.Risk),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
