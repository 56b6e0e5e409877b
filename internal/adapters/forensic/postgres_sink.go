// Package forensic persists normalized records to Postgres for after-action
// analysis. The table is append-only; the unique key (asset_hint, receipt_ts,
// raw_topic) makes redelivered bus messages a no-op.
package forensic

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/ports"
)

type PostgresSink struct {
	db        *sql.DB
	tableName string
}

func NewPostgresSink(db *sql.DB, table string) *PostgresSink {
	return &PostgresSink{db: db, tableName: table}
}

func (p *PostgresSink) Name() string { return "postgres" }

func (p *PostgresSink) WriteBatch(records []*domain.NormalizedRecord) error {
	if len(records) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(p.tableName)
	b.WriteString(" (asset_hint, family, source, kind, receipt_ts, raw_topic, lat, lon, alt_msl_m, speed_mps, heading_deg, battery_pct, device_ts) VALUES ")

	const cols = 13
	args := make([]any, 0, len(records)*cols)
	for i, r := range records {
		if i > 0 {
			b.WriteString(",")
		}
		base := len(args)
		b.WriteString("(")
		for c := 1; c <= cols; c++ {
			if c > 1 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "$%d", base+c)
		}
		b.WriteString(")")

		args = append(args,
			r.AssetHint,
			string(r.Family),
			r.Source,
			string(r.Kind),
			r.ReceiptTime,
			r.RawTopic,
			nullFloat(r.Latitude),
			nullFloat(r.Longitude),
			nullFloat(r.AltitudeMSLM),
			nullFloat(r.SpeedMPS),
			nullFloat(r.HeadingDeg),
			nullFloat(r.BatteryPct),
			nullTime(r.DeviceTime),
		)
	}

	b.WriteString(" ON CONFLICT (asset_hint, receipt_ts, raw_topic) DO NOTHING")

	if _, err := p.db.Exec(b.String(), args...); err != nil {
		return fmt.Errorf("forensic insert: %w", err)
	}
	return nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}

var _ ports.ForensicSink = (*PostgresSink)(nil)
