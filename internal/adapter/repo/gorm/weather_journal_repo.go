package gormrepo

import (
	"context"

	"worldsync/internal/adapter/repo/gorm/model"
	"worldsync/internal/app/ports"
	"worldsync/internal/domain/world"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WeatherJournalRepo struct {
	db *gorm.DB
}

func NewWeatherJournalRepo(db *gorm.DB) WeatherJournalRepo {
	return WeatherJournalRepo{db: db}
}

func (r WeatherJournalRepo) Append(ctx context.Context, ev ports.WeatherEventRecord) error {
	row := model.WeatherEvent{
		SessionID:      ev.SessionID,
		Location:       ev.Location,
		Classification: ev.Classification,
		State:          string(ev.State),
		DurationTicks:  ev.DurationTicks,
		AppliedAt:      ev.AppliedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r WeatherJournalRepo) List(ctx context.Context, limit int) ([]ports.WeatherEventRecord, error) {
	rows := []model.WeatherEvent{}
	query := r.db.WithContext(ctx).
		Clauses(clause.OrderBy{
			Columns: []clause.OrderByColumn{
				{Column: clause.Column{Name: "applied_at"}, Desc: true},
				{Column: clause.Column{Name: "id"}, Desc: true},
			},
		})
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]ports.WeatherEventRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.WeatherEventRecord{
			SessionID:      row.SessionID,
			Location:       row.Location,
			Classification: row.Classification,
			State:          world.WeatherState(row.State),
			DurationTicks:  row.DurationTicks,
			AppliedAt:      row.AppliedAt,
		})
	}
	return out, nil
}
