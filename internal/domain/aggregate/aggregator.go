// Package aggregate превращает статистику платформы по корзинам в упорядоченные отсчеты.
package aggregate

import (
	"time"

	"golang.org/x/exp/slog"

	"healthsync/internal/domain/health"
)

// Window полуинтервал [Start, End) с размером корзины
type Window struct {
	Start  time.Time
	End    time.Time
	Bucket health.BucketSize
}

// Report сводка качества данных одного вызова Aggregate
type Report struct {
	Buckets    int
	Emitted    int
	Missing    int
	Mismatched int
}

type Aggregator struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Aggregator {
	return &Aggregator{
		log: log.With(slog.String("component", "aggregator")),
	}
}

// Aggregate перебирает корзины окна по порядку и для каждой берет сумму или среднее.
// Корзина пропускается, если статистики нет или ее единица несовместима с unit.
// Значение переводится в unit и округляется до трех знаков.
func (a *Aggregator) Aggregate(
	t health.DataType,
	raw []health.BucketResult,
	unit health.Unit,
	w Window,
	kind health.AggregationKind,
) ([]health.Sample, Report) {
	samples := make([]health.Sample, 0)
	var rep Report

	if w.Bucket != health.Hour && w.Bucket != health.Day {
		a.log.Error("Неизвестный размер корзины", "data_type", t, "bucket", w.Bucket)
		return samples, rep
	}
	if !w.Start.Before(w.End) {
		return samples, rep
	}

	loc := w.Start.Location()
	byStart := make(map[int64]health.BucketResult, len(raw))
	for _, r := range raw {
		key := w.Bucket.Floor(r.Start.In(loc)).Unix()
		if _, dup := byStart[key]; !dup {
			byStart[key] = r
		}
	}

	for cur := w.Bucket.Floor(w.Start); cur.Before(w.End); cur = w.Bucket.Next(cur) {
		rep.Buckets++

		r, ok := byStart[cur.Unix()]
		if !ok {
			rep.Missing++
			continue
		}

		q := pick(r, kind)
		if q == nil {
			rep.Missing++
			continue
		}

		value, err := q.In(unit)
		if err != nil {
			rep.Mismatched++
			a.log.Warn("Несовместимая единица статистики, корзина пропущена",
				"data_type", t,
				"bucket_start", cur,
				"unit", q.Unit.String(),
				"expected_unit", unit.String(),
			)
			continue
		}

		samples = append(samples, health.Sample{
			Timestamp: cur,
			Value:     health.Round3(value),
		})
		rep.Emitted++
	}

	return samples, rep
}

func pick(r health.BucketResult, kind health.AggregationKind) *health.Quantity {
	switch kind {
	case health.Sum:
		return r.Sum
	case health.Average:
		return r.Average
	}
	return nil
}
