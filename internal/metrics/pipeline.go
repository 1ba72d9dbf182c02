package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExtractionTotal 按结果统计结构化抽取次数。
	// outcome: ok / repaired / unrecoverable / provider_error
	ExtractionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foliogen",
			Subsystem: "pipeline",
			Name:      "extractions_total",
			Help:      "简历结构化抽取总数（按结果分类）。",
		},
		[]string{"outcome"},
	)

	// RepairTotal 统计触发 JSON 修复重试的次数。
	RepairTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "foliogen",
			Subsystem: "pipeline",
			Name:      "repairs_total",
			Help:      "JSON 修复重试触发总数。",
		},
	)

	// SyncTotal 按结果统计作品集同步事务次数。
	SyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foliogen",
			Subsystem: "pipeline",
			Name:      "syncs_total",
			Help:      "作品集同步事务总数（按结果分类）。",
		},
		[]string{"outcome"},
	)
)
