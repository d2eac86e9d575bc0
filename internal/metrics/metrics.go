// Package metrics declares the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsAppended counts persisted attendance records by status.
	RecordsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendease_records_appended_total",
		Help: "Attendance records written, by status.",
	}, []string{"status"})

	// Validations counts absence reason checks by outcome (valid, suspicious, fallback).
	Validations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendease_validations_total",
		Help: "Absence reason validations, by outcome.",
	}, []string{"outcome"})

	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendease_logins_total",
		Help: "Login attempts, by outcome.",
	}, []string{"outcome"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendease_rate_limited_total",
		Help: "Requests rejected by a rate limiter, by scope.",
	}, []string{"scope"})

	// TallyEvents counts attendance events consumed by the tally worker.
	TallyEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendease_tally_events_total",
		Help: "Attendance events consumed into the daily tally, by result.",
	}, []string{"result"})
)
