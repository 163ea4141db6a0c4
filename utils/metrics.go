package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpodo_votes_cast_total",
		Help: "Accepted votes by session kind.",
	}, []string{"kind"})

	GroupJoins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpodo_group_joins_total",
		Help: "Join attempts by outcome.",
	}, []string{"outcome"})

	PhaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpodo_phase_transitions_total",
		Help: "Accepted phase transitions by target phase.",
	}, []string{"to"})

	ServicePurchases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpodo_service_purchases_total",
		Help: "purchase_service calls by outcome.",
	}, []string{"outcome"})

	OTPSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpodo_otp_sent_total",
		Help: "One-time codes issued.",
	})

	SessionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpodo_voting_sessions_closed_total",
		Help: "Voting sessions closed by trigger.",
	}, []string{"trigger"})
)
