package services

import "github.com/prometheus/client_golang/prometheus"

var (
	achievementUnlocks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_achievement_unlocks_total",
			Help: "Total achievements unlocked",
		},
	)
	levelUps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_level_ups_total",
			Help: "Total level-ups awarded",
		},
	)
	rewardGrants = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_reward_grants_total",
			Help: "Reward grant attempts by outcome",
		},
		[]string{"kind", "status"},
	)
	leaderboardReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_leaderboard_reads_total",
			Help: "Leaderboard reads by cache outcome",
		},
		[]string{"outcome"},
	)
)

// InitEngineMetrics registers the engine counters. Call once from main.
func InitEngineMetrics() {
	prometheus.MustRegister(achievementUnlocks)
	prometheus.MustRegister(levelUps)
	prometheus.MustRegister(rewardGrants)
	prometheus.MustRegister(leaderboardReads)
}
