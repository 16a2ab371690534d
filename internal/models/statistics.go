package models

import "math"

// RecentCounts counts requests filed in the current day, week and month.
type RecentCounts struct {
	Today     int `json:"aujourdhui"`
	ThisWeek  int `json:"cette_semaine"`
	ThisMonth int `json:"ce_mois"`
}

// StatisticsTotals is the aggregate block of the statistics report.
type StatisticsTotals struct {
	TotalRequests     int                       `json:"total_demandes"`
	ByKind            KindCounts                `json:"par_type"`
	ByStatus          StatusCounts              `json:"par_statut"`
	Recent            RecentCounts              `json:"demandes_recentes"`
	StatusPercentages map[RequestStatus]float64 `json:"pourcentages_statut,omitempty"`
}

// WeeklyCount is one calendar week in the rolling history.
type WeeklyCount struct {
	Label string `json:"semaine"`
	Start string `json:"debut"`
	End   string `json:"fin"`
	Total int    `json:"total"`
}

// StatisticsPeriod echoes the reference dates used for the report.
type StatisticsPeriod struct {
	Today      string `json:"aujourdhui"`
	WeekStart  string `json:"debut_semaine"`
	MonthStart string `json:"debut_mois"`
}

// StatisticsReport is the staff statistics payload.
type StatisticsReport struct {
	Totals StatisticsTotals `json:"statistiques"`
	Weekly []WeeklyCount    `json:"evolution_hebdomadaire"`
	Period StatisticsPeriod `json:"periode"`
}

// StatusPercentages returns each status share of total rounded to one decimal, or nil when total is zero.
func StatusPercentages(counts StatusCounts, total int) map[RequestStatus]float64 {
	if total <= 0 {
		return nil
	}
	out := make(map[RequestStatus]float64, len(AllStatuses))
	for _, s := range AllStatuses {
		out[s] = math.Round(float64(counts[s])/float64(total)*1000) / 10
	}
	return out
}
