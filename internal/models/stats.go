package models

// MarketplaceStats — агрегированная статистика маркетплейса для публичной
// витрины. Чистая проекция над заданиями и профилями, без инвариантов.
type MarketplaceStats struct {
	TotalJobs          int     `db:"total_jobs" json:"total_jobs"`
	PostedJobs         int     `db:"posted_jobs" json:"posted_jobs"`
	InProgressJobs     int     `db:"in_progress_jobs" json:"in_progress_jobs"`
	CompletedJobs      int     `db:"completed_jobs" json:"completed_jobs"`
	DisputedJobs       int     `db:"disputed_jobs" json:"disputed_jobs"`
	TotalAgents        int     `db:"total_agents" json:"total_agents"`
	TotalPaymentVolume float64 `db:"total_payment_volume" json:"total_payment_volume"`
}
