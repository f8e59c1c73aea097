package referral

// StatsResponse is the influencer dashboard summary
type StatsResponse struct {
	ReferredCount       int   `json:"referred_count"`
	PendingCents        int64 `json:"pending_cents"`
	ConfirmedCents      int64 `json:"confirmed_cents"`
	PendingCommissions  int   `json:"pending_commissions"`
	ConfirmedCommission int   `json:"confirmed_commissions"`
}
