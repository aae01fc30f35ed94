package entity

// Analytics summarizes delivery logs. Rates are percentages in [0,100].
type Analytics struct {
	Total         int64   `json:"total"`
	Sent          int64   `json:"sent"`
	Failed        int64   `json:"failed"`
	Replied       int64   `json:"replied"`
	Interviewed   int64   `json:"interviewed"`
	SuccessRate   float64 `json:"success_rate"`
	ReplyRate     float64 `json:"reply_rate"`
	InterviewRate float64 `json:"interview_rate"`
}

// ComputeAnalytics derives counts and rates from per-status totals.
// A rate whose denominator is zero is 0.
func ComputeAnalytics(counts map[DeliveryStatus]int64) Analytics {
	a := Analytics{
		Sent:        counts[DeliverySent],
		Failed:      counts[DeliveryFailed],
		Replied:     counts[DeliveryReplied],
		Interviewed: counts[DeliveryInterviewed],
	}
	for _, n := range counts {
		a.Total += n
	}
	a.SuccessRate = percent(a.Sent, a.Total)
	a.ReplyRate = percent(a.Replied, a.Sent)
	a.InterviewRate = percent(a.Interviewed, a.Sent)
	return a
}

func percent(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d) * 100
}

// Dashboard is the per-user overview.
type Dashboard struct {
	EmailsSent      int64              `json:"emails_sent"`
	TemplatesCount  int64              `json:"templates_count"`
	RecipientsCount int64              `json:"recipients_count"`
	SuccessRate     float64            `json:"success_rate"`
	RecentEmails    []DeliveryLogEntry `json:"recent_emails"`
}
