package subinfo

import (
	"fmt"
	"strings"
	"time"
)

// InfoPrefix marks informational nodes. Region and manual groups exclude
// anything carrying it.
const InfoPrefix = "Info-"

// InfoOptions tune the per-provider info node.
type InfoOptions struct {
	ShowRemaining bool // "剩 X" instead of "used / total"
	HideExpire    bool
	NoReset       bool

	// Reset countdown source, in priority order: StartDate+CycleDays, then
	// ResetDay, then the day of month of the expiry date.
	StartDate string // YYYY-MM-DD
	CycleDays int
	ResetDay  int
}

// InfoNodeName builds "Info-<provider> | 流量: .. | 到期: .. | 重置: N 天后".
// A nil info yields just "Info-<provider>".
func InfoNodeName(provider string, info *UserInfo, opts InfoOptions, now time.Time) string {
	var parts []string
	if info != nil {
		if opts.ShowRemaining {
			remaining := info.Total - info.Used()
			if remaining < 0 {
				remaining = -remaining
			}
			parts = append(parts, "流量: 剩 "+FlowTransfer(remaining).String())
		} else {
			parts = append(parts, fmt.Sprintf("流量: %s / %s", FlowTransfer(info.Used()), FlowTransfer(info.Total)))
		}

		var expiry time.Time
		if info.Expire > 0 {
			expiry = time.Unix(info.Expire, 0).In(now.Location())
			if !opts.HideExpire {
				parts = append(parts, "到期: "+expiry.Format("2006/01/02"))
			}
		}

		if !opts.NoReset {
			if days, ok := remainingDays(opts, expiry, now); ok && days > 0 {
				parts = append(parts, fmt.Sprintf("重置: %d 天后", days))
			}
		}
	}

	name := InfoPrefix + provider
	if len(parts) == 0 {
		return name
	}
	return name + " | " + strings.Join(parts, " | ")
}

// TotalInfoNodeName builds the overview node for aggregated usage. It reports
// false when there is nothing to show (no subscription reported a total).
func TotalInfoNodeName(sum UserInfo, now time.Time) (string, bool) {
	if sum.Total <= 0 {
		return "", false
	}
	parts := []string{fmt.Sprintf("总流量: %s / %s", FlowTransfer(sum.Used()), FlowTransfer(sum.Total))}
	if sum.Expire > 0 {
		parts = append(parts, "最早到期: "+time.Unix(sum.Expire, 0).In(now.Location()).Format("2006/01/02"))
	}
	return InfoPrefix + "总览 | " + strings.Join(parts, " | "), true
}

// UpdatedAtName is the name of the node the 更新时间 group shows.
func UpdatedAtName(now time.Time) string {
	return InfoPrefix + "更新于 " + now.Format("2006-01-02 15:04")
}

func remainingDays(opts InfoOptions, expiry time.Time, now time.Time) (int, bool) {
	today := midnight(now)

	if opts.StartDate != "" && opts.CycleDays > 0 {
		start, err := time.ParseInLocation("2006-01-02", opts.StartDate, now.Location())
		if err != nil {
			return 0, false
		}
		if start.After(today) {
			return daysBetween(today, start), true
		}
		elapsed := daysBetween(start, today)
		return opts.CycleDays - elapsed%opts.CycleDays, true
	}

	resetDay := opts.ResetDay
	if resetDay == 0 && !expiry.IsZero() {
		resetDay = expiry.Day()
	}
	if resetDay <= 0 || resetDay > 31 {
		return 0, false
	}
	day := now.Day()
	if resetDay > day {
		return resetDay - day, true
	}
	return daysInMonth(now) - day + resetDay, true
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween rounds so that DST shifts do not lose a day.
func daysBetween(a, b time.Time) int {
	return int((b.Sub(a).Hours() + 12) / 24)
}

func daysInMonth(t time.Time) int {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
