// Package subinfo turns subscription usage metadata into informational
// "Info-" nodes and cleans provider-supplied node lists. It only ever adds or
// renames nodes; the compiler treats its output like any other node list.
package subinfo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// HeaderName is the response header subscription servers report usage in.
const HeaderName = "subscription-userinfo"

// UserInfo is the decoded subscription-userinfo header. Byte counts; Expire is
// a unix timestamp in seconds, 0 when absent.
type UserInfo struct {
	Upload   int64
	Download int64
	Total    int64
	Expire   int64
}

func (u UserInfo) Used() int64 { return u.Upload + u.Download }

// String re-encodes u in header form.
func (u UserInfo) String() string {
	s := fmt.Sprintf("upload=%d; download=%d; total=%d", u.Upload, u.Download, u.Total)
	if u.Expire > 0 {
		s += fmt.Sprintf("; expire=%d", u.Expire)
	}
	return s
}

var errNoUserInfo = errors.New("subscription-userinfo is empty")

// ParseUserInfo decodes "upload=1; download=2; total=3; expire=4". upload,
// download and total are required; expire is optional. Numbers may use
// decimal or exponent notation. Unknown keys are ignored.
func ParseUserInfo(header string) (UserInfo, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return UserInfo{}, errNoUserInfo
	}

	var u UserInfo
	var have struct{ up, down, total bool }
	for _, part := range strings.Split(header, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)

		switch k {
		case "upload", "download", "total":
			n, err := parseAmount(v)
			if err != nil {
				return UserInfo{}, fmt.Errorf("%s: %w", k, err)
			}
			switch k {
			case "upload":
				u.Upload, have.up = n, true
			case "download":
				u.Download, have.down = n, true
			case "total":
				u.Total, have.total = n, true
			}
		case "expire":
			n, err := parseAmount(v)
			if err != nil {
				// Some panels send "expire=" or "expire=null" for "never".
				continue
			}
			if n > 0 {
				u.Expire = n
			}
		}
	}
	if !have.up || !have.down || !have.total {
		return UserInfo{}, fmt.Errorf("subscription-userinfo missing fields: %q", header)
	}
	return u, nil
}

func parseAmount(s string) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return int64(f), nil
}

// Flow is a byte count scaled to the largest unit that keeps it under 1024.
type Flow struct {
	Value string
	Unit  string
}

func (f Flow) String() string { return f.Value + " " + f.Unit }

var flowUnits = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// FlowTransfer formats bytes with up to two decimals, e.g. 1610612736 ->
// {"1.5", "GB"}.
func FlowTransfer(bytes int64) Flow {
	v := float64(bytes)
	neg := v < 0
	if neg {
		v = -v
	}
	i := 0
	for v >= 1024 && i < len(flowUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	if neg {
		v = -v
	}
	return Flow{Value: strconv.FormatFloat(v, 'f', -1, 64), Unit: flowUnits[i]}
}

// Aggregate sums usage across subscriptions. Negative counters are ignored
// and Expire is the earliest expiry still in the future relative to now.
func Aggregate(infos []UserInfo, now time.Time) UserInfo {
	var sum UserInfo
	for _, u := range infos {
		if u.Upload > 0 {
			sum.Upload += u.Upload
		}
		if u.Download > 0 {
			sum.Download += u.Download
		}
		if u.Total > 0 {
			sum.Total += u.Total
		}
		if u.Expire > 0 && u.Expire > now.Unix() {
			if sum.Expire == 0 || u.Expire < sum.Expire {
				sum.Expire = u.Expire
			}
		}
	}
	return sum
}
