package timeutil

import "time"

func NowUnix() int64 {
	return time.Now().Unix()
}

// DaysAgo returns the unix timestamp n days before now.
func DaysAgo(n int) int64 {
	return time.Now().Add(-time.Duration(n) * 24 * time.Hour).Unix()
}

// DaysAfter returns the unix timestamp n days after now.
func DaysAfter(n int) int64 {
	return time.Now().Add(time.Duration(n) * 24 * time.Hour).Unix()
}
