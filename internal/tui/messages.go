package tui

import (
	"time"

	"dealradar/internal/listing"
	"dealradar/internal/pool"
)

// loadedMsg carries the outcome of a load. req is the request generation
// that issued it; results from a superseded generation are discarded.
type loadedMsg struct {
	req      int
	res      pool.Result
	itemType listing.ItemType
	query    string
	appended bool
}

type loadErrMsg struct {
	req      int
	err      error
	authFail bool
}

type topUpMsg struct {
	req int
	res pool.Result
}

type itemExpiredMsg struct {
	id string
}

type clearNoticeMsg struct{}

type countdownTickMsg time.Time

type updateAvailableMsg struct {
	version string
}
