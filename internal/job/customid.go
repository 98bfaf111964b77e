package job

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// IDGenerator produces the custom ID of a new job.
type IDGenerator func(now time.Time) string

// NewCustomID returns JOB-<4 random digits>-<UTC YYYYMMDDHHMMSSmmm>.
// Two submissions in the same millisecond collide with probability 1/9000;
// the unique index turns a collision into ErrConflict.
func NewCustomID(now time.Time) string {
	stamp := strings.Replace(now.UTC().Format("20060102150405.000"), ".", "", 1)
	return fmt.Sprintf("JOB-%d-%s", 1000+rand.IntN(9000), stamp)
}
