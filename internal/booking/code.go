package booking

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const codePrefix = "MB"

var codeRNG = struct {
	sync.Mutex
	*rand.Rand
}{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}

// NewConfirmationCode builds a patient-facing code such as
// "MB-20260115-093042-4817". The timestamp keeps codes sortable and the
// random suffix makes collisions unlikely, but format alone does not
// guarantee uniqueness: the engine still verifies against the store and
// retries on conflict.
func NewConfirmationCode(now time.Time) string {
	codeRNG.Lock()
	n := codeRNG.Intn(10000)
	codeRNG.Unlock()
	return fmt.Sprintf("%s-%s-%04d", codePrefix, now.Format("20060102-150405"), n)
}
