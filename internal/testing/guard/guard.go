package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("WORKLANE_TEST_MODE") == "" {
			_ = os.Setenv("WORKLANE_TEST_MODE", "1")
		}
	})
}
