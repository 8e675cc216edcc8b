package goroutine

import (
	"fmt"
	"runtime/debug"

	"github.com/ignatzorin/agent-marketplace/internal/logger"
)

// SafeGo запускает fn в отдельной горутине и перехватывает panic:
// падение фоновой задачи логируется, а не роняет процесс.
func SafeGo(fn func()) {
	go func() {
		defer logPanic()
		fn()
	}()
}

func logPanic() {
	r := recover()
	if r == nil {
		return
	}
	if logger.Log != nil {
		logger.Log.WithField("stack", string(debug.Stack())).Errorf("panic в горутине: %v", r)
		return
	}
	fmt.Printf("[ERROR] panic в горутине: %v\n%s\n", r, debug.Stack())
}
