package api

import (
	"math/rand"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

// RequestID вешает на каждый запрос монотонный ulid: по нему склеиваются
// строки лога одного вызова конвейера.
func RequestID() gin.HandlerFunc {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	entropy := ulid.Monotonic(src, 0)
	var mu sync.Mutex

	return func(c *gin.Context) {
		mu.Lock()
		id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
		mu.Unlock()
		c.Set("request_id", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}
