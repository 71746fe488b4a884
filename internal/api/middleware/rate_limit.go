package middleware

import (
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"raid-loot/backend/pkg/redis"
	"raid-loot/backend/pkg/response"
)

// 进程内限流器闲置多久后回收
const limiterIdleTTL = 10 * time.Minute

// RateLimit 按 IP + 路由限流
// limit: 窗口内允许的最大请求数
// window: 窗口时长
// rdb 非 nil 时使用 Redis 滑动窗口（多实例共享）；否则退化为进程内令牌桶
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	local := newLocalLimiter(limit, window)

	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s:%s", c.ClientIP(), c.FullPath())

		var allowed bool
		if rdb != nil {
			ok, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
			if err != nil {
				// Redis 出错时降级为进程内限流
				ok = local.allow(key)
			}
			allowed = ok
		} else {
			allowed = local.allow(key)
		}

		if !allowed {
			response.TooManyRequests(c)
			c.Abort()
			return
		}

		c.Next()
	}
}

// ── 进程内令牌桶 ──

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type localLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*keyLimiter
	every     rate.Limit
	burst     int
	lastSweep time.Time
}

func newLocalLimiter(limit int, window time.Duration) *localLimiter {
	return &localLimiter{
		limiters:  make(map[string]*keyLimiter),
		every:     rate.Every(window / time.Duration(limit)),
		burst:     limit,
		lastSweep: time.Now(),
	}
}

func (l *localLimiter) allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for k, v := range l.limiters {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}
	kl, ok := l.limiters[key]
	if !ok {
		kl = &keyLimiter{limiter: rate.NewLimiter(l.every, l.burst)}
		l.limiters[key] = kl
	}
	kl.lastSeen = now
	l.mu.Unlock()

	return kl.limiter.AllowN(now, 1)
}
