package ratelimit

func (l *Limiter) EvictIdle() { l.evictIdle() }
