package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dropDatabas3/sessionguard/internal/clock"
	"github.com/google/uuid"
	rdb "github.com/redis/go-redis/v9"
)

// ReservationTTL acota la vida de una reserva que nunca se cerró (réplica caída).
const ReservationTTL = 30 * time.Second

// settleScript cierra una reserva sin bajar de cero.
var settleScript = rdb.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n <= 1 then
  redis.call('DEL', KEYS[1])
  return 0
end
return redis.call('DECR', KEYS[1])
`)

// RedisLimiter: ventana deslizante sobre un ZSET por bucket (score = ms del
// fallo) más una clave de bloqueo con PX y un contador de intentos en curso.
// Comparte estado entre réplicas.
type RedisLimiter struct {
	client   *rdb.Client
	prefix   string
	policies Policies
	clock    clock.Clock
}

func NewRedisLimiter(client *rdb.Client, prefix string, policies Policies, c clock.Clock) (*RedisLimiter, error) {
	if err := policies.Validate(); err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix, policies: policies, clock: clock.OrSystem(c)}, nil
}

func (l *RedisLimiter) keys(identifier string, op Operation) (win, block string) {
	k := bucketKey(identifier, op)
	return l.prefix + "w:" + k, l.prefix + "b:" + k
}

func (l *RedisLimiter) inflightKey(identifier string, op Operation) string {
	return l.prefix + "i:" + bucketKey(identifier, op)
}

func (l *RedisLimiter) settle(ctx context.Context, identifier string, op Operation) error {
	if err := settleScript.Run(ctx, l.client, []string{l.inflightKey(identifier, op)}).Err(); err != nil {
		return fmt.Errorf("rate settle: %w", err)
	}
	return nil
}

func ms(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

// engage fija el bloqueo y limpia la ventana.
func (l *RedisLimiter) engage(ctx context.Context, winKey, blockKey string, p Policy) error {
	pipe := l.client.TxPipeline()
	pipe.Set(ctx, blockKey, "1", p.Block)
	pipe.Del(ctx, winKey)
	_, err := pipe.Exec(ctx)
	return err
}

func (l *RedisLimiter) Check(ctx context.Context, identifier string, op Operation) (Decision, error) {
	p, err := l.policies.get(op)
	if err != nil {
		return allowed(), err
	}
	winKey, blockKey := l.keys(identifier, op)
	now := l.clock.Now()

	pipe := l.client.TxPipeline()
	pttl := pipe.PTTL(ctx, blockKey)
	pipe.ZRemRangeByScore(ctx, winKey, "-inf", "("+ms(now.Add(-p.Window)))
	card := pipe.ZCard(ctx, winKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return allowed(), fmt.Errorf("rate check: %w", err)
	}
	if d := pttl.Val(); d > 0 {
		return blocked(d), nil
	}
	if card.Val() >= int64(p.MaxAttempts) {
		if err := l.engage(ctx, winKey, blockKey, p); err != nil {
			return allowed(), fmt.Errorf("rate block: %w", err)
		}
		return blocked(p.Block), nil
	}
	return allowed(), nil
}

// Reserve incrementa el contador de intentos en curso; si fallos + reservas
// pasan de MaxAttempts deshace el incremento.
func (l *RedisLimiter) Reserve(ctx context.Context, identifier string, op Operation) (Decision, error) {
	dec, err := l.Check(ctx, identifier, op)
	if err != nil || !dec.Allowed {
		return dec, err
	}
	p, _ := l.policies.get(op)
	winKey, _ := l.keys(identifier, op)
	inKey := l.inflightKey(identifier, op)

	pipe := l.client.TxPipeline()
	n := pipe.Incr(ctx, inKey)
	pipe.PExpire(ctx, inKey, ReservationTTL)
	card := pipe.ZCard(ctx, winKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return allowed(), fmt.Errorf("rate reserve: %w", err)
	}
	if card.Val()+n.Val() > int64(p.MaxAttempts) {
		if err := l.settle(ctx, identifier, op); err != nil {
			return blocked(BusyRetry), err
		}
		return blocked(BusyRetry), nil
	}
	return allowed(), nil
}

func (l *RedisLimiter) Release(ctx context.Context, identifier string, op Operation) error {
	if _, err := l.policies.get(op); err != nil {
		return err
	}
	return l.settle(ctx, identifier, op)
}

func (l *RedisLimiter) RecordFailure(ctx context.Context, identifier string, op Operation) (Decision, error) {
	p, err := l.policies.get(op)
	if err != nil {
		return allowed(), err
	}
	winKey, blockKey := l.keys(identifier, op)
	now := l.clock.Now()
	member := ms(now) + ":" + uuid.NewString()

	pipe := l.client.TxPipeline()
	pttl := pipe.PTTL(ctx, blockKey)
	pipe.ZAdd(ctx, winKey, rdb.Z{Score: float64(now.UnixMilli()), Member: member})
	pipe.ZRemRangeByScore(ctx, winKey, "-inf", "("+ms(now.Add(-p.Window)))
	card := pipe.ZCard(ctx, winKey)
	pipe.PExpire(ctx, winKey, p.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return allowed(), fmt.Errorf("rate record: %w", err)
	}
	// el fallo ya está en la ventana: recién ahora se cierra la reserva
	settleErr := l.settle(ctx, identifier, op)
	if pttl.Val() > 0 {
		// ya bloqueado: el fallo no cuenta para después
		_ = l.client.ZRem(ctx, winKey, member).Err()
		return allowed(), settleErr
	}
	if card.Val() >= int64(p.MaxAttempts) {
		if err := l.engage(ctx, winKey, blockKey, p); err != nil {
			return allowed(), fmt.Errorf("rate block: %w", err)
		}
		return blocked(p.Block), settleErr
	}
	return allowed(), settleErr
}

func (l *RedisLimiter) RecordSuccess(ctx context.Context, identifier string, op Operation) error {
	if _, err := l.policies.get(op); err != nil {
		return err
	}
	winKey, blockKey := l.keys(identifier, op)
	if err := l.client.Del(ctx, winKey, blockKey).Err(); err != nil {
		return fmt.Errorf("rate reset: %w", err)
	}
	return l.settle(ctx, identifier, op)
}

var _ Limiter = (*RedisLimiter)(nil)
