package revocation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dropDatabas3/sessionguard/internal/clock"
	"github.com/dropDatabas3/sessionguard/internal/observability/logger"
	tokens "github.com/dropDatabas3/sessionguard/internal/security/token"
	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis comparte el registro entre réplicas. La expiración la maneja Redis
// (PXAT); el chequeo contra el reloj en lectura se mantiene igual.
//
// Errores del backend fallan cerrado: blacklisted=true, live=false.
type Redis struct {
	client  *rdb.Client
	prefix  string
	clock   clock.Clock
	timeout time.Duration
	log     *zap.Logger
}

// RedisOptions configura NewRedis.
type RedisOptions struct {
	Prefix  string        // default "sg:"
	Timeout time.Duration // por operación, default 2s
	Clock   clock.Clock
}

func NewRedis(client *rdb.Client, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "sg:"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	return &Redis{
		client:  client,
		prefix:  opts.Prefix,
		clock:   clock.OrSystem(opts.Clock),
		timeout: opts.Timeout,
		log:     logger.Named("revocation.redis"),
	}
}

func (r *Redis) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *Redis) blKey(tokenOrJTI string) string { return r.prefix + "bl:" + blacklistKey(tokenOrJTI) }
func (r *Redis) rtKey(subjectID, fp string) string {
	return r.prefix + "rt:" + subjectID + ":" + fp
}
func (r *Redis) idxKey(subjectID string) string { return r.prefix + "rts:" + subjectID }

func (r *Redis) BlacklistAccessToken(tokenOrJTI string, expiresAt time.Time) {
	if !r.clock.Now().Before(expiresAt) {
		return
	}
	ctx, cancel := r.ctx()
	defer cancel()
	err := r.client.SetArgs(ctx, r.blKey(tokenOrJTI), expiresAt.UnixMilli(), rdb.SetArgs{ExpireAt: expiresAt}).Err()
	if err != nil {
		r.log.Error("blacklist write failed", logger.Op("BlacklistAccessToken"), logger.Err(err))
	}
}

func (r *Redis) IsAccessTokenBlacklisted(tokenOrJTI string) bool {
	ctx, cancel := r.ctx()
	defer cancel()
	ms, err := r.client.Get(ctx, r.blKey(tokenOrJTI)).Int64()
	if errors.Is(err, rdb.Nil) {
		return false
	}
	if err != nil {
		r.log.Error("blacklist read failed, failing closed", logger.Op("IsAccessTokenBlacklisted"), logger.Err(err))
		return true
	}
	return r.clock.Now().Before(time.UnixMilli(ms))
}

func (r *Redis) RecordRefreshToken(subjectID, token string, rec RefreshRecord) {
	if subjectID == "" || token == "" || !r.clock.Now().Before(rec.ExpiresAt) {
		return
	}
	b, err := json.Marshal(rec)
	if err != nil {
		r.log.Error("refresh record encode failed", logger.Err(err))
		return
	}
	fp := tokens.Fingerprint(token)
	ctx, cancel := r.ctx()
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.SetArgs(ctx, r.rtKey(subjectID, fp), b, rdb.SetArgs{ExpireAt: rec.ExpiresAt})
	pipe.SAdd(ctx, r.idxKey(subjectID), fp)
	extendIndex(ctx, pipe, r.idxKey(subjectID), rec.ExpiresAt)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Error("refresh record write failed", logger.Op("RecordRefreshToken"), logger.SubjectID(subjectID), logger.Err(err))
	}
}

// extendIndex lleva el TTL del índice hasta at sin acortarlo nunca: un
// registro nuevo que vence antes que otro viejo no puede dejar al viejo fuera
// del índice. Requiere Redis >= 7 (PEXPIREAT NX/GT).
func extendIndex(ctx context.Context, pipe rdb.Pipeliner, key string, at time.Time) {
	pipe.Do(ctx, "PEXPIREAT", key, at.UnixMilli(), "NX")
	pipe.Do(ctx, "PEXPIREAT", key, at.UnixMilli(), "GT")
}

func (r *Redis) decode(raw []byte) (RefreshRecord, bool) {
	var rec RefreshRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return RefreshRecord{}, false
	}
	return rec, r.clock.Now().Before(rec.ExpiresAt)
}

func (r *Redis) IsRefreshTokenLive(subjectID, token string) bool {
	ctx, cancel := r.ctx()
	defer cancel()
	raw, err := r.client.Get(ctx, r.rtKey(subjectID, tokens.Fingerprint(token))).Bytes()
	if err != nil {
		if !errors.Is(err, rdb.Nil) {
			r.log.Error("refresh read failed, failing closed", logger.Op("IsRefreshTokenLive"), logger.Err(err))
		}
		return false
	}
	_, live := r.decode(raw)
	return live
}

func (r *Redis) LookupRefreshToken(subjectID, token string) (RefreshRecord, bool) {
	ctx, cancel := r.ctx()
	defer cancel()
	raw, err := r.client.Get(ctx, r.rtKey(subjectID, tokens.Fingerprint(token))).Bytes()
	if err != nil {
		if !errors.Is(err, rdb.Nil) {
			r.log.Error("refresh read failed, failing closed", logger.Op("LookupRefreshToken"), logger.Err(err))
		}
		return RefreshRecord{}, false
	}
	return r.decode(raw)
}

var errNotLive = errors.New("refresh token not live")

// rotateAttempts: reintentos cuando otra escritura sobre el índice del subject
// invalida el WATCH.
const rotateAttempts = 5

// RotateRefreshToken corre bajo WATCH sobre la clave vieja y el índice del
// subject; un KillAllRefreshTokens en el medio aborta la transacción y el
// reintento ya no encuentra el token.
func (r *Redis) RotateRefreshToken(subjectID, oldToken, newToken string, rec RefreshRecord) (RefreshRecord, bool) {
	b, err := json.Marshal(rec)
	if err != nil {
		r.log.Error("refresh record encode failed", logger.Err(err))
		return RefreshRecord{}, false
	}
	oldFP, newFP := tokens.Fingerprint(oldToken), tokens.Fingerprint(newToken)
	oldKey, idxKey := r.rtKey(subjectID, oldFP), r.idxKey(subjectID)
	ctx, cancel := r.ctx()
	defer cancel()

	var prev RefreshRecord
	txf := func(tx *rdb.Tx) error {
		raw, err := tx.Get(ctx, oldKey).Bytes()
		if err != nil {
			return err
		}
		indexed, err := tx.SIsMember(ctx, idxKey, oldFP).Result()
		if err != nil {
			return err
		}
		old, live := r.decode(raw)
		if !indexed || !live {
			return errNotLive
		}
		prev = old
		_, err = tx.TxPipelined(ctx, func(pipe rdb.Pipeliner) error {
			pipe.Del(ctx, oldKey)
			pipe.SRem(ctx, idxKey, oldFP)
			pipe.SetArgs(ctx, r.rtKey(subjectID, newFP), b, rdb.SetArgs{ExpireAt: rec.ExpiresAt})
			pipe.SAdd(ctx, idxKey, newFP)
			extendIndex(ctx, pipe, idxKey, rec.ExpiresAt)
			return nil
		})
		return err
	}

	for i := 0; i < rotateAttempts; i++ {
		err = r.client.Watch(ctx, txf, oldKey, idxKey)
		if !errors.Is(err, rdb.TxFailedErr) {
			break
		}
	}
	switch {
	case err == nil:
		return prev, true
	case errors.Is(err, rdb.Nil), errors.Is(err, errNotLive):
		return RefreshRecord{}, false
	default:
		r.log.Error("refresh rotate failed, failing closed", logger.Op("RotateRefreshToken"), logger.SubjectID(subjectID), logger.Err(err))
		return RefreshRecord{}, false
	}
}

// ConsumeRefreshToken usa GETDEL: Redis garantiza que un solo cliente recibe el valor.
func (r *Redis) ConsumeRefreshToken(subjectID, token string) (RefreshRecord, bool) {
	fp := tokens.Fingerprint(token)
	ctx, cancel := r.ctx()
	defer cancel()
	raw, err := r.client.GetDel(ctx, r.rtKey(subjectID, fp)).Bytes()
	if err != nil {
		if !errors.Is(err, rdb.Nil) {
			r.log.Error("refresh consume failed, failing closed", logger.Op("ConsumeRefreshToken"), logger.Err(err))
		}
		return RefreshRecord{}, false
	}
	_ = r.client.SRem(ctx, r.idxKey(subjectID), fp).Err()
	return r.decode(raw)
}

func (r *Redis) KillRefreshToken(subjectID, token string) bool {
	fp := tokens.Fingerprint(token)
	ctx, cancel := r.ctx()
	defer cancel()
	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, r.rtKey(subjectID, fp))
	pipe.SRem(ctx, r.idxKey(subjectID), fp)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Error("refresh kill failed", logger.Op("KillRefreshToken"), logger.Err(err))
		return false
	}
	return del.Val() > 0
}

func (r *Redis) KillAllRefreshTokens(subjectID string) int {
	ctx, cancel := r.ctx()
	defer cancel()
	fps, err := r.client.SMembers(ctx, r.idxKey(subjectID)).Result()
	if err != nil {
		r.log.Error("refresh index read failed", logger.Op("KillAllRefreshTokens"), logger.Err(err))
		return 0
	}
	keys := make([]string, 0, len(fps)+1)
	for _, fp := range fps {
		keys = append(keys, r.rtKey(subjectID, fp))
	}
	if len(keys) == 0 {
		return 0
	}
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		r.log.Error("refresh kill-all failed", logger.Op("KillAllRefreshTokens"), logger.Err(err))
		return 0
	}
	_ = r.client.SRem(ctx, r.idxKey(subjectID), toAny(fps)...).Err()
	return int(n)
}

func (r *Redis) ListRefreshTokens(subjectID string) []RefreshRecord {
	ctx, cancel := r.ctx()
	defer cancel()
	fps, err := r.client.SMembers(ctx, r.idxKey(subjectID)).Result()
	if err != nil || len(fps) == 0 {
		return nil
	}
	keys := make([]string, len(fps))
	for i, fp := range fps {
		keys[i] = r.rtKey(subjectID, fp)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil
	}
	var (
		out   []RefreshRecord
		stale []any
	)
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, fps[i])
			continue
		}
		if rec, live := r.decode([]byte(s)); live {
			out = append(out, rec)
		}
	}
	if len(stale) > 0 {
		_ = r.client.SRem(ctx, r.idxKey(subjectID), stale...).Err()
	}
	return out
}

// Sweep no hace nada: Redis expira las claves con PXAT.
func (r *Redis) Sweep() SweepStats { return SweepStats{} }

func (r *Redis) Stats() Stats { return Stats{Backend: "redis"} }

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

var _ Registry = (*Redis)(nil)
