package store

import (
	"context"
	"errors"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// incrScript 与 ParseCount 接受同样的写法：可选空白和 "+" 加十进制数字，其余按 0 处理。
// 写回用 %d，避免大数被格式化成科学计数法
var incrScript = redis.NewScript(`
local n = 0
local s = redis.call('GET', KEYS[1])
if s then
	local digits = string.match(s, '^%s*%+?(%d+)%s*$')
	if digits then
		n = tonumber(digits)
	end
end
n = n + 1
redis.call('SET', KEYS[1], string.format('%d', n))
return n
`)

type RedisStore struct {
	rdb *redis.Client
}

func isRedisURI(target string) bool {
	return strings.HasPrefix(target, "redis://") ||
		strings.HasPrefix(target, "rediss://") ||
		strings.HasPrefix(target, "unix://")
}

// TargetToOptions 支持 host:port 与 redis:// URI 两种写法
func TargetToOptions(target string) (*redis.Options, error) {
	if !isRedisURI(target) {
		return &redis.Options{Addr: target}, nil
	}
	return redis.ParseURL(target)
}

func NewRedisStore(target string) (*RedisStore, error) {
	opts, err := TargetToOptions(target)
	if err != nil {
		log.Error().Err(err).Msg("the supported redis URI formats are redis[s]://[[USER][:PASSWORD]@][HOST][:PORT][/DATABASE] or unix://[[USER][:PASSWORD]@]SOCKET_PATH[?db=DATABASE]")
		return nil, err
	}
	return NewRedisStoreWithClient(redis.NewClient(opts)), nil
}

func NewRedisStoreWithClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStore) Put(ctx context.Context, key, value string) error {
	return r.rdb.Set(ctx, key, value, 0).Err()
}

func (r *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return incrScript.Run(ctx, r.rdb, []string{key}).Int64()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
