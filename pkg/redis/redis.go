package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"backend-pm/config"
)

// Client Redis 客户端封装
// 当前用于 Token 黑名单与用户有效权限缓存
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── Token 黑名单 ──

const blacklistPrefix = "token:blacklist:"

// BlacklistToken 将 JWT ID 加入黑名单，TTL 与 Token 剩余有效期一致
func (c *Client) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // Token 已过期，无需加入黑名单
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT ID 是否在黑名单中
func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── 有效权限缓存 ──
//
// 权限解析每次请求都可能执行，缓存用户的有效权限编码集合可避免
// 重复的三表联查。写路径（角色/权限/分配变更）负责失效。

const permCachePrefix = "perm:codes:"

// permCacheTTL 短 TTL 兜底：即使失效遗漏，过期后也会回源
const permCacheTTL = 5 * time.Minute

// GetPermissionCodes 读取用户有效权限编码缓存，未命中返回 (nil, false)
func (c *Client) GetPermissionCodes(ctx context.Context, userID string) ([]string, bool) {
	codes, err := c.rdb.SMembers(ctx, permCachePrefix+userID).Result()
	if err != nil || len(codes) == 0 {
		return nil, false
	}
	if len(codes) == 1 && codes[0] == emptySetSentinel {
		return []string{}, true
	}
	return codes, true
}

// emptySetSentinel 区分"无权限"与"未缓存"：Redis 空集合无法存在
const emptySetSentinel = "\x00none"

// SetPermissionCodes 写入用户有效权限编码缓存
func (c *Client) SetPermissionCodes(ctx context.Context, userID string, codes []string) error {
	key := permCachePrefix + userID
	members := make([]interface{}, 0, len(codes)+1)
	if len(codes) == 0 {
		members = append(members, emptySetSentinel)
	}
	for _, code := range codes {
		members = append(members, code)
	}

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, permCacheTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// InvalidatePermissionCodes 删除指定用户的权限缓存
func (c *Client) InvalidatePermissionCodes(ctx context.Context, userIDs ...string) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = permCachePrefix + id
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("权限缓存失效失败", zap.Error(err))
	}
}

// ── 速率限制 ──

// CheckRateLimit 固定窗口计数：窗口内第 limit+1 次请求开始拒绝
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
