package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/paulchi-intel/lsb-watermark-embedder/config"
	"github.com/paulchi-intel/lsb-watermark-embedder/model"
	"github.com/paulchi-intel/lsb-watermark-embedder/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisService 提取结果缓存，未启用时所有方法均为空操作
type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	if !cfg.Enabled {
		return &RedisService{ttl: cfg.TTL}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

// Enabled 是否配置了 Redis
func (s *RedisService) Enabled() bool {
	return s != nil && s.client != nil
}

func (s *RedisService) Ping(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// GetExtractResult 从缓存获取提取结果，cacheKey 由图片 MD5 与提取参数组成，未命中返回 nil, nil
func (s *RedisService) GetExtractResult(ctx context.Context, cacheKey string) (*model.ExtractResult, error) {
	if !s.Enabled() {
		return nil, nil
	}

	data, err := s.client.Get(ctx, "extract:"+cacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}

	var result model.ExtractResult
	if err := json.Unmarshal(data, &result); err != nil {
		utils.Logger.Error("failed to unmarshal extract result",
			zap.String("cache_key", cacheKey), zap.Error(err))
		return nil, err
	}

	return &result, nil
}

// SetExtractResult 设置提取结果到缓存
func (s *RedisService) SetExtractResult(ctx context.Context, cacheKey string, result *model.ExtractResult) error {
	if !s.Enabled() {
		return nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, "extract:"+cacheKey, data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Close()
}
