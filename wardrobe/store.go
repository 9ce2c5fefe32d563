package wardrobe

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/fitroom/internal/database"
	"github.com/BaSui01/fitroom/types"
)

// =============================================================================
// 🗄️ 衣橱存储
// =============================================================================

// Store 衣橱实体的持久化层
type Store struct {
	pool   *database.PoolManager
	logger *zap.Logger
}

// NewStore 创建衣橱存储
func NewStore(pool *database.PoolManager, logger *zap.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger.With(zap.String("component", "wardrobe_store")),
	}
}

func (s *Store) db(ctx context.Context) *gorm.DB {
	return s.pool.DB().WithContext(ctx)
}

// wrapErr 把 gorm 错误映射为服务错误码
func wrapErr(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return types.NewError(types.ErrRecordNotFound, entity+" not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return types.NewError(types.ErrDuplicateKey, entity+" already exists")
	default:
		return types.NewError(types.ErrInternalError, "database operation failed").WithCause(err)
	}
}

// ---------------------------------------------------------------------------
// 用户与档案
// ---------------------------------------------------------------------------

// CreateUser 创建用户
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	return wrapErr(s.db(ctx).Create(user).Error, "user")
}

// GetUser 按 ID 查用户
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	if err := s.db(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, wrapErr(err, "user")
	}
	return &user, nil
}

// UpsertProfile 写入或更新身材档案
func (s *Store) UpsertProfile(ctx context.Context, profile *Profile) error {
	return wrapErr(s.db(ctx).Save(profile).Error, "profile")
}

// GetProfile 按用户 ID 查档案
func (s *Store) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var profile Profile
	if err := s.db(ctx).First(&profile, "user_id = ?", userID).Error; err != nil {
		return nil, wrapErr(err, "profile")
	}
	return &profile, nil
}

// ---------------------------------------------------------------------------
// 照片与身材估算
// ---------------------------------------------------------------------------

// CreatePhoto 登记上传照片
func (s *Store) CreatePhoto(ctx context.Context, photo *Photo) error {
	return wrapErr(s.db(ctx).Create(photo).Error, "photo")
}

// GetPhoto 按 ID 查照片
func (s *Store) GetPhoto(ctx context.Context, id string) (*Photo, error) {
	var photo Photo
	if err := s.db(ctx).First(&photo, "id = ?", id).Error; err != nil {
		return nil, wrapErr(err, "photo")
	}
	return &photo, nil
}

// CreateMeasurement 保存一次身材估算结果
func (s *Store) CreateMeasurement(ctx context.Context, m *Measurement) error {
	return wrapErr(s.db(ctx).Create(m).Error, "measurement")
}

// ListMeasurements 按用户倒序列出估算历史
func (s *Store) ListMeasurements(ctx context.Context, userID string) ([]Measurement, error) {
	var out []Measurement
	err := s.db(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error
	return out, wrapErr(err, "measurement")
}

// ---------------------------------------------------------------------------
// 形象
// ---------------------------------------------------------------------------

// CreateAvatar 保存 3D 形象
func (s *Store) CreateAvatar(ctx context.Context, avatar *Avatar) error {
	return wrapErr(s.db(ctx).Create(avatar).Error, "avatar")
}

// GetAvatar 按 ID 查形象
func (s *Store) GetAvatar(ctx context.Context, id string) (*Avatar, error) {
	var avatar Avatar
	if err := s.db(ctx).First(&avatar, "id = ?", id).Error; err != nil {
		return nil, wrapErr(err, "avatar")
	}
	return &avatar, nil
}

// ListAvatars 列出用户的全部形象
func (s *Store) ListAvatars(ctx context.Context, userID string) ([]Avatar, error) {
	var out []Avatar
	err := s.db(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error
	return out, wrapErr(err, "avatar")
}

// ---------------------------------------------------------------------------
// 服装
// ---------------------------------------------------------------------------

// GarmentFilter 服装列表过滤条件
type GarmentFilter struct {
	Category string
	Gender   string
	Limit    int
	Offset   int
}

// CreateGarment 上架一件服装
func (s *Store) CreateGarment(ctx context.Context, garment *Garment) error {
	return wrapErr(s.db(ctx).Create(garment).Error, "garment")
}

// GetGarment 按 ID 查服装
func (s *Store) GetGarment(ctx context.Context, id string) (*Garment, error) {
	var garment Garment
	if err := s.db(ctx).First(&garment, "id = ?", id).Error; err != nil {
		return nil, wrapErr(err, "garment")
	}
	return &garment, nil
}

// ListGarments 按过滤条件分页列出服装
func (s *Store) ListGarments(ctx context.Context, filter GarmentFilter) ([]Garment, error) {
	q := s.db(ctx).Model(&Garment{})
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Gender != "" {
		q = q.Where("gender = ?", filter.Gender)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var out []Garment
	err := q.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&out).Error
	return out, wrapErr(err, "garment")
}

// ---------------------------------------------------------------------------
// 试穿会话与事件
// ---------------------------------------------------------------------------

// CreateTryonSession 记录一次试穿会话
func (s *Store) CreateTryonSession(ctx context.Context, session *TryonSession) error {
	return wrapErr(s.db(ctx).Create(session).Error, "tryon session")
}

// GetTryonSession 按 ID 查试穿会话
func (s *Store) GetTryonSession(ctx context.Context, id string) (*TryonSession, error) {
	var session TryonSession
	if err := s.db(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, wrapErr(err, "tryon session")
	}
	return &session, nil
}

// UpdateTryonResult 回填试穿结果预览
func (s *Store) UpdateTryonResult(ctx context.Context, id, resultPreviews string) error {
	res := s.db(ctx).Model(&TryonSession{}).Where("id = ?", id).
		Update("result_previews", resultPreviews)
	if res.Error != nil {
		return wrapErr(res.Error, "tryon session")
	}
	if res.RowsAffected == 0 {
		return types.NewError(types.ErrRecordNotFound, "tryon session not found")
	}
	return nil
}

// RecordEvent 写入埋点事件，失败只记日志不阻断调用方
func (s *Store) RecordEvent(ctx context.Context, event *Event) {
	if err := s.db(ctx).Create(event).Error; err != nil {
		s.logger.Warn("event write failed", zap.String("type", event.Type), zap.Error(err))
	}
}
